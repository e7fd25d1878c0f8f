// Package s3storage stores document files in a single MinIO/S3 bucket. Calls
// go through a circuit breaker so a dead endpoint fails fast.
package s3storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sony/gobreaker/v2"

	"github.com/dharsanguruparan/busdocs/internal/config"
)

// ErrNotFound is returned when the bucket has no object under the key.
var ErrNotFound = errors.New("object not found")

// Storage wraps MinIO/S3 interactions for the document bucket.
type Storage struct {
	client    *minio.Client
	bucket    string
	region    string
	publicURL string
	breaker   *gobreaker.CircuitBreaker[any]
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config, logger *slog.Logger) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = client.EndpointURL().String() + "/" + cfg.Bucket
	}
	return &Storage{
		client:    client,
		bucket:    cfg.Bucket,
		region:    cfg.S3Region,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		breaker:   newBreaker("s3:"+cfg.Bucket, logger),
	}, nil
}

func newBreaker(name string, logger *slog.Logger) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
}

func (s *Storage) run(fn func() error) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

// EnsureBucket makes sure the document bucket exists before use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.run(func() error {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", s.bucket, err)
		}
		if exists {
			return nil
		}
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
		return nil
	})
}

// Put uploads an object under key.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.run(func() error {
		opts := minio.PutObjectOptions{ContentType: contentType}
		if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, opts); err != nil {
			return fmt.Errorf("upload object %s: %w", key, err)
		}
		return nil
	})
}

// Get downloads the object bytes and its content type.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, string, error) {
	var (
		data        []byte
		contentType string
	)
	err := s.run(func() error {
		obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return mapErr("get object", key, err)
		}
		defer obj.Close()
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, obj); err != nil {
			return mapErr("read object", key, err)
		}
		if info, err := obj.Stat(); err == nil {
			contentType = info.ContentType
		}
		data = buf.Bytes()
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

// Remove deletes an object. Missing keys are not an error for S3.
func (s *Storage) Remove(ctx context.Context, key string) error {
	return s.run(func() error {
		if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove object %s: %w", key, err)
		}
		return nil
	})
}

// SignedURL returns a presigned GET URL valid for ttl.
func (s *Storage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	var link string
	err := s.run(func() error {
		u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
		if err != nil {
			return fmt.Errorf("presign object %s: %w", key, err)
		}
		link = u.String()
		return nil
	})
	return link, err
}

// PublicURL returns the unsigned URL of key under the public base.
func (s *Storage) PublicURL(key string) string {
	return s.publicURL + "/" + escapePath(key)
}

func mapErr(op, key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%s %s: %w", op, key, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, key, err)
}

func escapePath(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
