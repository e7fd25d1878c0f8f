// Package storage contains the in-memory object store used for local runs and
// tests. Objects are served back through signed /objects links.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dharsanguruparan/busdocs/internal/signing"
)

// ErrNotFound is returned for keys that were never stored or were removed.
var ErrNotFound = errors.New("object not found")

type object struct {
	data        []byte
	contentType string
	storedAt    time.Time
}

// MemoryStore keeps objects in a map guarded by a RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*object

	signer  *signing.Signer
	baseURL string
	now     func() time.Time
}

// NewMemoryStore constructs a MemoryStore. baseURL prefixes the links it
// hands out; an empty base yields host-relative links.
func NewMemoryStore(signer *signing.Signer, baseURL string) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]*object),
		signer:  signer,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		now:     time.Now,
	}
}

// Put stores the reader's content under key, replacing any previous object.
func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("put object: empty key")
	}
	var buf bytes.Buffer
	if size > 0 {
		buf.Grow(int(size))
	}
	if _, err := io.Copy(&buf, r); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = &object{data: buf.Bytes(), contentType: contentType, storedAt: m.now().UTC()}
	return nil
}

// Get returns a copy of the object bytes and its content type.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", fmt.Errorf("get object %s: %w", key, ErrNotFound)
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, obj.contentType, nil
}

// Remove deletes key. Removing a missing key is not an error.
func (m *MemoryStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// SignedURL returns a time-limited /objects link for key.
func (m *MemoryStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.signer == nil {
		return "", fmt.Errorf("sign object %s: no signer configured", key)
	}
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("sign object %s: %w", key, ErrNotFound)
	}
	q := m.signer.Query(key, ttl, m.now())
	return m.baseURL + "/objects?" + q.Encode(), nil
}

// publicLinkTTL bounds the links PublicURL hands out. /objects only serves
// signed requests, so the fallback link is signed too.
const publicLinkTTL = 7 * 24 * time.Hour

// PublicURL returns a long-lived signed link for key, or the bare link when
// no signer is configured.
func (m *MemoryStore) PublicURL(key string) string {
	if m.signer == nil {
		return m.baseURL + "/objects?key=" + url.QueryEscape(key)
	}
	return m.baseURL + "/objects?" + m.signer.Query(key, publicLinkTTL, m.now()).Encode()
}

// Len reports how many objects are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
