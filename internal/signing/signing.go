// Package signing implements the HMAC helper behind signed object URLs served
// by the memory storage backend.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Signer generates and validates HMAC based signatures.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Sign returns the hex signature for an object key and expiry.
func (s *Signer) Sign(key string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	payload := fmt.Sprintf("%s:%d", key, expiresUnix)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Validate checks the signature and rejects links past their expiry.
func (s *Signer) Validate(key, expires, signature string, now time.Time) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return false
	}
	if now.Unix() > exp {
		return false
	}
	expected := s.Sign(key, exp)
	// constant time
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Query builds the key/expires/signature query string for a link valid
// until now+ttl.
func (s *Signer) Query(key string, ttl time.Duration, now time.Time) url.Values {
	exp := now.Add(ttl).Unix()
	q := url.Values{}
	q.Set("key", key)
	q.Set("expires", strconv.FormatInt(exp, 10))
	q.Set("signature", s.Sign(key, exp))
	return q
}
