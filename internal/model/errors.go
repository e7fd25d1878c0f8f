package model

import (
	"errors"
	"fmt"
)

// Error kinds shared by the stores, services and HTTP layer. Callers compare
// them with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrRead         = errors.New("store read failed")
	ErrWrite        = errors.New("store write failed")
	ErrUpload       = errors.New("upload failed")
)

// WrapError tags err with a kind and the failing operation.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
