// Package storage provides persistent object storage for recorded audio.
// It defines the ObjectStore interface (port) and implementations backed by
// the local disk and by an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var (
	// ErrObjectNotFound is returned when a key has no stored object.
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrInvalidKey is returned for empty, absolute or traversing keys.
	ErrInvalidKey = errors.New("storage: invalid object key")
)

// ObjectStore stores opaque blobs under slash-separated keys.
type ObjectStore interface {
	// Put stores data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get opens the object stored under key.
	// The caller is responsible for closing the returned ReadCloser.
	// Returns ErrObjectNotFound if nothing is stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the given keys. Missing keys are ignored.
	// It continues past failures and returns the first error encountered.
	Delete(ctx context.Context, keys ...string) error
}

// ValidateKey rejects keys that could escape the store's namespace.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	if path.Clean(key) != key {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return ErrInvalidKey
		}
	}
	return nil
}
