// Package storage holds the byte stores behind the attachment manager.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrObjectNotFound is returned by Get when nothing is stored under the key
var ErrObjectNotFound = errors.New("object not found")

// Object is a stored blob with its content type
type Object struct {
	Data        []byte
	ContentType string
}

// Backend stores opaque blobs under slash-separated relative keys
type Backend interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (*Object, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Name() string
}

// ValidKey reports whether key is a clean relative path that stays inside the store
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	if path.Clean(key) != key {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return false
		}
	}
	return true
}
