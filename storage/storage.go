// Package storage provides the object-store abstraction the job reads its
// inputs from and publishes artifacts to.
//
// Keys are slash-separated and relative to the store root. List returns the
// keys under a prefix in lexical order so that readers see a deterministic
// file sequence.
package storage

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/YuminosukeSato/bikeshare/pkg/errors"
)

// ErrNotFound is returned by Get for a key that does not exist.
var ErrNotFound = errors.New("object not found")

// Store is a key/blob object store.
type Store interface {
	// List returns every key below prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Get returns the bytes stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores data under key, replacing any previous object.
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Open returns a Store for location. A plain path or a file:// URL yields a
// LocalStore rooted there; mem:// yields an empty MemoryStore.
func Open(location string) (Store, error) {
	if location == "" {
		return nil, errors.NewValidationError("location", "must not be empty", location)
	}
	if !strings.Contains(location, "://") {
		return NewLocalStore(location), nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return nil, errors.Wrapf(err, "parse location %q", location)
	}
	switch u.Scheme {
	case "file":
		return NewLocalStore(u.Host + u.Path), nil
	case "mem":
		return NewMemoryStore(), nil
	default:
		return nil, errors.NewValidationError("location", "unsupported scheme "+u.Scheme, location)
	}
}

// Join builds a key from parts, dropping empty elements.
func Join(parts ...string) string {
	return strings.TrimPrefix(path.Join(parts...), "/")
}

// Base returns the last element of key.
func Base(key string) string {
	return path.Base(key)
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" || prefix == "." {
		return ""
	}
	return prefix + "/"
}
