// Package storage archives benchmark reports to object storage.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts object storage operations.
// Implementations are S3 and the local filesystem.
type ObjectStorage interface {
	// Put writes the contents of r to key, replacing any existing object.
	Put(ctx context.Context, key string, r io.Reader) error

	// Get opens the object at key. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists.
	Exists(ctx context.Context, key string) (bool, error)

	// ListObjects returns all keys under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// PrefixedStorage wraps an ObjectStorage and prepends a prefix to every key.
type PrefixedStorage struct {
	inner  ObjectStorage
	prefix string
}

// NewPrefixedStorage returns inner unchanged when prefix is empty.
func NewPrefixedStorage(inner ObjectStorage, prefix string) ObjectStorage {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return inner
	}
	return &PrefixedStorage{inner: inner, prefix: prefix}
}

func (s *PrefixedStorage) key(k string) string {
	return s.prefix + "/" + strings.TrimLeft(k, "/")
}

func (s *PrefixedStorage) Put(ctx context.Context, key string, r io.Reader) error {
	return s.inner.Put(ctx, s.key(key), r)
}

func (s *PrefixedStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.inner.Get(ctx, s.key(key))
}

func (s *PrefixedStorage) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.key(key))
}

func (s *PrefixedStorage) Exists(ctx context.Context, key string) (bool, error) {
	return s.inner.Exists(ctx, s.key(key))
}

// ListObjects lists under the prefixed path and strips the prefix from the results.
func (s *PrefixedStorage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	objects, err := s.inner.ListObjects(ctx, s.key(prefix))
	if err != nil {
		return nil, err
	}
	stripped := make([]string, len(objects))
	for i, obj := range objects {
		stripped[i] = strings.TrimPrefix(obj, s.prefix+"/")
	}
	return stripped, nil
}
