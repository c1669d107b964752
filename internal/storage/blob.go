package storage

import (
	"context"
	"errors"
	"io"
)

var ErrInvalidKey = errors.New("storage: invalid key")

// BlobStore keeps generated documents such as archived exports.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error) // returns canonical key
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	SignedURL(key string) (string, error) // fs returns "file://..." for dev
}
