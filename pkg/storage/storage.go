// Package storage defines the object-store boundary of the enrollment sync
// and its S3 and in-memory implementations.
package storage

import (
	"context"
	"errors"
)

// ContentTypeNDJSON is the media type of partition output objects.
const ContentTypeNDJSON = "application/x-ndjson"

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// ObjectStore puts whole objects by key. A put overwrites any existing
// object under the same key.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// ObjectReader reads whole objects back. It is used for verification and
// tests; the sync itself only writes.
type ObjectReader interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}
