// Package ledger records the outcome of every processed partition in Redis,
// so downstream consumers can tell an empty partition from one that was never
// processed.
package ledger

import (
	"fmt"
	"time"

	"github.com/Sternrassler/ccd-enrollment-sync/pkg/partition"
)

// Entry is the stored outcome of one partition.
type Entry struct {
	Year  int    `json:"year"`
	Grade string `json:"grade"`

	// Status is the final partition status
	Status partition.Status `json:"status"`

	// Records is the number of records fetched (written only when Status is written)
	Records int `json:"records"`

	// Pages is the number of pages fetched successfully
	Pages int `json:"pages"`

	// ObjectKey is the storage key the partition maps to
	ObjectKey string `json:"object_key"`

	// Bytes is the size of the written object (0 when nothing was written)
	Bytes int `json:"bytes"`

	// Error holds the failure description for failed partitions
	Error string `json:"error,omitempty"`

	// UpdatedAt is when the partition finished
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the partition the entry belongs to.
func (e *Entry) Key() partition.Key {
	return partition.Key{Year: e.Year, Grade: e.Grade}
}

// IsStale returns true if the entry is older than maxAge.
func (e *Entry) IsStale(maxAge time.Duration) bool {
	return time.Since(e.UpdatedAt) > maxAge
}

// entryKey returns the Redis key of a partition entry.
//
// Format: {prefix}:partition:{year}:{grade}
func entryKey(prefix string, k partition.Key) string {
	return fmt.Sprintf("%s:partition:%d:%s", prefix, k.Year, k.Grade)
}

// indexKey returns the Redis set listing every recorded entry key.
func indexKey(prefix string) string {
	return prefix + ":partitions"
}
