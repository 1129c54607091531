package job

import (
	"time"

	"github.com/Sternrassler/ccd-enrollment-sync/pkg/partition"
)

// PartitionResult is the independent outcome of one partition.
type PartitionResult struct {
	Year      int              `json:"year"`
	Grade     string           `json:"grade"`
	ObjectKey string           `json:"object_key"`
	Status    partition.Status `json:"status"`
	Records   int              `json:"records"`
	Pages     int              `json:"pages"`
	Bytes     int              `json:"bytes"`
	Duration  time.Duration    `json:"duration_ns"`
	Error     string           `json:"error,omitempty"`
}

// Key returns the partition key of the result.
func (r PartitionResult) Key() partition.Key {
	return partition.Key{Year: r.Year, Grade: r.Grade}
}

// Report summarizes a run. Partitions are in work-set order.
type Report struct {
	StartedAt  time.Time         `json:"started_at"`
	Duration   time.Duration     `json:"duration_ns"`
	Partitions []PartitionResult `json:"partitions"`
}

// Counts tallies partitions by status.
func (r *Report) Counts() map[partition.Status]int {
	counts := make(map[partition.Status]int)
	for _, p := range r.Partitions {
		counts[p.Status]++
	}
	return counts
}

// Failed returns the partitions whose status is a failure.
func (r *Report) Failed() []PartitionResult {
	var failed []PartitionResult
	for _, p := range r.Partitions {
		if p.Status.Failed() {
			failed = append(failed, p)
		}
	}
	return failed
}

// Complete reports whether every partition finished without failure and
// none was skipped.
func (r *Report) Complete() bool {
	for _, p := range r.Partitions {
		if p.Status.Failed() || p.Status == partition.StatusSkipped {
			return false
		}
	}
	return true
}
