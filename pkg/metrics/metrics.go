// Package metrics provides the Prometheus registry used by the sync and the
// Pushgateway hook that ships it at the end of an invocation.
// All metrics are defined in their respective packages (client, pagination,
// writer, ledger, notify, job) to maintain modularity and avoid circular
// dependencies.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry is the default Prometheus registry used by the sync.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer paired with Registry.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// DefaultJob is the Pushgateway job name.
const DefaultJob = "ccd_enrollment_sync"

// Pusher ships collected metrics to a Prometheus Pushgateway. A Lambda
// invocation is too short-lived to be scraped.
type Pusher struct {
	pusher *push.Pusher
	url    string
}

// NewPusher creates a pusher for the given Pushgateway URL and job.
func NewPusher(url, job string) (*Pusher, error) {
	if url == "" {
		return nil, fmt.Errorf("pushgateway url is required")
	}
	if job == "" {
		job = DefaultJob
	}
	return &Pusher{
		pusher: push.New(url, job).Gatherer(Gatherer),
		url:    url,
	}, nil
}

// Grouping adds a grouping label to every push.
func (p *Pusher) Grouping(name, value string) *Pusher {
	p.pusher = p.pusher.Grouping(name, value)
	return p
}

// Push replaces the job's metrics on the Pushgateway.
func (p *Pusher) Push(ctx context.Context) error {
	if err := p.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", p.url, err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - edu_requests_total{status} (Counter): Page requests by HTTP status
//   - edu_request_duration_seconds (Histogram): Page request duration
//   - edu_errors_total{class} (Counter): Errors by class (client, server, network, protocol)
//
// Pagination Metrics (pkg/pagination):
//   - edu_pages_fetched_total (Counter): Pages fetched successfully
//   - edu_records_fetched_total (Counter): Records accumulated from pages
//   - edu_pagination_aborts_total{reason} (Counter): Partitions whose pagination stopped early
//
// Storage Metrics (pkg/writer):
//   - enrollment_objects_written_total (Counter): Objects stored
//   - enrollment_object_bytes (Histogram): Stored object size
//   - enrollment_write_errors_total{stage} (Counter): Failed writes by stage (encode, put)
//
// Ledger Metrics (pkg/ledger):
//   - enrollment_ledger_errors_total{operation} (Counter): Redis ledger operation errors
//
// Event Metrics (pkg/notify):
//   - enrollment_notifications_total{result} (Counter): Completion events by publish result
//
// Run Metrics (pkg/job):
//   - enrollment_partitions_total{status} (Counter): Partitions by final status
//   - enrollment_partition_duration_seconds (Histogram): Fetch-and-write duration per partition
//
// Example Prometheus Queries:
//
//   # Partition Failure Rate
//   sum(rate(enrollment_partitions_total{status=~"fetch_failed|write_failed|partial"}[1h])) /
//   sum(rate(enrollment_partitions_total[1h]))
//
//   # Server Error Rate
//   rate(edu_errors_total{class="server"}[5m])
//
//   # P95 Page Latency
//   histogram_quantile(0.95, rate(edu_request_duration_seconds_bucket[5m]))
//
//   # Records Per Page
//   rate(edu_records_fetched_total[1h]) / rate(edu_pages_fetched_total[1h])
