// Package job drives a sync run: for every (year, grade) partition it
// fetches all records and writes them as one object, containing failures to
// the partition they happened in.
package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Sternrassler/ccd-enrollment-sync/pkg/client"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/ledger"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/ndjson"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/notify"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/pagination"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/partition"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/writer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	partitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_partitions_total",
		Help: "Partitions processed by final status",
	}, []string{"status"})

	partitionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "enrollment_partition_duration_seconds",
		Help:    "Fetch-and-write duration per partition",
		Buckets: []float64{0.5, 1, 5, 15, 60, 300, 900},
	})
)

// Fetcher returns all records of a partition. *pagination.Paginator
// implements it.
type Fetcher interface {
	FetchAll(ctx context.Context, key partition.Key) (*pagination.Result, error)
}

// PartitionWriter stores one partition's records. *writer.Writer
// implements it.
type PartitionWriter interface {
	Write(ctx context.Context, key partition.Key, records []ndjson.Record) (writer.Outcome, error)
	ObjectKey(key partition.Key) string
}

// Recorder stores partition outcomes. *ledger.Ledger implements it.
type Recorder interface {
	Record(ctx context.Context, entry ledger.Entry) error
}

// Config holds runner configuration.
type Config struct {
	// MaxConcurrency is the number of partitions processed in parallel
	// (1 = strictly sequential)
	MaxConcurrency int

	// WritePartial writes the records fetched before a transport or HTTP
	// failure. Page-limit, cursor-cycle and cancellation failures are never
	// written.
	WritePartial bool

	// Bucket is reported in completion events
	Bucket string
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 1,
		WritePartial:   true,
	}
}

// Runner processes partitions.
type Runner struct {
	fetcher  Fetcher
	writer   PartitionWriter
	recorder Recorder
	notifier notify.Notifier
	config   Config
	logger   zerolog.Logger
}

// Option configures optional Runner collaborators.
type Option func(*Runner)

// WithRecorder records every partition outcome (e.g. in the Redis ledger).
func WithRecorder(r Recorder) Option {
	return func(rn *Runner) { rn.recorder = r }
}

// WithNotifier publishes a completion event for every finished partition.
func WithNotifier(n notify.Notifier) Option {
	return func(rn *Runner) { rn.notifier = n }
}

// NewRunner creates a runner.
func NewRunner(fetcher Fetcher, w PartitionWriter, config Config, opts ...Option) *Runner {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}

	r := &Runner{
		fetcher: fetcher,
		writer:  w,
		config:  config,
		logger:  log.With().Str("component", "job").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// indexedResult carries a worker's result back to the collector.
type indexedResult struct {
	index  int
	result PartitionResult
}

// Run processes every partition of the request.
//
// The returned error is non-nil only for an invalid request, in which case
// no partition is attempted. Partition-level failures are reported in the
// Report. Partitions not started before ctx is done are reported as skipped.
func (r *Runner) Run(ctx context.Context, req Request) (*Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	keys := req.Partitions()
	report := &Report{
		StartedAt:  start.UTC(),
		Partitions: make([]PartitionResult, len(keys)),
	}

	workers := r.config.MaxConcurrency
	if workers > len(keys) {
		workers = len(keys)
	}

	r.logger.Info().
		Int("partitions", len(keys)).
		Int("workers", workers).
		Msg("Starting sync run")

	queue := make(chan int, len(keys))
	for i := range keys {
		queue <- i
	}
	close(queue)

	results := make(chan indexedResult, len(keys))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go r.worker(ctx, keys, queue, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		report.Partitions[res.index] = res.result
	}

	report.Duration = time.Since(start)

	counts := report.Counts()
	r.logger.Info().
		Int("written", counts[partition.StatusWritten]).
		Int("partial", counts[partition.StatusPartial]).
		Int("empty", counts[partition.StatusEmpty]).
		Int("fetch_failed", counts[partition.StatusFetchFailed]).
		Int("write_failed", counts[partition.StatusWriteFailed]).
		Int("skipped", counts[partition.StatusSkipped]).
		Dur("duration", report.Duration).
		Msg("Sync run complete")

	return report, nil
}

// worker processes partitions from the queue until it is drained.
func (r *Runner) worker(ctx context.Context, keys []partition.Key, queue <-chan int, results chan<- indexedResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for i := range queue {
		key := keys[i]

		var res PartitionResult
		if ctx.Err() != nil {
			res = PartitionResult{
				Year:      key.Year,
				Grade:     key.Grade,
				ObjectKey: r.writer.ObjectKey(key),
				Status:    partition.StatusSkipped,
				Error:     ctx.Err().Error(),
			}
			partitionsTotal.WithLabelValues(string(res.Status)).Inc()
		} else {
			res = r.processPartition(ctx, key)
			processed++
		}

		results <- indexedResult{index: i, result: res}
	}

	r.logger.Debug().
		Int("worker_id", workerID).
		Int("partitions_processed", processed).
		Msg("Worker completed")
}

// processPartition fetches then writes one partition. It never panics the
// run or returns an error: every failure ends up in the result.
func (r *Runner) processPartition(ctx context.Context, key partition.Key) PartitionResult {
	start := time.Now()
	res := PartitionResult{
		Year:      key.Year,
		Grade:     key.Grade,
		ObjectKey: r.writer.ObjectKey(key),
	}
	logger := r.logger.With().Int("year", key.Year).Str("grade", key.Grade).Logger()

	fetched, fetchErr := r.fetcher.FetchAll(ctx, key)
	var records []ndjson.Record
	if fetched != nil {
		records = fetched.Records
		res.Pages = fetched.Pages
	}
	res.Records = len(records)

	if fetchErr != nil {
		res.Error = fetchErr.Error()
		if !r.shouldWritePartial(fetchErr, records) {
			res.Status = partition.StatusFetchFailed
			logger.Warn().
				Err(fetchErr).
				Int("records", res.Records).
				Msg("Partition fetch failed - nothing written")
			return r.finish(ctx, res, start)
		}
		logger.Warn().
			Err(fetchErr).
			Int("records", res.Records).
			Msg("Partition fetch failed - writing partial results")
	}

	outcome, err := r.writer.Write(ctx, key, records)
	switch {
	case err != nil:
		res.Status = partition.StatusWriteFailed
		res.Error = err.Error()
		logger.Error().Err(err).Msg("Partition write failed")
	case !outcome.Written:
		res.Status = partition.StatusEmpty
	case fetchErr != nil:
		res.Status = partition.StatusPartial
		res.Bytes = outcome.Bytes
	default:
		res.Status = partition.StatusWritten
		res.Bytes = outcome.Bytes
	}

	return r.finish(ctx, res, start)
}

func (r *Runner) shouldWritePartial(err error, records []ndjson.Record) bool {
	if !r.config.WritePartial || len(records) == 0 {
		return false
	}
	if errors.Is(err, pagination.ErrPageLimitExceeded) || errors.Is(err, pagination.ErrCursorCycle) {
		return false
	}
	if client.IsContextError(err) {
		return false
	}
	return true
}

// finish stamps the duration, updates metrics and reports the result to the
// optional recorder and notifier. Their failures are logged only.
func (r *Runner) finish(ctx context.Context, res PartitionResult, start time.Time) PartitionResult {
	res.Duration = time.Since(start)
	partitionsTotal.WithLabelValues(string(res.Status)).Inc()
	partitionDuration.Observe(res.Duration.Seconds())

	// outlive a cancelled run context so the outcome is still recorded
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if r.recorder != nil {
		entry := ledger.Entry{
			Year:      res.Year,
			Grade:     res.Grade,
			Status:    res.Status,
			Records:   res.Records,
			Pages:     res.Pages,
			ObjectKey: res.ObjectKey,
			Bytes:     res.Bytes,
			Error:     res.Error,
		}
		if err := r.recorder.Record(sideCtx, entry); err != nil {
			r.logger.Warn().Err(err).Str("partition", res.Key().String()).Msg("Failed to record partition outcome")
		}
	}

	if r.notifier != nil && (res.Status.Wrote() || res.Status == partition.StatusEmpty) {
		event := notify.Event{
			Year:      res.Year,
			Grade:     res.Grade,
			Status:    res.Status,
			Bucket:    r.config.Bucket,
			ObjectKey: res.ObjectKey,
			Records:   res.Records,
			Bytes:     res.Bytes,
		}
		if err := r.notifier.Notify(sideCtx, event); err != nil {
			r.logger.Warn().Err(err).Str("partition", res.Key().String()).Msg("Failed to publish partition event")
		}
	}

	return res
}
