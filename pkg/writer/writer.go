// Package writer persists one partition's records as a single
// newline-delimited JSON object.
package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/ccd-enrollment-sync/pkg/ndjson"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/partition"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for partition writes.
var (
	objectsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enrollment_objects_written_total",
		Help: "Total partition objects written to storage",
	})

	objectBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "enrollment_object_bytes",
		Help:    "Size of written partition objects in bytes",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})

	writeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_write_errors_total",
		Help: "Total partition write failures by stage",
	}, []string{"stage"})
)

// Outcome describes what Write did.
type Outcome struct {
	// Written is false when the record sequence was empty and nothing was stored
	Written bool

	ObjectKey string
	Records   int
	Bytes     int
	Duration  time.Duration
}

// Config holds writer configuration.
type Config struct {
	// Prefix nests every object key under a common path ("" = bucket root)
	Prefix string

	// Style selects the per-record JSON layout
	Style ndjson.Style
}

// DefaultConfig returns the default writer configuration.
func DefaultConfig() Config {
	return Config{
		Style: ndjson.StyleSpaced,
	}
}

// Writer serializes and stores partition results.
type Writer struct {
	store  storage.ObjectStore
	config Config
	logger zerolog.Logger
}

// New creates a writer backed by store. The store is shared by every
// partition of a run and is never rebuilt by the writer.
func New(store storage.ObjectStore, config Config) (*Writer, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if config.Style == "" {
		config.Style = ndjson.StyleSpaced
	}
	if _, err := ndjson.ParseStyle(string(config.Style)); err != nil {
		return nil, err
	}

	return &Writer{
		store:  store,
		config: config,
		logger: log.With().Str("component", "partition-writer").Logger(),
	}, nil
}

// ObjectKey returns the storage key used for the partition.
func (w *Writer) ObjectKey(key partition.Key) string {
	return key.ObjectKeyWithPrefix(w.config.Prefix)
}

// Write stores records as one object under the partition's key.
// An empty record sequence performs no storage call.
func (w *Writer) Write(ctx context.Context, key partition.Key, records []ndjson.Record) (Outcome, error) {
	start := time.Now()
	outcome := Outcome{ObjectKey: w.ObjectKey(key), Records: len(records)}

	if len(records) == 0 {
		w.logger.Info().
			Int("year", key.Year).
			Str("grade", key.Grade).
			Str("object_key", outcome.ObjectKey).
			Msg("No records - skipping write")
		return outcome, nil
	}

	body, err := ndjson.Encode(records, w.config.Style)
	if err != nil {
		writeErrorsTotal.WithLabelValues("encode").Inc()
		return outcome, fmt.Errorf("encode partition %s: %w", key, err)
	}

	if err := w.store.PutObject(ctx, outcome.ObjectKey, body, storage.ContentTypeNDJSON); err != nil {
		writeErrorsTotal.WithLabelValues("put").Inc()
		w.logger.Error().
			Err(err).
			Int("year", key.Year).
			Str("grade", key.Grade).
			Str("object_key", outcome.ObjectKey).
			Msg("Partition write failed")
		return outcome, fmt.Errorf("write partition %s: %w", key, err)
	}

	outcome.Written = true
	outcome.Bytes = len(body)
	outcome.Duration = time.Since(start)

	objectsWrittenTotal.Inc()
	objectBytes.Observe(float64(len(body)))

	w.logger.Info().
		Int("year", key.Year).
		Str("grade", key.Grade).
		Str("object_key", outcome.ObjectKey).
		Int("records", outcome.Records).
		Int("bytes", outcome.Bytes).
		Dur("duration", outcome.Duration).
		Msg("Partition written")

	return outcome, nil
}
