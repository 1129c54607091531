package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/ccd-enrollment-sync/pkg/client"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/ndjson"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/partition"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrPageLimitExceeded is returned when a partition has more pages than
	// Config.MaxPages.
	ErrPageLimitExceeded = errors.New("page limit exceeded")

	// ErrCursorCycle is returned when the server repeats a "next" URL that was
	// already fetched for the same partition.
	ErrCursorCycle = errors.New("pagination cursor cycle")
)

// Prometheus metrics for pagination.
var (
	eduPagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edu_pages_fetched_total",
		Help: "Total API pages fetched successfully",
	})

	eduRecordsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edu_records_fetched_total",
		Help: "Total records accumulated from API pages",
	})

	eduPaginationAbortsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edu_pagination_aborts_total",
		Help: "Partitions whose pagination stopped early, by reason",
	}, []string{"reason"})
)

// Config holds paginator configuration.
type Config struct {
	// BaseURL is the enrollment endpoint root the first-page URL is built from
	BaseURL string

	// MaxPages is the safety ceiling on pages fetched per partition
	MaxPages int
}

// DefaultConfig returns the default paginator configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:  client.DefaultBaseURL,
		MaxPages: 10000,
	}
}

// PageGetter fetches a single page by URL. *client.Client implements it.
type PageGetter interface {
	GetPage(ctx context.Context, pageURL string) (*client.Page, error)
}

// Result is the outcome of paginating one partition.
type Result struct {
	Key partition.Key

	// Records in page-arrival then in-page order
	Records []ndjson.Record

	// Pages is the number of pages fetched successfully
	Pages int

	Duration time.Duration
}

// Paginator walks the cursor chain of one partition at a time.
type Paginator struct {
	getter PageGetter
	config Config
	logger zerolog.Logger
}

// NewPaginator creates a new paginator.
func NewPaginator(getter PageGetter, config Config) *Paginator {
	if config.MaxPages <= 0 {
		config.MaxPages = 10000
	}
	if config.BaseURL == "" {
		config.BaseURL = client.DefaultBaseURL
	}

	return &Paginator{
		getter: getter,
		config: config,
		logger: log.With().Str("component", "paginator").Logger(),
	}
}

// FetchAll fetches every page of the partition.
//
// The returned Result is never nil. On failure it holds the records
// accumulated from the pages fetched before the failing one (possibly
// none) and the error says why pagination stopped.
func (p *Paginator) FetchAll(ctx context.Context, key partition.Key) (*Result, error) {
	start := time.Now()
	result := &Result{Key: key, Records: []ndjson.Record{}}

	logger := p.logger.With().Int("year", key.Year).Str("grade", key.Grade).Logger()

	pageURL := key.EndpointURL(p.config.BaseURL)
	visited := make(map[string]struct{})

	for pageURL != "" {
		if result.Pages >= p.config.MaxPages {
			eduPaginationAbortsTotal.WithLabelValues("page_limit").Inc()
			logger.Error().
				Int("max_pages", p.config.MaxPages).
				Str("next", pageURL).
				Msg("Page limit reached with cursor still present")
			result.Duration = time.Since(start)
			return result, fmt.Errorf("partition %s: %w (max %d)", key, ErrPageLimitExceeded, p.config.MaxPages)
		}

		if _, seen := visited[pageURL]; seen {
			eduPaginationAbortsTotal.WithLabelValues("cursor_cycle").Inc()
			logger.Error().
				Str("next", pageURL).
				Int("page", result.Pages+1).
				Msg("Server repeated a pagination cursor")
			result.Duration = time.Since(start)
			return result, fmt.Errorf("partition %s: %w at %s", key, ErrCursorCycle, pageURL)
		}
		visited[pageURL] = struct{}{}

		page, err := p.getter.GetPage(ctx, pageURL)
		if err != nil {
			reason := string(client.ClassOf(err))
			if client.IsContextError(err) {
				reason = "cancelled"
			}
			if reason == "" {
				reason = "unknown"
			}
			eduPaginationAbortsTotal.WithLabelValues(reason).Inc()

			logger.Warn().
				Err(err).
				Str("url", pageURL).
				Int("page", result.Pages+1).
				Int("records", len(result.Records)).
				Msg("Page fetch failed - returning partial results")

			result.Duration = time.Since(start)
			return result, fmt.Errorf("partition %s page %d: %w", key, result.Pages+1, err)
		}

		result.Records = append(result.Records, page.Results...)
		result.Pages++
		eduPagesFetchedTotal.Inc()
		eduRecordsFetchedTotal.Add(float64(len(page.Results)))

		// Progress logging every 50 pages
		if result.Pages%50 == 0 {
			logger.Info().
				Int("pages", result.Pages).
				Int("records", len(result.Records)).
				Msg("Fetch progress")
		}

		pageURL = page.Next
	}

	result.Duration = time.Since(start)

	logger.Info().
		Int("pages", result.Pages).
		Int("records", len(result.Records)).
		Dur("duration", result.Duration).
		Msg("Fetch complete")

	return result, nil
}

// Fetch returns every record of the partition on a best-effort basis.
// Failures are logged and the records accumulated before the failure are
// returned; no error ever leaves this call.
func (p *Paginator) Fetch(ctx context.Context, year int, grade string) []ndjson.Record {
	result, err := p.FetchAll(ctx, partition.Key{Year: year, Grade: grade})
	if err != nil {
		p.logger.Warn().
			Err(err).
			Int("year", year).
			Str("grade", grade).
			Int("records", len(result.Records)).
			Msg("Partition fetch incomplete")
	}
	return result.Records
}
