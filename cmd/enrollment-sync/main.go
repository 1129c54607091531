// Command enrollment-sync is the Lambda entry point that copies CCD
// enrollment partitions from the Education Data API into S3.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Sternrassler/ccd-enrollment-sync/internal/config"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/client"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/job"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/ledger"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/logging"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/metrics"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/notify"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/pagination"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/partition"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/storage"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/writer"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logging.Setup(logging.DefaultConfig())
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logging.Setup(cfg.Logging(os.Stderr))

	// built once per cold start and reused by every invocation
	svc, err := newService(context.Background(), cfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer svc.Close()

	lambda.Start(svc.Handle)
}

// Response is returned to the invoker.
type Response struct {
	Complete   bool                     `json:"complete"`
	Counts     map[partition.Status]int `json:"counts"`
	Duration   time.Duration            `json:"duration_ns"`
	Partitions []job.PartitionResult    `json:"partitions"`
}

// service holds the collaborators shared across invocations.
type service struct {
	runner *job.Runner
	client *client.Client
	redis  *redis.Client
	events *notify.Publisher
	pusher *metrics.Pusher
	logger zerolog.Logger
}

// newService wires the sync from cfg. A nil store builds the S3 store.
// The ledger and event publisher are optional; a broker that cannot be
// reached at cold start disables events instead of failing the function.
func newService(ctx context.Context, cfg config.Config, store storage.ObjectStore) (*service, error) {
	svc := &service{logger: logging.NewLogger("lambda")}

	if store == nil {
		s3Store, err := storage.NewS3StoreFromConfig(ctx, storage.S3Config{
			Bucket:   cfg.Bucket,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		store = s3Store
	}

	c, err := client.New(cfg.Client())
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}
	svc.client = c

	paginator := pagination.NewPaginator(c, pagination.Config{
		BaseURL:  cfg.BaseURL,
		MaxPages: cfg.MaxPages,
	})

	w, err := writer.New(store, writer.Config{Prefix: cfg.Prefix, Style: cfg.Style})
	if err != nil {
		svc.Close()
		return nil, fmt.Errorf("create writer: %w", err)
	}

	var opts []job.Option

	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		svc.redis = redis.NewClient(redisOpts)
		l := ledger.New(svc.redis, ledger.DefaultConfig())

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := l.Ping(pingCtx); err != nil {
			svc.logger.Warn().Err(err).Msg("Ledger unreachable at startup - outcomes may not be recorded")
		}
		cancel()

		opts = append(opts, job.WithRecorder(l))
		svc.logger.Info().Str("addr", redisOpts.Addr).Msg("Partition ledger enabled")
	}

	if cfg.AMQPURL != "" {
		events, err := notify.Dial(notify.Config{URL: cfg.AMQPURL, Exchange: cfg.AMQPExchange})
		if err != nil {
			svc.logger.Warn().Err(err).Msg("Event publisher disabled")
		} else {
			svc.events = events
			opts = append(opts, job.WithNotifier(events))
			svc.logger.Info().Str("exchange", cfg.AMQPExchange).Msg("Completion events enabled")
		}
	}

	if cfg.PushgatewayURL != "" {
		pusher, err := metrics.NewPusher(cfg.PushgatewayURL, metrics.DefaultJob)
		if err != nil {
			svc.Close()
			return nil, err
		}
		svc.pusher = pusher
	}

	svc.runner = job.NewRunner(paginator, w, job.Config{
		MaxConcurrency: cfg.MaxConcurrency,
		WritePartial:   cfg.WritePartial,
		Bucket:         cfg.Bucket,
	}, opts...)

	svc.logger.Info().
		Str("bucket", cfg.Bucket).
		Str("prefix", cfg.Prefix).
		Str("base_url", cfg.BaseURL).
		Int("max_concurrency", cfg.MaxConcurrency).
		Msg("Initialized")

	return svc, nil
}

// Handle runs one sync invocation. Partition failures are reported in the
// response; only an invalid payload fails the invocation.
func (s *service) Handle(ctx context.Context, req job.Request) (Response, error) {
	report, err := s.runner.Run(ctx, req)
	if err != nil {
		s.logger.Error().Err(err).Msg("Rejected invocation")
		return Response{}, err
	}

	if s.pusher != nil {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := s.pusher.Push(pushCtx); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to push metrics")
		}
		cancel()
	}

	return Response{
		Complete:   report.Complete(),
		Counts:     report.Counts(),
		Duration:   report.Duration,
		Partitions: report.Partitions,
	}, nil
}

// Close releases connections held by the service.
func (s *service) Close() {
	if s.client != nil {
		s.client.Close()
	}
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close event publisher")
		}
	}
	if s.redis != nil {
		s.redis.Close()
	}
}
