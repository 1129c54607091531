package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Sternrassler/ccd-enrollment-sync/pkg/partition"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotRecorded indicates no entry exists for the partition
	ErrNotRecorded = errors.New("partition not recorded")

	// ErrInvalidEntry indicates the stored entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid ledger entry")
)

// ledgerErrorsTotal tracks Redis operation errors.
var ledgerErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "enrollment_ledger_errors_total",
		Help: "Total number of ledger operation errors",
	},
	[]string{"operation"}, // "record", "get", "list", "delete"
)

// Config holds ledger configuration.
type Config struct {
	// KeyPrefix namespaces every Redis key
	KeyPrefix string

	// TTL expires entries after the given duration (0 = keep forever)
	TTL time.Duration
}

// DefaultConfig returns the default ledger configuration.
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "enrollment",
	}
}

// Ledger stores partition outcomes in Redis.
type Ledger struct {
	redis  *redis.Client
	config Config
}

// New creates a new ledger with Redis backend.
func New(redisClient *redis.Client, config Config) *Ledger {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "enrollment"
	}
	return &Ledger{
		redis:  redisClient,
		config: config,
	}
}

// Record stores the entry, replacing any previous entry of the partition.
func (l *Ledger) Record(ctx context.Context, entry Entry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		ledgerErrorsTotal.WithLabelValues("record").Inc()
		return fmt.Errorf("marshal ledger entry: %w", err)
	}

	key := entryKey(l.config.KeyPrefix, entry.Key())

	pipe := l.redis.TxPipeline()
	pipe.Set(ctx, key, data, l.config.TTL)
	pipe.SAdd(ctx, indexKey(l.config.KeyPrefix), key)
	if _, err := pipe.Exec(ctx); err != nil {
		ledgerErrorsTotal.WithLabelValues("record").Inc()
		return fmt.Errorf("store ledger entry in redis: %w", err)
	}

	return nil
}

// Get returns the entry of a partition.
// Returns ErrNotRecorded if the partition has no entry.
func (l *Ledger) Get(ctx context.Context, k partition.Key) (*Entry, error) {
	data, err := l.redis.Get(ctx, entryKey(l.config.KeyPrefix, k)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotRecorded
		}
		ledgerErrorsTotal.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		ledgerErrorsTotal.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	return &entry, nil
}

// List returns every recorded entry ordered by year, then grade.
// Index members whose entry expired are pruned from the index.
func (l *Ledger) List(ctx context.Context) ([]Entry, error) {
	idx := indexKey(l.config.KeyPrefix)

	keys, err := l.redis.SMembers(ctx, idx).Result()
	if err != nil {
		ledgerErrorsTotal.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	if len(keys) == 0 {
		return []Entry{}, nil
	}
	sort.Strings(keys)

	values, err := l.redis.MGet(ctx, keys...).Result()
	if err != nil {
		ledgerErrorsTotal.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	entries := make([]Entry, 0, len(values))
	var expired []interface{}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			expired = append(expired, keys[i])
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(s), &entry); err != nil {
			ledgerErrorsTotal.WithLabelValues("list").Inc()
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEntry, keys[i], err)
		}
		entries = append(entries, entry)
	}

	if len(expired) > 0 {
		if err := l.redis.SRem(ctx, idx, expired...).Err(); err != nil {
			ledgerErrorsTotal.WithLabelValues("list").Inc()
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Year != entries[j].Year {
			return entries[i].Year < entries[j].Year
		}
		return entries[i].Grade < entries[j].Grade
	})

	return entries, nil
}

// Delete removes the entry of a partition.
func (l *Ledger) Delete(ctx context.Context, k partition.Key) error {
	key := entryKey(l.config.KeyPrefix, k)

	pipe := l.redis.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, indexKey(l.config.KeyPrefix), key)
	if _, err := pipe.Exec(ctx); err != nil {
		ledgerErrorsTotal.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// Ping checks the Redis connection.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.redis.Ping(ctx).Err()
}
