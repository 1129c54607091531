// Package config loads the sync configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/ccd-enrollment-sync/pkg/client"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/logging"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/ndjson"
	"github.com/Sternrassler/ccd-enrollment-sync/pkg/notify"
)

// ErrMissingBucket is returned when S3_BUCKET is unset.
var ErrMissingBucket = errors.New("S3_BUCKET is required")

// Config holds the full process configuration.
type Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string

	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	MaxPages       int
	MaxConcurrency int
	WritePartial   bool
	Style          ndjson.Style

	// RedisURL enables the partition ledger when set
	RedisURL string

	// AMQPURL enables completion events when set
	AMQPURL      string
	AMQPExchange string

	// PushgatewayURL pushes run metrics at the end of each invocation when set
	PushgatewayURL string

	LogLevel  logging.LogLevel
	LogPretty bool
}

// DefaultConfig returns the configuration used for unset variables.
func DefaultConfig() Config {
	return Config{
		BaseURL:        client.DefaultBaseURL,
		UserAgent:      "ccd-enrollment-sync/0.1.0",
		Timeout:        30 * time.Second,
		MaxPages:       10000,
		MaxConcurrency: 1,
		WritePartial:   true,
		Style:          ndjson.StyleSpaced,
		AMQPExchange:   notify.DefaultConfig().Exchange,
		LogLevel:       logging.LevelInfo,
	}
}

// FromEnv loads the configuration from the process environment.
func FromEnv() (Config, error) {
	return Load(os.Getenv)
}

// Load builds a Config from getenv. Malformed values are errors rather than
// silently falling back to defaults.
func Load(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()
	p := parser{getenv: getenv}

	cfg.Bucket = strings.TrimSpace(getenv("S3_BUCKET"))
	cfg.Prefix = p.str("S3_PREFIX", cfg.Prefix)
	cfg.Region = p.str("AWS_REGION", cfg.Region)
	cfg.Endpoint = p.str("S3_ENDPOINT", cfg.Endpoint)
	cfg.BaseURL = p.str("EDU_API_BASE_URL", cfg.BaseURL)
	cfg.UserAgent = p.str("USER_AGENT", cfg.UserAgent)
	cfg.Timeout = p.duration("HTTP_TIMEOUT", cfg.Timeout)
	cfg.MaxPages = p.positiveInt("MAX_PAGES", cfg.MaxPages)
	cfg.MaxConcurrency = p.positiveInt("MAX_CONCURRENCY", cfg.MaxConcurrency)
	cfg.WritePartial = p.boolean("WRITE_PARTIAL", cfg.WritePartial)
	cfg.RedisURL = p.str("REDIS_URL", cfg.RedisURL)
	cfg.AMQPURL = p.str("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = p.str("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.PushgatewayURL = p.str("PUSHGATEWAY_URL", cfg.PushgatewayURL)
	if raw := getenv("LOG_LEVEL"); raw != "" {
		level, ok := logging.ParseLevel(raw)
		if !ok {
			p.fail("LOG_LEVEL", raw, errors.New("want debug, info, warn or error"))
		}
		cfg.LogLevel = level
	}
	cfg.LogPretty = p.boolean("LOG_PRETTY", cfg.LogPretty)

	if raw := getenv("NDJSON_STYLE"); raw != "" {
		style, err := ndjson.ParseStyle(raw)
		if err != nil {
			p.fail("NDJSON_STYLE", raw, err)
		}
		cfg.Style = style
	}

	if p.err != nil {
		return Config{}, p.err
	}
	if cfg.Bucket == "" {
		return Config{}, ErrMissingBucket
	}
	return cfg, nil
}

// Logging returns the logger configuration writing to out.
func (c Config) Logging(out io.Writer) logging.Config {
	return logging.Config{Level: c.LogLevel, Pretty: c.LogPretty, Output: out}
}

// Client returns the API client configuration.
func (c Config) Client() client.Config {
	cfg := client.DefaultConfig(c.UserAgent)
	cfg.BaseURL = c.BaseURL
	cfg.Timeout = c.Timeout
	return cfg
}

// parser keeps the first error so Load can report it after reading every
// variable.
type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) fail(name, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
}

func (p *parser) str(name, def string) string {
	if v := strings.TrimSpace(p.getenv(name)); v != "" {
		return v
	}
	return def
}

func (p *parser) positiveInt(name string, def int) int {
	raw := strings.TrimSpace(p.getenv(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(name, raw, err)
		return def
	}
	if n <= 0 {
		p.fail(name, raw, errors.New("must be positive"))
		return def
	}
	return n
}

func (p *parser) boolean(name string, def bool) bool {
	raw := strings.TrimSpace(p.getenv(name))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(name, raw, err)
		return def
	}
	return b
}

// duration accepts Go duration strings ("45s") or a bare number of seconds.
func (p *parser) duration(name string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(p.getenv(name))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		secs, convErr := strconv.Atoi(raw)
		if convErr != nil {
			p.fail(name, raw, err)
			return def
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 {
		p.fail(name, raw, errors.New("must be positive"))
		return def
	}
	return d
}
