package mdc

import (
	"fmt"
	"time"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/pathpolicy"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/resilience"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/security"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/wal"
)

// Config is the orchestrator's effective configuration. All fields have
// the defaults listed in defaultConfig; callers customize via Option.
type Config struct {
	DataRoot string

	Policy pathpolicy.Policy

	WALDir                  string
	WALMaxSegmentBytes      int64
	WALMaxSegmentAge        time.Duration
	WALSyncMode             wal.SyncMode
	WALSyncBatchSize        int
	WALMaxFlushDelay        time.Duration
	WALArchiveAfterTruncate bool
	WALArchiveEncryptor     security.Encryptor

	FlushThreshold          int
	MaxFlushDelay           time.Duration
	BackgroundFlushInterval time.Duration
	AutoTruncateWAL         bool

	PrimarySink Sink

	RetryPolicy    *resilience.RetryPolicy
	CircuitBreaker *resilience.CircuitBreaker

	// ShutdownFlushBudget bounds how long Close waits for the final flush
	// before logging "some data may be lost" and returning anyway. The WAL
	// itself is left untouched in that case — recovery on next start will
	// re-deliver the pending events.
	ShutdownFlushBudget time.Duration

	FailureHandler FailureHandler
	PanicOnFailure bool

	// MetricsEnabled turns on Prometheus recording (append/flush/WAL
	// corruption/breaker state) through the monitoring package. The
	// collectors themselves are always registered once this package links
	// monitoring; this flag only gates whether the orchestrator records
	// against them.
	MetricsEnabled bool

	// RetentionDays and RetentionMaxTotalMegabytes configure an optional
	// background sweep of DataRoot, mirroring storage.retention_days and
	// storage.max_total_megabytes. Both zero (the default) disables the
	// sweep entirely.
	RetentionDays              int
	RetentionMaxTotalMegabytes int64
	RetentionSweepInterval     time.Duration
}

// Option customizes a Config beyond its defaults.
type Option func(*Config) error

func WithDataRoot(path string) Option {
	return func(c *Config) error {
		if path == "" {
			return fmt.Errorf("mdc: data root must not be empty")
		}
		c.DataRoot = path
		return nil
	}
}

func WithPolicy(p pathpolicy.Policy) Option {
	return func(c *Config) error { c.Policy = p; return nil }
}

func WithWALDir(dir string) Option {
	return func(c *Config) error { c.WALDir = dir; return nil }
}

func WithWALMaxSegmentBytes(n int64) Option {
	return func(c *Config) error {
		if n <= 0 {
			return fmt.Errorf("mdc: wal max segment bytes must be positive")
		}
		c.WALMaxSegmentBytes = n
		return nil
	}
}

func WithWALMaxSegmentAge(d time.Duration) Option {
	return func(c *Config) error { c.WALMaxSegmentAge = d; return nil }
}

func WithWALSyncMode(m wal.SyncMode) Option {
	return func(c *Config) error { c.WALSyncMode = m; return nil }
}

func WithWALSyncBatchSize(n int) Option {
	return func(c *Config) error { c.WALSyncBatchSize = n; return nil }
}

func WithWALMaxFlushDelay(d time.Duration) Option {
	return func(c *Config) error { c.WALMaxFlushDelay = d; return nil }
}

func WithWALArchiveAfterTruncate(b bool) Option {
	return func(c *Config) error { c.WALArchiveAfterTruncate = b; return nil }
}

// WithWALArchiveEncryptor encrypts each gzip-archived WAL segment with enc.
// Requires WALArchiveAfterTruncate; has no effect otherwise.
func WithWALArchiveEncryptor(enc security.Encryptor) Option {
	return func(c *Config) error { c.WALArchiveEncryptor = enc; return nil }
}

func WithFlushThreshold(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return fmt.Errorf("mdc: flush threshold must be positive")
		}
		c.FlushThreshold = n
		return nil
	}
}

func WithMaxFlushDelay(d time.Duration) Option {
	return func(c *Config) error { c.MaxFlushDelay = d; return nil }
}

func WithBackgroundFlushInterval(d time.Duration) Option {
	return func(c *Config) error { c.BackgroundFlushInterval = d; return nil }
}

func WithAutoTruncateWAL(b bool) Option {
	return func(c *Config) error { c.AutoTruncateWAL = b; return nil }
}

// WithPrimarySink sets the sink the orchestrator delivers committed
// batches to. Required — New returns an error if it is never set.
func WithPrimarySink(s Sink) Option {
	return func(c *Config) error {
		if s == nil {
			return fmt.Errorf("mdc: primary sink must not be nil")
		}
		c.PrimarySink = s
		return nil
	}
}

func WithRetryPolicy(p *resilience.RetryPolicy) Option {
	return func(c *Config) error { c.RetryPolicy = p; return nil }
}

// WithCircuitBreaker wraps every sink flush attempt (after retries are
// exhausted or disabled) with a circuit breaker, so a persistently failing
// sink stops being hammered and instead fails fast until ResetTimeout
// elapses.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Config) error { c.CircuitBreaker = cb; return nil }
}

func WithShutdownFlushBudget(d time.Duration) Option {
	return func(c *Config) error { c.ShutdownFlushBudget = d; return nil }
}

// WithMetrics enables Prometheus recording of append/flush/WAL-corruption/
// circuit-breaker events through the monitoring package.
func WithMetrics(enabled bool) Option {
	return func(c *Config) error { c.MetricsEnabled = enabled; return nil }
}

// WithRetentionDays deletes sink output files older than days once the
// background retention sweep runs. 0 disables age-based pruning.
func WithRetentionDays(days int) Option {
	return func(c *Config) error {
		if days < 0 {
			return fmt.Errorf("mdc: retention days must not be negative")
		}
		c.RetentionDays = days
		return nil
	}
}

// WithRetentionMaxTotalMegabytes trims sink output oldest-first once its
// total size exceeds mb megabytes. 0 disables byte-budget pruning.
func WithRetentionMaxTotalMegabytes(mb int64) Option {
	return func(c *Config) error {
		if mb < 0 {
			return fmt.Errorf("mdc: retention max total megabytes must not be negative")
		}
		c.RetentionMaxTotalMegabytes = mb
		return nil
	}
}

// WithRetentionSweepInterval overrides how often the background retention
// sweep runs. Defaults to an hour; the retention package itself clamps the
// effective value up to its own minimum.
func WithRetentionSweepInterval(d time.Duration) Option {
	return func(c *Config) error { c.RetentionSweepInterval = d; return nil }
}

// WithFailureHandler registers a side-channel callback invoked whenever an
// append or flush fails, alongside the error returned to the caller.
func WithFailureHandler(h FailureHandler) Option {
	return func(c *Config) error { c.FailureHandler = h; return nil }
}

// WithPanicOnFailure makes an unrecoverable sink failure panic the calling
// goroutine instead of only returning an error. Intended for operators who
// would rather crash loudly than silently accumulate an unbounded WAL.
func WithPanicOnFailure() Option {
	return func(c *Config) error { c.PanicOnFailure = true; return nil }
}

func defaultConfig() Config {
	return Config{
		DataRoot:                "data",
		Policy:                  pathpolicy.Policy{NamingConvention: pathpolicy.BySymbol, DatePartition: pathpolicy.PartitionDaily},
		WALMaxSegmentBytes:      100 * 1024 * 1024,
		WALMaxSegmentAge:        time.Hour,
		WALSyncMode:             wal.BatchedSync,
		WALSyncBatchSize:        1000,
		WALMaxFlushDelay:        time.Second,
		WALArchiveAfterTruncate: true,
		FlushThreshold:          1000,
		MaxFlushDelay:           5 * time.Second,
		BackgroundFlushInterval: time.Second,
		AutoTruncateWAL:         true,
		ShutdownFlushBudget:     30 * time.Second,
		RetentionSweepInterval:  time.Hour,
	}
}

func (c Config) validate() error {
	if c.DataRoot == "" {
		return fmt.Errorf("mdc: data root is required")
	}
	if c.PrimarySink == nil {
		return fmt.Errorf("mdc: a primary sink is required (WithPrimarySink)")
	}
	if c.FlushThreshold <= 0 {
		return fmt.Errorf("mdc: flush threshold must be positive")
	}
	return nil
}
