package tide

import "time"

// Config holds configuration for the compilation engine.
type Config struct {
	// StackLimit is the per-job stack budget, in estimated stack slots.
	// It bounds recursion during parsing, scope analysis, and code
	// generation. Supplied to every job at construction; jobs never read
	// process-wide state.
	StackLimit int

	// Concurrency is the maximum number of background parse workers.
	Concurrency int

	// MaxRetries is how many times the engine re-runs a job that failed
	// with an internal (non-source) error before giving up.
	MaxRetries int

	// ParseRateLimit is the maximum sustained background parses per
	// second. Zero disables rate limiting.
	ParseRateLimit float64

	// ParseRateBurst is the burst size for the parse rate limiter.
	// Defaults to 1 if ParseRateLimit is set but ParseRateBurst is zero.
	ParseRateBurst int

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		StackLimit:      4096,
		Concurrency:     4,
		MaxRetries:      3,
		ShutdownTimeout: 30 * time.Second,
	}
}
