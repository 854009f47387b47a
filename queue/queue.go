package queue

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config bounds background parse admission.
type Config struct {
	// MaxConcurrency limits how many background parses may run at once.
	// Zero means no concurrency limit.
	MaxConcurrency int

	// RateLimit is the maximum sustained background parse starts per
	// second. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// Manager is the admission gate in front of the background parse pool.
// A job whose source resource is background-safe still only parses off
// the main loop if the gate admits it; a refused job parses on the main
// loop instead. Safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	config  Config
	limiter *rate.Limiter
	active  int
}

// NewManager creates an admission gate with the given bounds.
func NewManager(cfg Config) *Manager {
	m := &Manager{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return m
}

// Acquire asks to start one background parse. If admitted it increments
// the active counter and returns true; the caller MUST call Release when
// the parse finishes. A refusal is not an error, it means "parse on the
// main loop this time".
func (m *Manager) Acquire() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Concurrency first, so a refusal on that ground does not burn a
	// rate token.
	if m.config.MaxConcurrency > 0 && m.active >= m.config.MaxConcurrency {
		return false
	}
	if m.limiter != nil && !m.limiter.Allow() {
		return false
	}
	m.active++
	return true
}

// Release records the end of one background parse.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active > 0 {
		m.active--
	}
}

// SetConfig replaces the gate's bounds, preserving the active count.
func (m *Manager) SetConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = cfg
	m.limiter = nil
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
}

// Active returns the number of background parses currently admitted.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}
