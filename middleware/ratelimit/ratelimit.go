// Package ratelimit provides a fixed-window request limiter for go-router
// handlers. Counters live in a pluggable Storage; the bundled in-memory
// implementation is safe for concurrent use and sweeps stale windows in the
// background.
package ratelimit

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/goliatone/go-router"
)

var ErrLimitExceeded = errors.New("rate limit exceeded")

// DefaultMax is the default number of requests allowed per window
const DefaultMax = 100

// DefaultWindow is the default fixed window duration
const DefaultWindow = 15 * time.Minute

// DefaultSweepInterval is how often the in-memory storage drops stale windows
const DefaultSweepInterval = time.Minute

// HeaderLimit and friends are the response headers the middleware sets on
// every counted request.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Config defines the configuration for the rate limit middleware
type Config struct {
	// Skip defines a function to skip middleware
	Skip func(router.Context) bool

	// Max is the number of requests allowed inside a single window
	Max int

	// Window is the fixed window duration. The first request for a key opens
	// the window; the counter resets when it elapses.
	Window time.Duration

	// KeyGenerator derives the counter key from the request. Defaults to the
	// client IP.
	KeyGenerator func(router.Context) string

	// Storage holds the counters. If nil an in-memory storage is created.
	Storage Storage

	// ErrorHandler defines the error handler
	ErrorHandler router.ErrorHandler

	// SuccessHandler defines the success handler
	SuccessHandler router.HandlerFunc

	// DisableHeaders stops the middleware from setting X-RateLimit-* headers
	DisableHeaders bool
}

// Storage counts requests per key within fixed windows
type Storage interface {
	// Increment adds one request to the key's current window, opening a new
	// window when none is live, and returns the updated count plus the
	// window's reset time.
	Increment(key string, window time.Duration) (count int, resetAt time.Time, err error)

	// Reset drops the counter for a key
	Reset(key string) error
}

// New creates a new fixed-window rate limit middleware. The config is
// resolved once, so every route wrapped by the returned middleware shares the
// same Storage and counts against the same key.
func New(config ...Config) router.MiddlewareFunc {
	cfg := configDefault(config...)

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			key := cfg.KeyGenerator(ctx)

			count, resetAt, err := cfg.Storage.Increment(key, cfg.Window)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if !cfg.DisableHeaders {
				remaining := cfg.Max - count
				if remaining < 0 {
					remaining = 0
				}
				ctx.SetHeader(HeaderLimit, strconv.Itoa(cfg.Max))
				ctx.SetHeader(HeaderRemaining, strconv.Itoa(remaining))
				ctx.SetHeader(HeaderReset, strconv.FormatInt(resetAt.Unix(), 10))
			}

			if count > cfg.Max {
				if !cfg.DisableHeaders {
					retryAfter := int(time.Until(resetAt).Seconds())
					if retryAfter < 1 {
						retryAfter = 1
					}
					ctx.SetHeader(HeaderRetryAfter, strconv.Itoa(retryAfter))
				}
				return cfg.ErrorHandler(ctx, ErrLimitExceeded)
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

// configDefault returns a default config
func configDefault(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Max <= 0 {
		cfg.Max = DefaultMax
	}

	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}

	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = func(ctx router.Context) string {
			return ctx.IP()
		}
	}

	if cfg.Storage == nil {
		cfg.Storage = NewMemoryStorage(DefaultSweepInterval)
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler()
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	return cfg
}

func defaultErrorHandler() router.ErrorHandler {
	return func(ctx router.Context, err error) error {
		if errors.Is(err, ErrLimitExceeded) {
			return ctx.JSON(router.StatusTooManyRequests, map[string]any{
				"error":     "Too many requests, retry later",
				"text_code": "RATE_LIMITED",
			})
		}
		return ctx.Status(router.StatusInternalServerError).SendString("rate limit storage error")
	}
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStorage is a mutex-guarded in-memory Storage. A background goroutine
// drops windows that elapsed; readers never observe a stale window because
// Increment also checks resetAt under the lock.
type MemoryStorage struct {
	mu       sync.Mutex
	windows  map[string]window
	done     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates a MemoryStorage sweeping at the given interval.
// A non-positive interval falls back to DefaultSweepInterval.
func NewMemoryStorage(sweepInterval time.Duration) *MemoryStorage {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	s := &MemoryStorage{
		windows: make(map[string]window),
		done:    make(chan struct{}),
		now:     time.Now,
	}

	go s.sweepLoop(sweepInterval)

	return s
}

// Increment implements Storage
func (s *MemoryStorage) Increment(key string, duration time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		w = window{count: 0, resetAt: now.Add(duration)}
	}

	w.count++
	s.windows[key] = w

	return w.count, w.resetAt, nil
}

// Reset implements Storage
func (s *MemoryStorage) Reset(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.windows, key)
	return nil
}

// Len returns the number of live windows, expired ones included until the
// next sweep.
func (s *MemoryStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.windows)
}

// Stop terminates the sweep goroutine. Safe to call more than once.
func (s *MemoryStorage) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *MemoryStorage) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepExpired()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStorage) sweepExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, w := range s.windows {
		if now.After(w.resetAt) {
			delete(s.windows, key)
		}
	}
}
