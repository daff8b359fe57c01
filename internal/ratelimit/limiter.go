// Package ratelimit throttles security-sensitive auth actions per key with a
// fixed counting window and a temporary lockout once the window is exceeded.
//
// The algorithm lives in Limiter; where the counters live is up to the Store,
// so a single instance can keep them in memory while a fleet shares Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	MaxAttempts   int
	Window        time.Duration
	BlockDuration time.Duration
}

func (c Config) Validate() error {
	if c.MaxAttempts <= 0 {
		return errors.New("max attempts must be positive")
	}
	if c.Window <= 0 {
		return errors.New("window must be positive")
	}
	if c.BlockDuration <= 0 {
		return errors.New("block duration must be positive")
	}
	return nil
}

// Policies used by the auth flow.
var (
	SignIn        = Config{MaxAttempts: 5, Window: 15 * time.Minute, BlockDuration: 15 * time.Minute}
	SignUp        = Config{MaxAttempts: 3, Window: 60 * time.Minute, BlockDuration: 60 * time.Minute}
	PasswordReset = Config{MaxAttempts: 3, Window: 60 * time.Minute, BlockDuration: 30 * time.Minute}
)

// Entry is the per-key counter state.
type Entry struct {
	Attempts     int        `json:"attempts"`
	FirstAttempt time.Time  `json:"first_attempt"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
	// ExpiresAt is when the entry stops mattering; stores may evict after it.
	ExpiresAt time.Time `json:"expires_at"`
}

type Result struct {
	Allowed           bool   `json:"allowed"`
	RemainingAttempts int    `json:"remainingAttempts"`
	RetryAfter        int    `json:"retryAfter,omitempty"`
	Message           string `json:"message,omitempty"`
}

type Limiter struct {
	name  string
	cfg   Config
	store Store
	now   func() time.Time
}

type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New builds a limiter whose keys are namespaced by name, so several limiters
// can share one store.
func New(name string, cfg Config, store Store, opts ...Option) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ratelimit %s: %w", name, err)
	}
	if store == nil {
		return nil, fmt.Errorf("ratelimit %s: store is required", name)
	}

	l := &Limiter{
		name:  name,
		cfg:   cfg,
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Limiter) Name() string {
	return l.name
}

func (l *Limiter) prefix() string {
	return l.name + ":"
}

func (l *Limiter) key(key string) string {
	return l.prefix() + strings.ToLower(strings.TrimSpace(key))
}

// Check records an attempt for key and reports whether it is allowed.
func (l *Limiter) Check(ctx context.Context, key string) (Result, error) {
	now := l.now()

	var res Result
	err := l.store.Update(ctx, l.key(key), func(cur *Entry) *Entry {
		if cur == nil {
			res = l.allowed(1)
			return l.fresh(now)
		}

		if cur.BlockedUntil != nil && now.Before(*cur.BlockedUntil) {
			res = l.blocked(cur.BlockedUntil.Sub(now))
			return cur
		}

		if now.Sub(cur.FirstAttempt) > l.cfg.Window {
			res = l.allowed(1)
			return l.fresh(now)
		}

		next := *cur
		next.Attempts++
		if next.Attempts > l.cfg.MaxAttempts {
			until := now.Add(l.cfg.BlockDuration)
			next.BlockedUntil = &until
			res = l.blocked(l.cfg.BlockDuration)
		} else {
			res = l.allowed(next.Attempts)
		}
		next.ExpiresAt = l.expiry(next)
		return &next
	})
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit %s: %w", l.name, err)
	}

	return res, nil
}

// Reset forgets all history for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.store.Delete(ctx, l.key(key)); err != nil {
		return fmt.Errorf("ratelimit %s: %w", l.name, err)
	}
	return nil
}

// Cleanup drops entries that are neither locked out nor inside their window.
func (l *Limiter) Cleanup(ctx context.Context) (int, error) {
	now := l.now()
	return l.store.Sweep(ctx, l.prefix(), func(e Entry) bool {
		if e.BlockedUntil != nil && now.Before(*e.BlockedUntil) {
			return false
		}
		return now.Sub(e.FirstAttempt) > l.cfg.Window
	})
}

func (l *Limiter) fresh(now time.Time) *Entry {
	e := Entry{Attempts: 1, FirstAttempt: now}
	e.ExpiresAt = l.expiry(e)
	return &e
}

// expiry adds a second of slack so TTL-based stores never evict an entry the
// window check would still count.
func (l *Limiter) expiry(e Entry) time.Time {
	exp := e.FirstAttempt.Add(l.cfg.Window)
	if e.BlockedUntil != nil && e.BlockedUntil.After(exp) {
		exp = *e.BlockedUntil
	}
	return exp.Add(time.Second)
}

func (l *Limiter) allowed(attempts int) Result {
	return Result{
		Allowed:           true,
		RemainingAttempts: l.cfg.MaxAttempts - attempts,
	}
}

func (l *Limiter) blocked(wait time.Duration) Result {
	secs := int((wait + time.Second - 1) / time.Second)
	return Result{
		Allowed:    false,
		RetryAfter: secs,
		Message:    "Too many attempts. Please try again in " + humanWait(secs) + ".",
	}
}

func humanWait(secs int) string {
	if secs < 60 {
		if secs == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", secs)
	}
	mins := (secs + 59) / 60
	if mins == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", mins)
}
