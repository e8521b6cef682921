// Package ratelimit enforces fixed windows over outbound actions. A
// window opens on its first admission and every admission inside it
// counts against the cap; the counter resets only when the window
// expires, not gradually.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config bounds one limited key.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Limiter admits or rejects actions per key. A rejection is a normal
// outcome, not an error; the error return is for backend failures only.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Remaining(ctx context.Context, key string) (int, error)
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is the in-process implementation, suitable for a single
// replica. Use RedisLimiter when the counter must be shared.
type MemoryLimiter struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	windows map[string]*window

	now func() time.Time
}

func NewMemoryLimiter(cfg Config, logger *zap.Logger) *MemoryLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryLimiter{
		cfg:     cfg,
		logger:  logger,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow admits the action when the current window has budget left. The
// first admission after a reset starts a fresh window with count 1.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(l.cfg.Window)}
		return true, nil
	}
	if w.count >= l.cfg.MaxRequests {
		return false, nil
	}
	w.count++
	return true, nil
}

// Remaining reports the budget left in the current window.
func (l *MemoryLimiter) Remaining(_ context.Context, key string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || l.now().After(w.resetAt) {
		return l.cfg.MaxRequests, nil
	}
	n := l.cfg.MaxRequests - w.count
	if n < 0 {
		n = 0
	}
	return n, nil
}

// ResetIn reports how long until the key's window expires, zero when no
// window is open.
func (l *MemoryLimiter) ResetIn(_ context.Context, key string) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		return 0, nil
	}
	d := w.resetAt.Sub(l.now())
	if d < 0 {
		return 0, nil
	}
	return d, nil
}
