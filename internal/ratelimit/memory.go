package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// window is one identifier's counter for the current fixed window.
type window struct {
	count   int
	resetAt time.Time
}

// MemoryGovernor keeps counters in process. State is per replica.
type MemoryGovernor struct {
	policy Policy

	mu      sync.Mutex
	windows map[string]*window
	nowFunc func() time.Time // injectable clock for testing

	stop     chan struct{}
	stopOnce sync.Once
}

var _ Governor = (*MemoryGovernor)(nil)

// NewMemoryGovernor creates a governor and starts a background sweep that
// evicts expired windows every policy window.
func NewMemoryGovernor(policy Policy) *MemoryGovernor {
	g := newMemoryGovernor(policy, time.Now)
	go g.sweepLoop()
	return g
}

func newMemoryGovernor(policy Policy, now func() time.Time) *MemoryGovernor {
	return &MemoryGovernor{
		policy:  policy,
		windows: make(map[string]*window),
		nowFunc: now,
		stop:    make(chan struct{}),
	}
}

// Consume spends one point for id. The window starts on the first request
// and refills fully once it expires.
func (g *MemoryGovernor) Consume(ctx context.Context, id string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrGovernorFault, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowFunc()
	w, ok := g.windows[id]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(g.policy.Window)}
		g.windows[id] = w
	}
	w.count++
	return decide(g.policy, w.count, w.resetAt.Sub(now)), nil
}

func (g *MemoryGovernor) sweepLoop() {
	ticker := time.NewTicker(g.policy.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.sweep()
		case <-g.stop:
			return
		}
	}
}

// sweep evicts windows that have expired.
func (g *MemoryGovernor) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowFunc()
	for id, w := range g.windows {
		if !now.Before(w.resetAt) {
			delete(g.windows, id)
		}
	}
}

// len returns the number of tracked identifiers (used in tests).
func (g *MemoryGovernor) len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.windows)
}

// Close stops the sweep goroutine.
func (g *MemoryGovernor) Close() {
	g.stopOnce.Do(func() { close(g.stop) })
}
