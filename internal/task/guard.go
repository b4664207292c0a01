// Package task tracks in-flight long-running operations so that a session never runs the same operation twice
// concurrently.
package task

import (
	"log/slog"
	"sync"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
	"golang.org/x/sync/semaphore"
)

var ErrBusy = errors.NewSentinel("operation already in progress")

// Operation names.
const (
	OpAnalyze = "analyze"
	OpChat    = "chat"
)

type key struct {
	scope string
	op    string
}

type entry struct {
	sem     *semaphore.Weighted
	holders int
}

// Guard hands out one single-slot semaphore per (scope, operation) pair. Idle entries are dropped on release.
type Guard struct {
	mu      sync.Mutex
	entries map[key]*entry
}

func NewGuard() *Guard {
	return &Guard{
		mu:      sync.Mutex{},
		entries: make(map[key]*entry),
	}
}

// TryAcquire claims op for scope without blocking. It fails with ErrBusy when the same operation is already running
// for the scope. The returned release function must be called exactly once.
func (g *Guard) TryAcquire(scope string, op string) (func(), error) {
	k := key{scope: scope, op: op}

	g.mu.Lock()
	e, ok := g.entries[k]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1), holders: 0}
		g.entries[k] = e
	}
	if !e.sem.TryAcquire(1) {
		g.mu.Unlock()
		return nil, errors.Wrap(ErrBusy, "try acquire", slog.String("op", op))
	}
	e.holders++
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			e.sem.Release(1)
			e.holders--
			if e.holders == 0 {
				delete(g.entries, k)
			}
		})
	}, nil
}

// Pending reports whether op is currently running for scope.
func (g *Guard) Pending(scope string, op string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[key{scope: scope, op: op}]
	if !ok {
		return false
	}
	if !e.sem.TryAcquire(1) {
		return true
	}
	e.sem.Release(1)
	return false
}
