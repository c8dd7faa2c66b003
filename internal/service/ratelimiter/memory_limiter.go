package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// sweepEvery controls how often idle clients are dropped from memory.
const sweepEvery = 1024

// SlidingWindow keeps per-client timestamp logs in process memory. Counters
// reset when the process restarts and are not shared across instances.
type SlidingWindow struct {
	policy Policy
	now    Clock

	mu    sync.Mutex
	logs  map[string][]time.Time
	calls int
}

// NewSlidingWindow constructs an in-memory limiter for p.
func NewSlidingWindow(p Policy, opts ...Option) *SlidingWindow {
	o := buildOptions(opts)
	return &SlidingWindow{policy: p, now: o.now, logs: map[string][]time.Time{}}
}

// Allow implements Limiter. It never returns an error.
func (l *SlidingWindow) Allow(_ context.Context, clientID string) (bool, error) {
	if l == nil || l.policy.disabled() {
		return true, nil
	}
	now := l.now()
	cutoff := now.Add(-l.policy.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweep(cutoff)
	}

	log := prune(l.logs[clientID], cutoff)
	if len(log) >= l.policy.Max {
		l.logs[clientID] = log
		return false, nil
	}
	l.logs[clientID] = append(log, now)
	return true, nil
}

// Clients returns how many clients currently have a non-empty log.
func (l *SlidingWindow) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.logs)
}

func (l *SlidingWindow) sweep(cutoff time.Time) {
	for id, log := range l.logs {
		log = prune(log, cutoff)
		if len(log) == 0 {
			delete(l.logs, id)
			continue
		}
		l.logs[id] = log
	}
}

// prune drops timestamps at or before cutoff; log is chronological.
func prune(log []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(log) && !log[i].After(cutoff) {
		i++
	}
	return log[i:]
}
