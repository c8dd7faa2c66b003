// Package ratelimiter bounds how many requests a client may issue within a
// sliding time window. Every endpoint owns its own limiter instance built from
// a Policy, backed either by process memory or by Redis when several instances
// must share counters.
package ratelimiter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a client may proceed and records the request when it may.
type Limiter interface {
	// Allow prunes the client's log to the window, rejects without recording
	// when the log is full, and otherwise records now and allows.
	Allow(ctx context.Context, clientID string) (allowed bool, err error)
}

// Policy is the request budget of one endpoint.
type Policy struct {
	Name   string
	Max    int
	Window time.Duration
}

func (p Policy) disabled() bool { return p.Max <= 0 || p.Window <= 0 }

// Clock returns the current time; tests inject a fake one.
type Clock func() time.Time

type options struct {
	now    Clock
	prefix string
}

// Option customizes limiter construction.
type Option func(*options)

// WithClock overrides time.Now.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.now = c
		}
	}
}

// WithKeyPrefix namespaces Redis keys.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Backends accepted by Build.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Build constructs one limiter per policy, keyed by policy name.
func Build(backend string, rdb redis.Scripter, policies []Policy, opts ...Option) (map[string]Limiter, error) {
	out := make(map[string]Limiter, len(policies))
	for _, p := range policies {
		switch strings.ToLower(backend) {
		case BackendMemory, "":
			out[p.Name] = NewSlidingWindow(p, opts...)
		case BackendRedis:
			if rdb == nil {
				return nil, fmt.Errorf("op=ratelimiter.Build: redis backend requires a client")
			}
			out[p.Name] = NewRedisSlidingWindow(rdb, p, opts...)
		default:
			return nil, fmt.Errorf("op=ratelimiter.Build: unknown backend %q", backend)
		}
	}
	return out, nil
}
