// Package redis persists records in Redis with per-key expiry.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/career-diagnosis/internal/domain"
)

// NewClient parses a redis:// URL and returns a connected client.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("op=kv.new_client: %w", err)
	}
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	c := goredis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("op=kv.new_client: %w", err)
	}
	return c, nil
}

// Store implements domain.KVStore. Every key is namespaced with Prefix.
type Store struct {
	RDB    goredis.UniversalClient
	Prefix string
}

var _ domain.KVStore = (*Store)(nil)

// New constructs a Store.
func New(rdb goredis.UniversalClient, prefix string) *Store { return &Store{RDB: rdb, Prefix: prefix} }

func (s *Store) k(key string) string { return s.Prefix + key }

func (s *Store) span(ctx domain.Context, name, key string) (domain.Context, func()) {
	ctx, span := otel.Tracer("kv.redis").Start(ctx, name)
	span.SetAttributes(attribute.String("kv.key", key))
	return ctx, func() { span.End() }
}

// Get loads the value stored at key.
func (s *Store) Get(ctx domain.Context, key string) ([]byte, error) {
	ctx, end := s.span(ctx, "kv.Get", key)
	defer end()
	b, err := s.RDB.Get(ctx, s.k(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("op=kv.get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("op=kv.get: %w", err)
	}
	return b, nil
}

// GetMany loads several keys in one round trip.
func (s *Store) GetMany(ctx domain.Context, keys ...string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	ctx, end := s.span(ctx, "kv.GetMany", keys[0])
	defer end()
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = s.k(key)
	}
	vals, err := s.RDB.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("op=kv.get_many: %w", err)
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[i] = []byte(str)
		}
	}
	return out, nil
}

// Set stores value at key; ttl <= 0 stores without expiry.
func (s *Store) Set(ctx domain.Context, key string, value []byte, ttl time.Duration) error {
	ctx, end := s.span(ctx, "kv.Set", key)
	defer end()
	if ttl < 0 {
		ttl = 0
	}
	if err := s.RDB.Set(ctx, s.k(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("op=kv.set: %w", err)
	}
	return nil
}

// SetKeepTTL overwrites key in place (SET XX KEEPTTL), so a rewrite never
// extends or clears the expiry and never resurrects an expired record.
func (s *Store) SetKeepTTL(ctx domain.Context, key string, value []byte) error {
	ctx, end := s.span(ctx, "kv.SetKeepTTL", key)
	defer end()
	err := s.RDB.SetArgs(ctx, s.k(key), value, goredis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, goredis.Nil) {
		return fmt.Errorf("op=kv.set_keep_ttl: %w", domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("op=kv.set_keep_ttl: %w", err)
	}
	return nil
}

// Delete removes keys; absent keys are ignored.
func (s *Store) Delete(ctx domain.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, end := s.span(ctx, "kv.Delete", keys[0])
	defer end()
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = s.k(key)
	}
	if err := s.RDB.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("op=kv.delete: %w", err)
	}
	return nil
}

// TTL returns the remaining lifetime of key.
func (s *Store) TTL(ctx domain.Context, key string) (time.Duration, error) {
	ctx, end := s.span(ctx, "kv.TTL", key)
	defer end()
	d, err := s.RDB.PTTL(ctx, s.k(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("op=kv.ttl: %w", err)
	}
	switch {
	case d == -2:
		return 0, fmt.Errorf("op=kv.ttl: %w", domain.ErrNotFound)
	case d < 0:
		return 0, nil
	}
	return d, nil
}

// ListAppend pushes values onto the tail of the list at key.
func (s *Store) ListAppend(ctx domain.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	ctx, end := s.span(ctx, "kv.ListAppend", key)
	defer end()
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	if err := s.RDB.RPush(ctx, s.k(key), args...).Err(); err != nil {
		return fmt.Errorf("op=kv.list_append: %w", err)
	}
	return nil
}

// ListRange returns list elements between start and stop inclusive; negative
// indexes count from the tail.
func (s *Store) ListRange(ctx domain.Context, key string, start, stop int64) ([]string, error) {
	ctx, end := s.span(ctx, "kv.ListRange", key)
	defer end()
	vals, err := s.RDB.LRange(ctx, s.k(key), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("op=kv.list_range: %w", err)
	}
	return vals, nil
}

// ListRemove removes every occurrence of value from the list at key.
func (s *Store) ListRemove(ctx domain.Context, key, value string) error {
	ctx, end := s.span(ctx, "kv.ListRemove", key)
	defer end()
	if err := s.RDB.LRem(ctx, s.k(key), 0, value).Err(); err != nil {
		return fmt.Errorf("op=kv.list_remove: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx domain.Context) error {
	if err := s.RDB.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("op=kv.ping: %w", err)
	}
	return nil
}
