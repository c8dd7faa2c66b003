package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/career-diagnosis/internal/domain"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, "test:"), mr
}

func TestStore_SetGet(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "diagnosis:1", []byte(`{"id":"1"}`), time.Hour))
	got, err := s.Get(ctx, "diagnosis:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1"}`, string(got))
	assert.True(t, mr.Exists("test:diagnosis:1"), "prefix applied")
}

func TestStore_GetMissingIsNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestStore_ExpiredKeyIsNotFound(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "chat:1", []byte(`{}`), time.Minute))

	mr.FastForward(61 * time.Second)
	_, err := s.Get(ctx, "chat:1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_TTL(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte("1"), 90*time.Second))
	d, err := s.TTL(ctx, "a")
	require.NoError(t, err)
	assert.InDelta(t, float64(90*time.Second), float64(d), float64(time.Second))

	require.NoError(t, s.Set(ctx, "b", []byte("1"), 0))
	d, err = s.TTL(ctx, "b")
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = s.TTL(ctx, "c")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_GetManyAndDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "x", []byte("1"), time.Hour))
	require.NoError(t, s.Set(ctx, "z", []byte("3"), time.Hour))

	vals, err := s.GetMany(ctx, "x", "y", "z")
	require.NoError(t, err)
	require.Len(t, vals, 3)
	assert.Equal(t, "1", string(vals[0]))
	assert.Nil(t, vals[1])
	assert.Equal(t, "3", string(vals[2]))

	require.NoError(t, s.Delete(ctx, "x", "z", "missing"))
	_, err = s.Get(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	vals, err = s.GetMany(ctx)
	require.NoError(t, err)
	assert.Empty(t, vals)
}

func TestStore_Lists(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ListAppend(ctx, "idx", "a", "b", "c"))
	require.NoError(t, s.ListAppend(ctx, "idx"))
	vals, err := s.ListRange(ctx, "idx", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, vals)

	require.NoError(t, s.ListRemove(ctx, "idx", "b"))
	vals, err = s.ListRange(ctx, "idx", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, vals)

	vals, err = s.ListRange(ctx, "empty", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, vals)
}

func TestStore_PingAndErrors(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	mr.Close()
	assert.Error(t, s.Ping(ctx))
	_, err := s.Get(ctx, "a")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Error(t, s.Set(ctx, "a", []byte("1"), time.Minute))
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	_ = c.Close()

	_, err = NewClient(context.Background(), "::not a url")
	assert.Error(t, err)
}

func TestStore_SetKeepTTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	err := s.SetKeepTTL(ctx, "diagnosis:gone", []byte(`{}`))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.False(t, mr.Exists("test:diagnosis:gone"), "absent key is not created")

	require.NoError(t, s.Set(ctx, "diagnosis:1", []byte(`{"v":1}`), time.Hour))
	mr.FastForward(40 * time.Minute)
	require.NoError(t, s.SetKeepTTL(ctx, "diagnosis:1", []byte(`{"v":2}`)))
	assert.Equal(t, 20*time.Minute, mr.TTL("test:diagnosis:1"))
	got, err := s.Get(ctx, "diagnosis:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got))

	mr.FastForward(21 * time.Minute)
	_, err = s.Get(ctx, "diagnosis:1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "rewrite did not make the record permanent")
}
