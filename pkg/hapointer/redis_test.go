package hapointer

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStore_MissIsNotAnError(t *testing.T) {
	s := newTestRedisStore(t)

	ptr, err := s.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, ptr)
}

func TestRedisStore_PutThenGetRoundtrips(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	want := Pointer{
		JobID:      "job-1",
		Location:   "/checkpoints/job-1/chk-7",
		Sequence:   7,
		RecordedAt: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Put(ctx, "job-1", want))

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Location, got.Location)
	assert.Equal(t, want.Sequence, got.Sequence)
	assert.True(t, want.RecordedAt.Equal(got.RecordedAt))
}

func TestRedisStore_LastPutWins(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "job-1", Pointer{JobID: "job-1", Sequence: 3}))
	require.NoError(t, s.Put(ctx, "job-1", Pointer{JobID: "job-1", Sequence: 8}))

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(8), got.Sequence)
}

func TestRedisStore_SurvivesCoordinatorHandoff(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	first := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()
	require.NoError(t, first.Put(ctx, "job-1", Pointer{JobID: "job-1", Sequence: 5}))
	require.NoError(t, first.Close())

	// A new coordinator connecting to the same endpoint sees the pointer.
	second := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer func() { _ = second.Close() }()

	got, err := second.Get(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(5), got.Sequence)
}

func TestNewRedisStore_UnreachableEndpoint(t *testing.T) {
	_, err := NewRedisStore("127.0.0.1:1")
	assert.Error(t, err)
}
