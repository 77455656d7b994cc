package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetLastValue(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, ok := m.Get(KeyAggregation)
	assert.False(t, ok)

	value := []byte(`{"train_id":"123"}`)
	require.NoError(t, m.SetLastValue(ctx, KeyAggregation, value))
	value[0] = 'x'

	got, ok := m.Get(KeyAggregation)
	require.True(t, ok)
	assert.Equal(t, `{"train_id":"123"}`, string(got))

	require.NoError(t, m.SetLastValue(ctx, KeyAggregation, []byte(`{"train_id":"124"}`)))
	got, _ = m.Get(KeyAggregation)
	assert.Equal(t, `{"train_id":"124"}`, string(got))
	assert.Equal(t, 2, m.Writes())
	assert.Equal(t, "memory", m.String())
}

func TestRedis_SetLastValue(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})

	r, err := NewRedis(client)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.SetLastValue(context.Background(), KeyProcessing, []byte(`{"passengers":[]}`)))

	got, err := s.Get(KeyProcessing)
	require.NoError(t, err)
	assert.Equal(t, `{"passengers":[]}`, got)
	assert.Equal(t, "redis", r.String())
	// 不设置过期
	assert.Zero(t, s.TTL(KeyProcessing))
}

func TestRedis_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	_, err := NewRedis(redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1}))
	assert.Error(t, err)

	_, err = NewRedis(nil)
	assert.Error(t, err)
}

// TestWrapRedis_StartsWhileServerDown 启动时不可达不报错，恢复后写入成功
func TestWrapRedis_StartsWhileServerDown(t *testing.T) {
	s := miniredis.RunT(t)
	s.Close()

	r, err := WrapRedis(redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1}))
	require.NoError(t, err)
	defer r.Close()

	ctx := context.Background()
	assert.Error(t, r.Ping(ctx))
	assert.Error(t, r.SetLastValue(ctx, KeyAggregation, []byte(`{"train_id":"123"}`)))

	require.NoError(t, s.Restart())
	require.NoError(t, r.SetLastValue(ctx, KeyAggregation, []byte(`{"train_id":"123"}`)))
	got, err := s.Get(KeyAggregation)
	require.NoError(t, err)
	assert.Equal(t, `{"train_id":"123"}`, got)

	_, err = WrapRedis(nil)
	assert.Error(t, err)
}

func TestRedis_SetAfterServerDown(t *testing.T) {
	s := miniredis.RunT(t)
	r, err := NewRedis(redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1}))
	require.NoError(t, err)
	defer r.Close()

	s.Close()
	err = r.SetLastValue(context.Background(), KeyNotification, []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyNotification)
}
