package checkpoint_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/checkpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	storeContractTest(t, "RedisStore", func(t *testing.T) checkpoint.Store {
		mr := miniredis.RunT(t)
		return checkpoint.NewRedisStore(checkpoint.RedisOptions{Addr: mr.Addr()})
	})
}

func TestRedisStore_Prefix(t *testing.T) {
	mr := miniredis.RunT(t)
	store := checkpoint.NewRedisStore(checkpoint.RedisOptions{Addr: mr.Addr(), Prefix: "test:"})
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "run-1", "node-a", []byte("data")))

	assert.True(t, mr.Exists("test:run:run-1:data"))
	assert.True(t, mr.Exists("test:run:run-1:order"))
	assert.False(t, mr.Exists("stepgraph:run:run-1:data"))
}

func TestRedisStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	store := checkpoint.NewRedisStore(checkpoint.RedisOptions{Addr: mr.Addr(), TTL: time.Minute})
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "run-1", "node-a", []byte("data")))
	assert.Equal(t, time.Minute, mr.TTL("stepgraph:run:run-1:data"))

	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "run-1", "node-a")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)

	infos, err := store.List(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestRedisStore_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	store := checkpoint.NewRedisStore(checkpoint.RedisOptions{Addr: mr.Addr()})
	defer store.Close()

	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := store.Save(ctx, "run-1", "node-a", []byte("data"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, checkpoint.ErrStoreClosed)
}
