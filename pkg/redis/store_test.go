package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reading struct {
	Site        string  `json:"site"`
	Temperature float64 `json:"temperature"`
}

func TestJSONStore_RoundTripAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewJSONStore[[]reading](client, "daino:readings:", time.Minute)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "7")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "7", []reading{{Site: "7", Temperature: 21.3}}))
	assert.True(t, mr.Exists("daino:readings:7"))
	assert.Equal(t, time.Minute, mr.TTL("daino:readings:7"))

	got, ok, err := store.Get(ctx, "7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []reading{{Site: "7", Temperature: 21.3}}, got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = store.Get(ctx, "7")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJSONStore_CorruptValue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, mr.Set("p:bad", "{not json"))
	_, _, err := NewJSONStore[[]reading](client, "p:", time.Minute).Get(context.Background(), "bad")
	assert.Error(t, err)
}

func TestNewClientFromURL(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClientFromURL(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()

	_, err = NewClientFromURL(context.Background(), "")
	assert.Error(t, err)
}
