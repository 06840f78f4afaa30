package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/equilibrium/internal/breakers"
	"github.com/sawpanic/equilibrium/internal/config"
)

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	c.Set(ctx, "forever", []byte("a"), 0)
	c.Set(ctx, "brief", []byte("b"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	v, ok := c.Get(ctx, "forever")
	require.True(t, ok)
	assert.Equal(t, []byte("a"), v)

	_, ok = c.Get(ctx, "brief")
	assert.False(t, ok)
}

func TestMemory_CopiesValue(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	val := []byte("abc")
	c.Set(ctx, "k", val, time.Minute)
	val[0] = 'z'

	v, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), v)
}

func TestNew_SelectsBackend(t *testing.T) {
	assert.Equal(t, "memory", New(config.Default().Cache).Name())

	cfg := config.Default().Cache
	cfg.Backend = "redis"
	assert.Equal(t, "redis", New(cfg).Name())
}

func TestRedis_GetSet(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	c := NewRedis(db, time.Second, breakers.Default("test"))

	mock.ExpectGet("eq:miss").RedisNil()
	mock.ExpectSet("eq:hit", []byte("payload"), 10*time.Minute).SetVal("OK")
	mock.ExpectGet("eq:hit").SetVal("payload")

	_, ok := c.Get(ctx, "eq:miss")
	assert.False(t, ok)

	c.Set(ctx, "eq:hit", []byte("payload"), 10*time.Minute)

	v, ok := c.Get(ctx, "eq:hit")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), v)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_FallsBackWhenUnavailable(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	c := NewRedis(db, time.Second, breakers.New("test", config.BreakerConfig{
		MaxRequests: 1, Interval: time.Minute, Timeout: time.Hour, FailureThreshold: 2,
	}))

	down := errors.New("connection refused")
	mock.ExpectSet("eq:k", []byte("v"), time.Minute).SetErr(down)
	mock.ExpectGet("eq:k").SetErr(down)

	c.Set(ctx, "eq:k", []byte("v"), time.Minute)
	v, ok := c.Get(ctx, "eq:k")
	require.True(t, ok, "value written during the outage is served locally")
	assert.Equal(t, []byte("v"), v)

	// breaker is open now; redis is not called again
	v, ok = c.Get(ctx, "eq:k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	type payload struct {
		Symbol string  `json:"symbol"`
		Shift  float64 `json:"shift"`
	}
	require.NoError(t, SetJSON(ctx, c, "k", payload{"ETH", 0.07}, time.Minute))

	var got payload
	require.True(t, GetJSON(ctx, c, "k", &got))
	assert.Equal(t, payload{"ETH", 0.07}, got)

	c.Set(ctx, "garbage", []byte("{"), time.Minute)
	assert.False(t, GetJSON(ctx, c, "garbage", &got))
	assert.False(t, GetJSON(ctx, c, "absent", &got))

	assert.Error(t, SetJSON(ctx, c, "bad", func() {}, time.Minute))
}
