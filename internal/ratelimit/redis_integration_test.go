//go:build integration

package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisLimiter_SharedWindow(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	rdb, err := DialRedis(ctx, addr, "", 0)
	require.NoError(t, err)
	defer rdb.Close()

	// Two limiters on one store behave like two instances of the service.
	a := NewRedisLimiter(rdb, "test")
	b := NewRedisLimiter(rdb, "test")

	for i, want := range []int{4, 3, 2, 1, 0} {
		limiter := a
		if i%2 == 1 {
			limiter = b
		}
		res, err := limiter.Check(ctx, "10.0.0.1", 5, 15*time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, want, res.Remaining)
	}

	res, err := b.Check(ctx, "10.0.0.1", 5, 15*time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), res.ResetAt, 5*time.Second)

	require.NoError(t, a.Reset(ctx))

	res, err = a.Check(ctx, "10.0.0.1", 5, 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.Remaining)
}

func TestRedisLimiter_WindowExpires(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	rdb, err := DialRedis(ctx, addr, "", 0)
	require.NoError(t, err)
	defer rdb.Close()

	limiter := NewRedisLimiter(rdb, "expiry")
	for i := 0; i < 3; i++ {
		_, err := limiter.Check(ctx, "client", 2, 300*time.Millisecond)
		require.NoError(t, err)
	}

	time.Sleep(400 * time.Millisecond)

	res, err := limiter.Check(ctx, "client", 2, 300*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
}

func TestRedisLimiter_HealthCheck(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	rdb, err := DialRedis(ctx, addr, "", 0)
	require.NoError(t, err)
	defer rdb.Close()

	assert.NoError(t, NewRedisLimiter(rdb, "health").HealthCheck(ctx))
}
