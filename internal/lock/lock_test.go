package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestNormalize(t *testing.T) {
	got := normalize([]string{"student:JQY001", "project:1", "", "student:JQY001"})
	assert.Equal(t, []string{"project:1", "student:JQY001"}, got)
}

func testExclusive(t *testing.T, l Locker) {
	ctx := context.Background()

	t.Run("second locker waits", func(t *testing.T) {
		unlock, err := l.Lock(ctx, ProjectKey("1"), StudentKey("JQY001"))
		require.NoError(t, err)

		short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = l.Lock(short, StudentKey("JQY001"))
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		unlock()
		unlock2, err := l.Lock(ctx, StudentKey("JQY001"))
		require.NoError(t, err)
		unlock2()
	})

	t.Run("disjoint keys do not block", func(t *testing.T) {
		unlock, err := l.Lock(ctx, ProjectKey("1"))
		require.NoError(t, err)
		defer unlock()

		short, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		unlock2, err := l.Lock(short, ProjectKey("2"))
		require.NoError(t, err)
		unlock2()
	})

	t.Run("unlock is idempotent", func(t *testing.T) {
		unlock, err := l.Lock(ctx, ProjectKey("3"))
		require.NoError(t, err)
		unlock()
		unlock()

		unlock, err = l.Lock(ctx, ProjectKey("3"))
		require.NoError(t, err)
		unlock()
	})

	t.Run("counter under contention", func(t *testing.T) {
		var (
			wg      sync.WaitGroup
			counter int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					unlock, err := l.Lock(ctx, ProjectKey("4"))
					if err != nil {
						t.Error(err)
						return
					}
					v := counter
					time.Sleep(time.Microsecond)
					counter = v + 1
					unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 80, counter)
	})
}

func TestLocal(t *testing.T) {
	l := NewLocal()
	defer l.Close()
	testExclusive(t, l)
}

func TestNewRedisUnreachable(t *testing.T) {
	l, err := NewRedis("redis://127.0.0.1:1/0", time.Second)
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("redis container tests are skipped in short mode")
	}
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
	defer container.Terminate(ctx)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	l, err := NewRedis("redis://"+endpoint, 5*time.Second)
	require.NoError(t, err)
	defer l.Close()

	testExclusive(t, l)

	t.Run("foreign token is not released", func(t *testing.T) {
		unlock, err := l.Lock(ctx, ProjectKey("9"))
		require.NoError(t, err)
		defer unlock()

		n, err := releaseScript.Run(ctx, l.client, []string{keyPrefix + ProjectKey("9")}, "someone-else").Int()
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
