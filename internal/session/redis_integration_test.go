//go:build integration

package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dyluth/keyhunt/internal/coord"
	"github.com/dyluth/keyhunt/pkg/blackboard"
	"github.com/dyluth/keyhunt/pkg/keyspace"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"
)

// setupRedis starts a Redis container for testing.
func setupRedis(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start Redis container")
	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s", host, port.Port())
}

func newRedisClient(t *testing.T, redisURL string) *blackboard.Client {
	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	client, err := blackboard.NewClient(opts, "integration")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIntegration_DistributedSession(t *testing.T) {
	redisURL := setupRedis(t)

	for _, strategy := range []blackboard.Strategy{blackboard.StrategyStatic, blackboard.StrategyDynamic} {
		t.Run(string(strategy), func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			// Every participant gets its own connection, as separate processes would.
			entry := newRedisClient(t, redisURL)
			s, err := New(Config{
				Strategy:     strategy,
				Participants: 4,
				Local:        2,
				Workers:      2,
				PollInterval: 32,
				UnitSize:     1000,
				Keyspace:     keyspace.Keyspace{Lower: 0, Upper: 99_999},
			}, WithBlackboard(entry))
			require.NoError(t, err)
			require.NoError(t, s.Configure(ctx, []byte(sampleText), phrase, 54_321))

			joined := make([]coord.Result, 2)
			g, gctx := errgroup.WithContext(ctx)
			for i := range joined {
				idx := i
				client := newRedisClient(t, redisURL)
				g.Go(func() error {
					res, err := Join(gctx, client, s.ID(), blackboard.ParticipantID(2+idx), JoinOptions{Workers: 2, PollInterval: 32, Timeout: 30 * time.Second}, nil)
					joined[idx] = res
					return err
				})
			}

			report, err := s.Run(ctx)
			require.NoError(t, err)
			require.NoError(t, g.Wait())

			require.True(t, report.Result.Found)
			assert.Contains(t, string(report.Result.Plaintext), phrase)
			for _, res := range joined {
				assert.True(t, report.Result.Equal(res), "joined participant reported %s, entry %s", res, report.Result)
			}

			stored, err := entry.GetSession(ctx, s.ID())
			require.NoError(t, err)
			assert.Equal(t, blackboard.SessionStatusFound, stored.Status)
			assert.Equal(t, report.Result.Key, stored.Result.Key)
		})
	}
}
