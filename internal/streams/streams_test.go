package streams

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewFromRedis(rdb, zerolog.Nop())
}

type testPayload struct {
	Value string `msgpack:"value"`
}

func TestPublishAndConsume(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.EnsureGroup(ctx, NormalizedEvents, "extraction"))

	_, err := c.Publish(ctx, NormalizedEvents, testPayload{Value: "hello"})
	require.NoError(t, err)

	entries, err := c.Consume(ctx, NormalizedEvents, "extraction", "worker-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var decoded testPayload
	require.NoError(t, Decode(entries[0].Payload, &decoded))
	assert.Equal(t, "hello", decoded.Value)
}

func TestConsumeThenAckRemovesPending(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.EnsureGroup(ctx, NormalizedEvents, "extraction"))

	_, err := c.Publish(ctx, NormalizedEvents, testPayload{Value: "a"})
	require.NoError(t, err)

	entries, err := c.Consume(ctx, NormalizedEvents, "extraction", "worker-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, c.Ack(ctx, NormalizedEvents, "extraction", entries[0].ID))

	claimed, err := c.Claim(ctx, NormalizedEvents, "extraction", "worker-2", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestClaimRecoversUnackedEntry(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.EnsureGroup(ctx, NormalizedEvents, "extraction"))

	_, err := c.Publish(ctx, NormalizedEvents, testPayload{Value: "b"})
	require.NoError(t, err)

	_, err = c.Consume(ctx, NormalizedEvents, "extraction", "worker-1", 10, 0)
	require.NoError(t, err)

	claimed, err := c.Claim(ctx, NormalizedEvents, "extraction", "worker-2", 0, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	var decoded testPayload
	require.NoError(t, Decode(claimed[0].Payload, &decoded))
	assert.Equal(t, "b", decoded.Value)
}

func TestDedupFirstCallerWins(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	first, err := c.Dedup(ctx, "fingerprint-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := c.Dedup(ctx, "fingerprint-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestEnsureGroupToleratesExistingGroup(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.EnsureGroup(ctx, NormalizedEvents, "extraction"))
	require.NoError(t, c.EnsureGroup(ctx, NormalizedEvents, "extraction"))
}
