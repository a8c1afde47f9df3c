// Package streams wraps Redis Streams as the substrate carrying work
// items between pipeline stages: normalized_events, risk_events,
// risk_scores, and new_alerts. Consumer groups give each stage's worker
// pool at-least-once delivery with per-worker claim ownership.
package streams

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/chainwatch/internal/reliability"
)

// Stream names, fixed across the pipeline.
const (
	NormalizedEvents = "normalized_events"
	RiskEvents       = "risk_events"
	RiskScores       = "risk_scores"
	NewAlerts        = "new_alerts"
)

// Entry is one message read off a stream, with its delivery ID for Ack/Claim.
type Entry struct {
	ID      string
	Payload []byte
}

// Client wraps a redis.Client with the stream primitives the pipeline needs.
type Client struct {
	rdb     *redis.Client
	log     zerolog.Logger
	backoff reliability.BackoffPolicy
}

// New builds a Client from a redis:// connection URL.
func New(url string, log zerolog.Logger) (*Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &Client{
		rdb:     redis.NewClient(opt),
		log:     log.With().Str("component", "streams").Logger(),
		backoff: reliability.DefaultBackoff(),
	}, nil
}

// NewFromRedis wraps an already-constructed redis.Client, used by tests
// against miniredis.
func NewFromRedis(rdb *redis.Client, log zerolog.Logger) *Client {
	return &Client{rdb: rdb, log: log.With().Str("component", "streams").Logger(), backoff: reliability.DefaultBackoff()}
}

// Ping verifies connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Publish encodes payload with msgpack and appends it to stream via XADD.
func (c *Client) Publish(ctx context.Context, stream string, payload interface{}) (string, error) {
	encoded, err := msgpack.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload for %s: %w", stream, err)
	}

	var id string
	err = reliability.Retry(ctx, c.backoff, func() error {
		res, err := c.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			Values: map[string]interface{}{"payload": encoded},
		}).Result()
		if err != nil {
			return err
		}
		id = res
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish to %s: %w", stream, err)
	}

	return id, nil
}

// EnsureGroup creates the consumer group for stream, tolerating BUSYGROUP
// (the group already exists).
func (c *Client) EnsureGroup(ctx context.Context, stream, group string) error {
	err := c.rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("failed to create consumer group %s on %s: %w", group, stream, err)
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}

// Consume reads up to count undelivered entries for consumer in group,
// blocking up to block for new entries.
func (c *Client) Consume(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Entry, error) {
	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read group %s on %s: %w", group, stream, err)
	}

	var entries []Entry
	for _, s := range res {
		for _, msg := range s.Messages {
			entries = append(entries, toEntry(msg))
		}
	}
	return entries, nil
}

// Claim takes ownership of entries idle for at least minIdle, for a
// worker recovering from a crashed peer.
func (c *Client) Claim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int64) ([]Entry, error) {
	msgs, _, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0",
		Count:    count,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to auto-claim on %s/%s: %w", stream, group, err)
	}

	entries := make([]Entry, 0, len(msgs))
	for _, msg := range msgs {
		entries = append(entries, toEntry(msg))
	}
	return entries, nil
}

// Ack acknowledges delivery of ids in group on stream.
func (c *Client) Ack(ctx context.Context, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.rdb.XAck(ctx, stream, group, ids...).Err(); err != nil {
		return fmt.Errorf("failed to ack on %s/%s: %w", stream, group, err)
	}
	return nil
}

// Dedup atomically claims fingerprint for ttl via SETNX+PEXPIRE, returning
// true if this call is the first to see it.
func (c *Client) Dedup(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	key := "dedup:" + fingerprint
	ok, err := c.rdb.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to dedup %s: %w", fingerprint, err)
	}
	return ok, nil
}

// Decode unpacks a msgpack-encoded payload into dst.
func Decode(payload []byte, dst interface{}) error {
	if err := msgpack.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("failed to decode stream payload: %w", err)
	}
	return nil
}

func toEntry(msg redis.XMessage) Entry {
	var payload []byte
	if v, ok := msg.Values["payload"]; ok {
		switch p := v.(type) {
		case string:
			payload = []byte(p)
		case []byte:
			payload = p
		}
	}
	return Entry{ID: msg.ID, Payload: payload}
}
