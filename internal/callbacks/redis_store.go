// Package callbacks stores inbound protocol callbacks keyed by message id
// so client polls can retrieve a BPP's asynchronous response.
package callbacks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bapflow/internal/protocol"
)

// RedisStore appends callback envelopes to per-message-id lists in Redis.
type RedisStore struct {
	client    RedisClient
	keyPrefix string
	ttl       time.Duration
}

// RedisClient is the minimal client surface used by RedisStore.
type RedisClient interface {
	Pipeline() RedisPipeliner
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// RedisPipeliner is the subset of commands used within a pipeline.
type RedisPipeliner interface {
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Exec(ctx context.Context) ([]redis.Cmder, error)
}

// NewRedisStore constructs a Redis-backed callback store.
func NewRedisStore(client RedisClient, keyPrefix string, ttl time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "on_confirm:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// Append stores one callback envelope under its message id.
func (r *RedisStore) Append(ctx context.Context, messageID string, response protocol.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if messageID == "" {
		return fmt.Errorf("message id required")
	}

	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("callback %s: encode: %w", messageID, err)
	}

	key := r.keyPrefix + messageID
	pipe := r.client.Pipeline()
	pipe.RPush(ctx, key, data)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// GetByMessageID returns all callbacks received for a message id, oldest
// first. An unknown id yields an empty slice, not an error.
func (r *RedisStore) GetByMessageID(ctx context.Context, messageID string) ([]protocol.Response, error) {
	if messageID == "" {
		return nil, fmt.Errorf("message id required")
	}

	values, err := r.client.LRange(ctx, r.keyPrefix+messageID, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	responses := make([]protocol.Response, 0, len(values))
	for _, v := range values {
		var resp protocol.Response
		if err := json.Unmarshal([]byte(v), &resp); err != nil {
			return nil, fmt.Errorf("callback %s: decode: %w", messageID, err)
		}
		responses = append(responses, resp)
	}
	return responses, nil
}
