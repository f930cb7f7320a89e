package notify

import (
	"context"

	"github.com/redis/go-redis/v9"

	"droneDispatch/models"
)

// ChannelPrefix prefixes the per-user pub/sub channel.
const ChannelPrefix = "notifications:"

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisSink publishes notifications on the user's Redis channel for live clients.
type RedisSink struct {
	rdb redisPublisher
}

func NewRedisSink(rdb redisPublisher) *RedisSink {
	return &RedisSink{rdb: rdb}
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func (s *RedisSink) Notify(ctx context.Context, userID string, event models.EventType, payload map[string]any) error {
	body, err := encode(userID, event, payload)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, ChannelPrefix+userID, body).Err()
}
