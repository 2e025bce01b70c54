package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type relayMessage struct {
	Group   string          `json:"group"`
	Message json.RawMessage `json:"message"`
}

// RedisRelay is a Transport for running several API instances behind a load
// balancer. Messages are published on one Redis channel and every instance,
// the publisher included, delivers them to its local hub.
type RedisRelay struct {
	client  *redis.Client
	pub     redisPublisher
	channel string
	local   *Hub
}

// NewRedisRelay relays through channel into local
func NewRedisRelay(client *redis.Client, channel string, local *Hub) *RedisRelay {
	return &RedisRelay{client: client, pub: client, channel: channel, local: local}
}

// Publish sends msg for group to every instance. When redis refuses the
// message it still reaches the sessions of this instance and the error
// reports the missed peers.
func (r *RedisRelay) Publish(ctx context.Context, group string, msg []byte) error {
	data, err := json.Marshal(relayMessage{Group: group, Message: msg})
	if err != nil {
		return fmt.Errorf("failed to marshal relay message: %w", err)
	}
	if err := r.pub.Publish(ctx, r.channel, data).Err(); err != nil {
		n := r.local.SendToGroup(group, msg)
		zap.S().Warnw("redis publish failed, delivered locally only", "group", group, "sessions", n, "error", err)
		return fmt.Errorf("failed to publish relay message: %w", err)
	}
	return nil
}

// Run subscribes to the relay channel and delivers messages until ctx ends
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	zap.S().Infow("realtime relay subscribed", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver([]byte(m.Payload))
		}
	}
}

func (r *RedisRelay) deliver(payload []byte) {
	var m relayMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		zap.S().Warnw("dropping malformed relay message", "channel", r.channel, "error", err)
		return
	}
	r.local.SendToGroup(m.Group, m.Message)
}
