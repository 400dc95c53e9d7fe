package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/collabtext/collabtext/pkg/logger"
	"github.com/collabtext/collabtext/pkg/metrics"
)

type envelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// RedisRelay fans events out through a Redis pub/sub channel so every
// instance sharing the channel delivers them to its local subscribers.
// Publishing does not deliver locally; Start's loop does, for all instances alike.
type RedisRelay struct {
	client  *redis.Client
	channel string
	local   *Broker
}

func NewRedisRelay(client *redis.Client, channel string, local *Broker) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, local: local}
}

func (r *RedisRelay) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	msg, err := json.Marshal(envelope{Topic: topic, Payload: data})
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	metrics.RelayPublished.WithLabelValues(TopicKind(topic)).Inc()
	return nil
}

// Start subscribes to the channel and returns once the subscription is
// confirmed. Envelopes are forwarded to the local broker until ctx is done.
func (r *RedisRelay) Start(ctx context.Context) error {
	ps := r.client.Subscribe(ctx, r.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("redis subscribe %s: %w", r.channel, err)
	}
	ch := ps.Channel()
	go func() {
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					logger.Warnf("relay: bad envelope on %s: %v", r.channel, err)
					continue
				}
				r.local.PublishRaw(env.Topic, env.Payload)
			}
		}
	}()
	logger.Infof("relay: listening on redis channel %s", r.channel)
	return nil
}
