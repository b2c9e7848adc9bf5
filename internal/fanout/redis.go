package fanout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"gochat/internal/config"
	"gochat/internal/logger"
)

// Publisher is the slice of *redis.Client used to publish events.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type relayEnvelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

func relayChannel(prefix string) string {
	return prefix + "fanout"
}

func NewRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// RedisPublisher forwards events to the other instances. Targets travel with
// the event so a receiving instance can route it to its own connections.
type RedisPublisher struct {
	client  Publisher
	channel string
	origin  string
}

func NewRedisPublisher(client Publisher, channelPrefix, origin string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: relayChannel(channelPrefix), origin: origin}
}

func (p *RedisPublisher) Name() string {
	return "redis_publisher"
}

func (p *RedisPublisher) Update(ctx context.Context, event Event) error {
	data, err := json.Marshal(relayEnvelope{Origin: p.origin, Event: event})
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// RedisRelay receives events published by other instances and hands them to
// the local observers (the connection hubs).
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	locals  []Observer
}

func NewRedisRelay(client *redis.Client, channelPrefix, origin string, locals ...Observer) *RedisRelay {
	return &RedisRelay{client: client, channel: relayChannel(channelPrefix), origin: origin, locals: locals}
}

// Run blocks until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handle(ctx, msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(ctx context.Context, payload string) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		logger.Get().Warn().Err(err).Msg("malformed relay payload")
		return
	}
	if env.Origin == r.origin {
		return
	}
	for _, obs := range r.locals {
		if err := obs.Update(ctx, env.Event); err != nil {
			logger.Get().Warn().Err(err).Str("observer", obs.Name()).Msg("relay delivery failed")
		}
	}
}
