package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type redisPublishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes JSON events on redis pub/sub channels.
type RedisPublisher struct {
	client redisPublishClient
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) PublishTrade(ctx context.Context, ev TradeEvent) error {
	return p.publish(ctx, TradesChannel(ev.Symbol), ev)
}

func (p *RedisPublisher) PublishDepth(ctx context.Context, ev DepthEvent) error {
	return p.publish(ctx, OrderBookChannel(ev.Symbol), ev)
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, channel, b).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

// RedisSubscriber follows the live channels of a symbol.
type RedisSubscriber struct {
	client *redis.Client
}

func NewRedisSubscriber(client *redis.Client) *RedisSubscriber {
	return &RedisSubscriber{client: client}
}

// SubscribeDepth calls fn with every snapshot published for symbol until
// ctx is done.
func (s *RedisSubscriber) SubscribeDepth(ctx context.Context, symbol string, fn func(DepthEvent)) error {
	return s.subscribe(ctx, OrderBookChannel(symbol), func(payload string) error {
		ev, err := DecodeDepth(symbol, []byte(payload))
		if err != nil {
			return err
		}
		fn(ev)
		return nil
	})
}

// SubscribeTrades calls fn with every trade published for symbol until ctx
// is done.
func (s *RedisSubscriber) SubscribeTrades(ctx context.Context, symbol string, fn func(TradeEvent)) error {
	return s.subscribe(ctx, TradesChannel(symbol), func(payload string) error {
		ev, err := DecodeTrade([]byte(payload))
		if err != nil {
			return err
		}
		fn(ev)
		return nil
	})
}

func (s *RedisSubscriber) subscribe(ctx context.Context, channel string, handle func(string) error) error {
	pubsub := s.client.Subscribe(ctx, channel)
	defer pubsub.Close() // nolint

	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := handle(msg.Payload); err != nil {
				zap.S().Warnf("drop malformed message on %s: %v", channel, err)
			}
		}
	}
}

func DecodeDepth(symbol string, payload []byte) (DepthEvent, error) {
	ev := DepthEvent{Symbol: symbol}
	err := json.Unmarshal(payload, &ev)
	return ev, err
}

func DecodeTrade(payload []byte) (TradeEvent, error) {
	var ev TradeEvent
	err := json.Unmarshal(payload, &ev)
	return ev, err
}
