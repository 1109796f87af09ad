package event

import (
	"context"
)

type jsonProducer interface {
	PublishJSON(ctx context.Context, topic string, key string, v any, headers map[string]string) error
}

// KafkaPublisher appends events to the durable kafka stream. Messages are
// keyed by symbol so one partition keeps a symbol's order.
type KafkaPublisher struct {
	producer   jsonProducer
	tradeTopic string
	depthTopic string
}

func NewKafkaPublisher(producer jsonProducer, tradeTopic, depthTopic string) *KafkaPublisher {
	if tradeTopic == "" {
		tradeTopic = "trades"
	}
	if depthTopic == "" {
		depthTopic = "orderbook"
	}
	return &KafkaPublisher{
		producer:   producer,
		tradeTopic: tradeTopic,
		depthTopic: depthTopic,
	}
}

func (p *KafkaPublisher) PublishTrade(ctx context.Context, ev TradeEvent) error {
	return p.producer.PublishJSON(ctx, p.tradeTopic, ev.Symbol, ev, map[string]string{"channel": TradesChannel(ev.Symbol)})
}

func (p *KafkaPublisher) PublishDepth(ctx context.Context, ev DepthEvent) error {
	return p.producer.PublishJSON(ctx, p.depthTopic, ev.Symbol, ev, map[string]string{"channel": OrderBookChannel(ev.Symbol)})
}
