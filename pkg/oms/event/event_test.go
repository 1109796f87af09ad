package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/joripage/exchange-sim/pkg/orderbook"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type recorder struct {
	mu     sync.Mutex
	events []string
	err    error
	got    chan struct{}
}

func newRecorder() *recorder {
	return &recorder{got: make(chan struct{}, 1024)}
}

func (r *recorder) PublishTrade(_ context.Context, ev TradeEvent) error {
	r.mu.Lock()
	r.events = append(r.events, fmt.Sprintf("trade %s %d", ev.Symbol, ev.Quantity))
	r.mu.Unlock()
	r.got <- struct{}{}
	return r.err
}

func (r *recorder) PublishDepth(_ context.Context, ev DepthEvent) error {
	r.mu.Lock()
	r.events = append(r.events, "depth "+ev.Symbol)
	r.mu.Unlock()
	r.got <- struct{}{}
	return r.err
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestChannelNames(t *testing.T) {
	if TradesChannel("ABC") != "trades:ABC" || OrderBookChannel("ABC") != "orderbook:ABC" {
		t.Fatalf("unexpected channel names")
	}
}

func TestEventJSON(t *testing.T) {
	trade, _ := json.Marshal(TradeEvent{Symbol: "ABC", Price: decimal.RequireFromString("199.5"), Quantity: 5, Timestamp: 1700000000000})
	want := `{"symbol":"ABC","price":199.5,"quantity":5,"timestamp":1700000000000}`
	if string(trade) != want {
		t.Fatalf("expected %s, got %s", want, trade)
	}

	depth := orderbook.Depth{
		Bids: []orderbook.Level{{Price: decimal.RequireFromString("199.5"), Qty: 5}},
		Asks: []orderbook.Level{},
	}
	b, _ := json.Marshal(DepthEvent{Symbol: "ABC", Depth: depth})
	want = `{"bids":[{"price":199.5,"qty":5}],"asks":[]}`
	if string(b) != want {
		t.Fatalf("expected %s, got %s", want, b)
	}

	ev, err := DecodeDepth("ABC", b)
	if err != nil {
		t.Fatalf("decode depth: %v", err)
	}
	if ev.Symbol != "ABC" || len(ev.Bids) != 1 || ev.Bids[0].Qty != 5 || !ev.Bids[0].Price.Equal(decimal.RequireFromString("199.5")) {
		t.Fatalf("unexpected decoded depth %+v", ev)
	}

	tr, err := DecodeTrade(trade)
	if err != nil || tr.Quantity != 5 || tr.Symbol != "ABC" {
		t.Fatalf("unexpected decoded trade %+v %v", tr, err)
	}
}

func TestMultiPublisher(t *testing.T) {
	a, b := newRecorder(), newRecorder()
	b.err = errors.New("down")

	m := MultiPublisher{a, b}
	err := m.PublishTrade(context.Background(), TradeEvent{Symbol: "ABC", Quantity: 1})
	if !errors.Is(err, b.err) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(a.snapshot()) != 1 || len(b.snapshot()) != 1 {
		t.Fatalf("every publisher should see the event")
	}
	if err := (NopPublisher{}).PublishDepth(context.Background(), DepthEvent{}); err != nil {
		t.Fatalf("nop publisher failed: %v", err)
	}
}

type fakeRedis struct {
	channels []string
	payloads []string
	err      error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, string(message.([]byte)))
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func TestRedisPublisher(t *testing.T) {
	client := &fakeRedis{}
	p := &RedisPublisher{client: client}
	ctx := context.Background()

	if err := p.PublishTrade(ctx, TradeEvent{Symbol: "ABC", Price: decimal.NewFromInt(10), Quantity: 2}); err != nil {
		t.Fatalf("publish trade: %v", err)
	}
	if err := p.PublishDepth(ctx, DepthEvent{Symbol: "ABC", Depth: orderbook.Depth{Bids: []orderbook.Level{}, Asks: []orderbook.Level{}}}); err != nil {
		t.Fatalf("publish depth: %v", err)
	}

	if client.channels[0] != "trades:ABC" || client.channels[1] != "orderbook:ABC" {
		t.Fatalf("unexpected channels %v", client.channels)
	}
	if client.payloads[1] != `{"bids":[],"asks":[]}` {
		t.Fatalf("unexpected depth payload %s", client.payloads[1])
	}

	client.err = errors.New("connection refused")
	if err := p.PublishTrade(ctx, TradeEvent{Symbol: "ABC"}); !errors.Is(err, client.err) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

type fakeProducer struct {
	topics []string
	keys   []string
}

func (f *fakeProducer) PublishJSON(_ context.Context, topic string, key string, v any, headers map[string]string) error {
	f.topics = append(f.topics, topic)
	f.keys = append(f.keys, key)
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	prod := &fakeProducer{}
	p := NewKafkaPublisher(prod, "", "")
	ctx := context.Background()

	p.PublishTrade(ctx, TradeEvent{Symbol: "ABC"})
	p.PublishDepth(ctx, DepthEvent{Symbol: "XYZ"})

	if prod.topics[0] != "trades" || prod.topics[1] != "orderbook" {
		t.Fatalf("unexpected topics %v", prod.topics)
	}
	if prod.keys[0] != "ABC" || prod.keys[1] != "XYZ" {
		t.Fatalf("messages must be keyed by symbol, got %v", prod.keys)
	}
}

func TestDispatcherKeepsOrder(t *testing.T) {
	rec := newRecorder()
	d := NewDispatcher(rec, DispatcherConfig{QueueSize: 16})
	ctx := context.Background()

	for i := 1; i <= 50; i++ {
		d.PublishTrade(ctx, TradeEvent{Symbol: "ABC", Quantity: int64(i)})
	}
	d.PublishDepth(ctx, DepthEvent{Symbol: "ABC"})
	d.Close()

	got := rec.snapshot()
	if len(got) != 51 {
		t.Fatalf("expected 51 events, got %d", len(got))
	}
	for i := 0; i < 50; i++ {
		if got[i] != fmt.Sprintf("trade ABC %d", i+1) {
			t.Fatalf("event %d out of order: %s", i, got[i])
		}
	}
	if got[50] != "depth ABC" {
		t.Fatalf("depth should come last, got %s", got[50])
	}

	if err := d.PublishTrade(ctx, TradeEvent{Symbol: "ABC"}); !errors.Is(err, errDispatcherClosed) {
		t.Fatalf("expected closed dispatcher error, got %v", err)
	}
	d.Close()
}

func TestDispatcherShardQueuePerSymbolOrder(t *testing.T) {
	rec := newRecorder()
	d := NewDispatcher(rec, DispatcherConfig{EnableShardQueue: true, NumShards: 4, QueueSize: 1024})
	ctx := context.Background()

	symbols := []string{"AAA", "BBB", "CCC"}
	const perSymbol = 20
	for i := 1; i <= perSymbol; i++ {
		for _, s := range symbols {
			d.PublishTrade(ctx, TradeEvent{Symbol: s, Quantity: int64(i)})
		}
	}

	timeout := time.After(5 * time.Second)
	for n := 0; n < perSymbol*len(symbols); n++ {
		select {
		case <-rec.got:
		case <-timeout:
			t.Fatalf("only %d events delivered", n)
		}
	}

	next := map[string]int64{}
	for _, e := range rec.snapshot() {
		var sym string
		var qty int64
		fmt.Sscanf(e, "trade %s %d", &sym, &qty)
		if qty != next[sym]+1 {
			t.Fatalf("%s delivered %d after %d", sym, qty, next[sym])
		}
		next[sym] = qty
	}
}

type slowPublisher struct {
	NopPublisher
	mu     sync.Mutex
	trades int
}

func (p *slowPublisher) PublishTrade(context.Context, TradeEvent) error {
	time.Sleep(time.Millisecond)
	p.mu.Lock()
	p.trades++
	p.mu.Unlock()
	return nil
}

func TestDispatcherShardQueueCloseDrains(t *testing.T) {
	pub := &slowPublisher{}
	d := NewDispatcher(pub, DispatcherConfig{EnableShardQueue: true, NumShards: 2, QueueSize: 256})
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if err := d.PublishTrade(ctx, TradeEvent{Symbol: fmt.Sprintf("S%d", i%5)}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	d.Close()

	pub.mu.Lock()
	delivered := pub.trades
	pub.mu.Unlock()
	if delivered != 100 {
		t.Fatalf("close returned with %d of 100 events delivered", delivered)
	}

	if err := d.PublishTrade(ctx, TradeEvent{Symbol: "S0"}); !errors.Is(err, errDispatcherClosed) {
		t.Fatalf("expected closed dispatcher error, got %v", err)
	}
	d.Close()
}
