package event

import (
	"context"
	"sync"

	"github.com/joripage/go_util/pkg/shardqueue"
	"go.uber.org/zap"
)

type DispatcherConfig struct {
	EnableShardQueue bool
	NumShards        int
	QueueSize        int
}

type dispatchMsg struct {
	trade *TradeEvent
	depth *DepthEvent
}

// Dispatcher hands events to the next publisher off the caller's goroutine.
// Events of one symbol are delivered in the order they were enqueued.
type Dispatcher struct {
	next Publisher

	shardQueue *shardqueue.Shardqueue
	pending    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	queue  chan *dispatchMsg
	done   chan struct{}
}

func NewDispatcher(next Publisher, cfg DispatcherConfig) *Dispatcher {
	if cfg.NumShards <= 0 {
		cfg.NumShards = 16
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100_000
	}

	d := &Dispatcher{next: next}
	if cfg.EnableShardQueue {
		d.shardQueue = shardqueue.NewShardQueue(cfg.NumShards, cfg.QueueSize)
		d.shardQueue.Start(func(msg interface{}) error {
			defer d.pending.Done()
			if v, ok := msg.(*dispatchMsg); ok {
				d.deliver(v)
			}
			return nil
		})
	} else {
		d.queue = make(chan *dispatchMsg, cfg.QueueSize)
		d.done = make(chan struct{})
		go d.runDispatcher()
	}
	return d
}

func (d *Dispatcher) PublishTrade(_ context.Context, ev TradeEvent) error {
	return d.enqueue(ev.Symbol, &dispatchMsg{trade: &ev})
}

func (d *Dispatcher) PublishDepth(_ context.Context, ev DepthEvent) error {
	return d.enqueue(ev.Symbol, &dispatchMsg{depth: &ev})
}

func (d *Dispatcher) enqueue(symbol string, msg *dispatchMsg) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return errDispatcherClosed
	}

	if d.shardQueue != nil {
		d.pending.Add(1)
		d.shardQueue.Shard(symbol, msg)
		return nil
	}
	d.queue <- msg
	return nil
}

func (d *Dispatcher) runDispatcher() {
	defer close(d.done)
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg *dispatchMsg) {
	// the submitting request is long gone
	ctx := context.Background()

	var err error
	switch {
	case msg.trade != nil:
		err = d.next.PublishTrade(ctx, *msg.trade)
	case msg.depth != nil:
		err = d.next.PublishDepth(ctx, *msg.depth)
	}
	if err != nil {
		zap.S().Errorf("publish event fail: %v", err)
	}
}

// Close stops accepting events and waits until queued ones are delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	if d.shardQueue != nil {
		d.shardQueue.Stop()
	} else {
		close(d.queue)
	}
	d.mu.Unlock()

	if d.shardQueue != nil {
		d.pending.Wait()
		return
	}
	<-d.done
}
