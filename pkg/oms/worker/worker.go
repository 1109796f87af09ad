package worker

import (
	"context"
	"errors"
	"sync"

	kafkawrapper "github.com/joripage/exchange-sim/pkg/kafka_wrapper"
	"github.com/joripage/exchange-sim/pkg/logging"
	"github.com/joripage/exchange-sim/pkg/oms/event"
	"github.com/joripage/exchange-sim/pkg/oms/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type batchConsumer interface {
	Run(ctx context.Context, handler func(context.Context, []kafkawrapper.Message) error) error
}

// Worker consumes the trades stream and keeps each instrument's display
// price at its last traded price.
type Worker struct {
	instrument repo.IInstrument
	logger     *logging.Logger

	mu      sync.Mutex
	applied map[string]int64 // symbol -> timestamp of the price last written
}

func NewWorker(r repo.IRepo, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO)
	}
	return &Worker{
		instrument: r.Instrument(),
		logger:     logger,
		applied:    make(map[string]int64),
	}
}

// StartConsumer blocks until ctx is done or the consumer stops.
func (w *Worker) StartConsumer(ctx context.Context, consumer batchConsumer) error {
	return consumer.Run(ctx, w.HandleBatch)
}

type lastTrade struct {
	price     decimal.Decimal
	timestamp int64
}

// HandleBatch writes the newest price per symbol found in msgs. Undecodable
// messages are skipped; a storage error fails the batch so it is retried.
func (w *Worker) HandleBatch(ctx context.Context, msgs []kafkawrapper.Message) error {
	latest := make(map[string]lastTrade)
	for _, msg := range msgs {
		ev, err := event.DecodeTrade(msg.Value)
		if err != nil || ev.Symbol == "" {
			w.logger.Warn(ctx, "skip malformed trade",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			continue
		}
		if cur, ok := latest[ev.Symbol]; ok && cur.timestamp > ev.Timestamp {
			continue
		}
		latest[ev.Symbol] = lastTrade{price: ev.Price, timestamp: ev.Timestamp}
	}

	for symbol, trade := range latest {
		if !w.newer(symbol, trade.timestamp) {
			continue
		}
		err := w.instrument.UpdateDisplayPrice(ctx, symbol, trade.price)
		if errors.Is(err, repo.ErrNotFound) {
			w.logger.Warn(ctx, "trade for unknown instrument", zap.String("symbol", symbol))
			continue
		}
		if err != nil {
			w.logger.Error(ctx, "update display price fail", zap.String("symbol", symbol), zap.Error(err))
			return err
		}
		w.markApplied(symbol, trade.timestamp)
		w.logger.Debug(ctx, "display price updated",
			zap.String("symbol", symbol),
			zap.String("price", trade.price.String()))
	}
	return nil
}

// newer reports whether ts is not older than the price already written.
// Batches run on several goroutines, so an old batch may finish last.
func (w *Worker) newer(symbol string, ts int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	last, ok := w.applied[symbol]
	return !ok || ts >= last
}

func (w *Worker) markApplied(symbol string, ts int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ts > w.applied[symbol] {
		w.applied[symbol] = ts
	}
}
