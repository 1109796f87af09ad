package engine

import (
	"context"
	"testing"
	"time"

	"github.com/joripage/exchange-sim/pkg/orderbook"
	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

func restingQty(book *orderbook.OrderBook) int64 {
	var total int64
	for _, side := range []orderbook.Side{orderbook.BUY, orderbook.SELL} {
		for _, e := range book.Entries(side) {
			total += e.RemainingQuantity
		}
	}
	return total
}

func TestMatchProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := NewEngine(nil, nil)
		book := func() *orderbook.OrderBook { return e.Registry().Get("ABC").book }

		n := rapid.IntRange(1, 60).Draw(t, "orders")
		for i := 1; i <= n; i++ {
			o := &Order{
				ID:          int64(i),
				Owner:       rapid.SampledFrom([]string{"alice", "bob", "carol"}).Draw(t, "owner"),
				Side:        rapid.SampledFrom([]orderbook.Side{orderbook.BUY, orderbook.SELL}).Draw(t, "side"),
				Type:        rapid.SampledFrom([]OrderType{LIMIT, LIMIT, LIMIT, MARKET}).Draw(t, "type"),
				Quantity:    rapid.Int64Range(1, 20).Draw(t, "qty"),
				ArrivalTime: t0.Add(time.Duration(i) * time.Millisecond),
			}
			if o.Type == LIMIT {
				cents := rapid.Int64Range(9500, 10500).Draw(t, "price")
				o.Price = decimal.New(cents, -2)
			}

			// counter side in priority order before the taker arrives
			var queue []orderbook.Entry
			for _, e := range book().Entries(o.Side.Opposite()) {
				queue = append(queue, *e)
			}
			before := restingQty(book())

			res, err := e.Match(context.Background(), "ABC", o)
			if err != nil {
				t.Fatalf("match %d: %v", o.ID, err)
			}

			var filled int64
			for k, f := range res.Fills {
				filled += f.Quantity
				if k >= len(queue) {
					t.Fatalf("fill %d has no maker in the book", k)
				}
				maker := queue[k]
				if f.MakerOrderID != maker.OrderID {
					t.Fatalf("fill %d: expected maker %d, got %d", k, maker.OrderID, f.MakerOrderID)
				}
				if !f.Price.Equal(maker.Price) {
					t.Fatalf("fill %d: price %s differs from maker price %s", k, f.Price, maker.Price)
				}
				if k < len(res.Fills)-1 && f.Quantity != maker.RemainingQuantity {
					t.Fatalf("fill %d: maker %d skipped before exhaustion", k, maker.OrderID)
				}
				if o.Type == LIMIT && !crosses(o.Side, o.Price, f.Price) {
					t.Fatalf("fill %d: price %s violates limit %s", k, f.Price, o.Price)
				}
			}

			if filled+res.Remaining != o.Quantity || res.FilledQuantity != filled {
				t.Fatalf("quantity not conserved: filled %d remaining %d of %d", filled, res.Remaining, o.Quantity)
			}

			after := restingQty(book())
			var rested int64
			if res.Rested {
				rested = res.Remaining
			}
			if after != before-filled+rested {
				t.Fatalf("resting quantity %d, expected %d", after, before-filled+rested)
			}

			_, inBook := book().Get(o.ID)
			if o.Type == MARKET && inBook {
				t.Fatalf("market order %d rests", o.ID)
			}
			if o.Type == LIMIT && inBook != (res.Remaining > 0) {
				t.Fatalf("limit order %d: in book %v with remaining %d", o.ID, inBook, res.Remaining)
			}

			bid, okBid := book().BestBid()
			ask, okAsk := book().BestAsk()
			if okBid && okAsk && !bid.Price.LessThan(ask.Price) {
				t.Fatalf("book crossed: bid %s ask %s", bid.Price, ask.Price)
			}
		}
	})
}
