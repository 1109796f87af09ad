package engine

import (
	"context"
	"testing"
	"time"

	"github.com/joripage/exchange-sim/pkg/orderbook"
	"github.com/shopspring/decimal"
)

var t0 = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

func px(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func limit(id int64, side orderbook.Side, price string, qty int64) *Order {
	return &Order{
		ID:          id,
		Owner:       "u" + string(rune('a'+id%26)),
		Side:        side,
		Type:        LIMIT,
		Price:       px(price),
		Quantity:    qty,
		ArrivalTime: t0.Add(time.Duration(id) * time.Second),
	}
}

func market(id int64, side orderbook.Side, qty int64) *Order {
	return &Order{
		ID:          id,
		Owner:       "m" + string(rune('a'+id%26)),
		Side:        side,
		Type:        MARKET,
		Quantity:    qty,
		ArrivalTime: t0.Add(time.Duration(id) * time.Second),
	}
}

func mustMatch(t *testing.T, e *Engine, o *Order) *MatchResult {
	t.Helper()
	res, err := e.Match(context.Background(), "ABC", o)
	if err != nil {
		t.Fatalf("match order %d: %v", o.ID, err)
	}
	return res
}

func mustDepth(t *testing.T, e *Engine, symbol string) orderbook.Depth {
	t.Helper()
	depth, err := e.Depth(context.Background(), symbol, 10)
	if err != nil {
		t.Fatalf("depth %s: %v", symbol, err)
	}
	return depth
}

func TestRestingLimitOrder(t *testing.T) {
	e := NewEngine(nil, nil)

	res := mustMatch(t, e, limit(1, orderbook.BUY, "199.50", 10))
	if len(res.Fills) != 0 || !res.Rested || res.FilledQuantity != 0 {
		t.Fatalf("expected resting order, got %+v", res)
	}

	depth := mustDepth(t, e, "ABC")
	if len(depth.Bids) != 1 || !depth.Bids[0].Price.Equal(px("199.50")) || depth.Bids[0].Qty != 10 {
		t.Fatalf("unexpected depth %+v", depth)
	}
}

func TestMakerPriceWins(t *testing.T) {
	e := NewEngine(nil, nil)
	mustMatch(t, e, limit(1, orderbook.BUY, "199.50", 10))

	res := mustMatch(t, e, limit(2, orderbook.SELL, "199.00", 5))
	if len(res.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(res.Fills))
	}
	f := res.Fills[0]
	if !f.Price.Equal(px("199.50")) || f.Quantity != 5 {
		t.Errorf("expected 5 @ 199.50, got %d @ %s", f.Quantity, f.Price)
	}
	if f.BuyOrderID != 1 || f.SellOrderID != 2 || f.MakerOrderID != 1 {
		t.Errorf("incorrect order IDs in fill: %+v", f)
	}
	if res.FilledQuantity != 5 || res.Rested {
		t.Errorf("taker should be fully filled, got %+v", res)
	}

	depth := mustDepth(t, e, "ABC")
	if len(depth.Bids) != 1 || depth.Bids[0].Qty != 5 {
		t.Fatalf("expected bid 5 left, got %+v", depth.Bids)
	}
}

func TestNoMatchDueToPrice(t *testing.T) {
	e := NewEngine(nil, nil)
	mustMatch(t, e, limit(1, orderbook.SELL, "100", 10))

	res := mustMatch(t, e, limit(2, orderbook.BUY, "98", 10))
	if len(res.Fills) != 0 {
		t.Fatalf("expected no match, got %d", len(res.Fills))
	}

	depth := mustDepth(t, e, "ABC")
	if len(depth.Bids) != 1 || len(depth.Asks) != 1 {
		t.Fatalf("both orders should rest, got %+v", depth)
	}
}

func TestFIFOMatch(t *testing.T) {
	e := NewEngine(nil, nil)
	mustMatch(t, e, limit(1, orderbook.SELL, "100", 5))
	mustMatch(t, e, limit(2, orderbook.SELL, "100", 5))

	res := mustMatch(t, e, limit(3, orderbook.BUY, "100", 10))
	if len(res.Fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(res.Fills))
	}
	if res.Fills[0].SellOrderID != 1 || res.Fills[1].SellOrderID != 2 {
		t.Errorf("expected FIFO fill order, got %+v", res.Fills)
	}
}

func TestMultiLevelMatch(t *testing.T) {
	e := NewEngine(nil, nil)
	mustMatch(t, e, limit(1, orderbook.SELL, "101", 5))
	mustMatch(t, e, limit(2, orderbook.SELL, "103", 5))
	mustMatch(t, e, limit(3, orderbook.SELL, "102", 5))

	res := mustMatch(t, e, limit(4, orderbook.BUY, "105", 20))
	if len(res.Fills) != 3 {
		t.Fatalf("expected 3 fills, got %d", len(res.Fills))
	}
	want := []string{"101", "102", "103"}
	for i, f := range res.Fills {
		if !f.Price.Equal(px(want[i])) {
			t.Errorf("fill %d: expected price %s, got %s", i, want[i], f.Price)
		}
	}
	if !res.Rested || res.Remaining != 5 {
		t.Fatalf("expected 5 to rest, got %+v", res)
	}
	bid, _ := e.Registry().Get("ABC").book.BestBid()
	if bid.OrderID != 4 || !bid.Price.Equal(px("105")) {
		t.Errorf("remainder should rest at the taker's limit, got %+v", bid)
	}
}

func TestMarketOrderNeverRests(t *testing.T) {
	e := NewEngine(nil, nil)
	mustMatch(t, e, limit(1, orderbook.SELL, "100", 4))

	res := mustMatch(t, e, market(2, orderbook.BUY, 10))
	if res.FilledQuantity != 4 || res.Remaining != 6 || res.Rested {
		t.Fatalf("unexpected market result %+v", res)
	}

	depth := mustDepth(t, e, "ABC")
	if len(depth.Bids) != 0 || len(depth.Asks) != 0 {
		t.Fatalf("market remainder must not appear in depth, got %+v", depth)
	}
}

func TestMarketOrderEmptyBook(t *testing.T) {
	e := NewEngine(nil, nil)

	res := mustMatch(t, e, market(1, orderbook.SELL, 10))
	if len(res.Fills) != 0 || res.FilledQuantity != 0 || res.Rested {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestMarketBuyBudget(t *testing.T) {
	e := NewEngine(nil, nil)
	mustMatch(t, e, limit(1, orderbook.SELL, "10", 5))
	mustMatch(t, e, limit(2, orderbook.SELL, "12", 5))

	// 5 @ 10 = 50 leaves 25, enough for 2 @ 12
	o := market(3, orderbook.BUY, 10)
	o.Budget = px("75")
	res := mustMatch(t, e, o)

	if res.FilledQuantity != 7 {
		t.Fatalf("expected 7 filled within budget, got %+v", res)
	}
	spent := decimal.Zero
	for _, f := range res.Fills {
		spent = spent.Add(f.Notional())
	}
	if spent.GreaterThan(o.Budget) {
		t.Fatalf("spent %s over budget %s", spent, o.Budget)
	}
	ask, _ := e.Registry().Get("ABC").book.BestAsk()
	if ask.OrderID != 2 || ask.RemainingQuantity != 3 {
		t.Errorf("expected 3 left on order 2, got %+v", ask)
	}
}

func TestPartiallyFilledTakerResumes(t *testing.T) {
	e := NewEngine(nil, nil)
	mustMatch(t, e, limit(1, orderbook.SELL, "100", 10))

	o := limit(2, orderbook.BUY, "100", 10)
	o.FilledQuantity = 6
	res := mustMatch(t, e, o)

	if len(res.Fills) != 1 || res.Fills[0].Quantity != 4 {
		t.Fatalf("only the unfilled 4 should match, got %+v", res.Fills)
	}
	if res.FilledQuantity != 10 {
		t.Errorf("expected cumulative fill 10, got %d", res.FilledQuantity)
	}
}

func TestInvalidTaker(t *testing.T) {
	e := NewEngine(nil, nil)

	bad := []*Order{
		limit(1, orderbook.BUY, "100", 0),
		limit(2, orderbook.BUY, "0", 1),
		{ID: 3, Side: orderbook.BUY, Type: OrderType("STOP"), Price: px("1"), Quantity: 1},
		{ID: 4, Side: orderbook.Side("X"), Type: MARKET, Quantity: 1},
	}
	for _, o := range bad {
		if _, err := e.Match(context.Background(), "ABC", o); err == nil {
			t.Errorf("order %d: expected error", o.ID)
		}
	}
}

func TestSelfCrossNeverRests(t *testing.T) {
	e := NewEngine(nil, nil)
	mustMatch(t, e, limit(1, orderbook.BUY, "100", 5))
	mustMatch(t, e, limit(2, orderbook.SELL, "99", 10))

	book := e.Registry().Get("ABC").book
	if _, ok := book.BestBid(); ok {
		t.Fatalf("bid should be consumed")
	}
	ask, _ := book.BestAsk()
	if ask.RemainingQuantity != 5 || !ask.Price.Equal(px("99")) {
		t.Fatalf("expected 5 resting at 99, got %+v", ask)
	}
}

func BenchmarkMatch(b *testing.B) {
	e := NewEngine(nil, nil)
	ctx := context.Background()

	for i := 0; i < 10_000; i++ {
		_, _ = e.Match(ctx, "ABC", &Order{
			ID:          int64(i),
			Side:        orderbook.SELL,
			Type:        LIMIT,
			Price:       decimal.NewFromInt(int64(100 + i%5)),
			Quantity:    10,
			ArrivalTime: t0,
		})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Match(ctx, "ABC", &Order{
			ID:          int64(100_000 + i),
			Side:        orderbook.BUY,
			Type:        LIMIT,
			Price:       decimal.NewFromInt(101),
			Quantity:    10,
			ArrivalTime: t0,
		})
	}
}
