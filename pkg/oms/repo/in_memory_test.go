package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joripage/exchange-sim/pkg/oms/model"
	"github.com/shopspring/decimal"
)

var errAbort = errors.New("abort")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestInMemoryTransactionCommit(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepo()
	if _, err := r.Account().Create(ctx, &model.Account{Owner: "alice", CashBalance: dec("100")}); err != nil {
		t.Fatalf("create account: %v", err)
	}

	err := r.Transaction(ctx, func(tx IRepo) error {
		if err := tx.Account().AddCash(ctx, "alice", dec("-40")); err != nil {
			return err
		}
		return tx.Holding().AddQuantity(ctx, "alice", 1, 5)
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	acc, _ := r.Account().Get(ctx, "alice")
	if !acc.CashBalance.Equal(dec("60")) {
		t.Fatalf("expected 60, got %s", acc.CashBalance)
	}
	h, err := r.Holding().GetForUpdate(ctx, "alice", 1)
	if err != nil || h.Quantity != 5 {
		t.Fatalf("expected holding 5, got %+v %v", h, err)
	}
}

func TestInMemoryTransactionRollback(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepo()
	r.Account().Create(ctx, &model.Account{Owner: "alice", CashBalance: dec("100")})
	r.Holding().AddQuantity(ctx, "alice", 1, 10)

	var orderID int64
	err := r.Transaction(ctx, func(tx IRepo) error {
		tx.Account().AddCash(ctx, "alice", dec("-40"))
		tx.Holding().AddQuantity(ctx, "alice", 1, -10)
		tx.Holding().AddQuantity(ctx, "bob", 1, 3)
		o, _ := tx.Order().Create(ctx, &model.Order{Owner: "alice", InstrumentID: 1, Quantity: 1})
		orderID = o.ID
		tx.Trade().Create(ctx, &model.Trade{InstrumentID: 1, Quantity: 1, Price: dec("1")})
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected abort, got %v", err)
	}

	acc, _ := r.Account().Get(ctx, "alice")
	if !acc.CashBalance.Equal(dec("100")) {
		t.Errorf("cash not rolled back: %s", acc.CashBalance)
	}
	h, _ := r.Holding().GetForUpdate(ctx, "alice", 1)
	if h.Quantity != 10 {
		t.Errorf("holding not rolled back: %d", h.Quantity)
	}
	if _, err := r.Holding().GetForUpdate(ctx, "bob", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("created holding survived rollback")
	}
	if _, err := r.Order().GetForUpdate(ctx, orderID); !errors.Is(err, ErrNotFound) {
		t.Errorf("order survived rollback")
	}
	if trades, _ := r.Trade().ListByInstrument(ctx, 1); len(trades) != 0 {
		t.Errorf("trade survived rollback")
	}
}

func TestInMemoryNestedTransaction(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepo()
	r.Account().Create(ctx, &model.Account{Owner: "alice", CashBalance: dec("100")})

	err := r.Transaction(ctx, func(tx IRepo) error {
		tx.Account().AddCash(ctx, "alice", dec("10"))
		inner := tx.Transaction(ctx, func(tx IRepo) error {
			tx.Account().AddCash(ctx, "alice", dec("50"))
			return errAbort
		})
		if !errors.Is(inner, errAbort) {
			t.Fatalf("expected inner abort, got %v", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	acc, _ := r.Account().Get(ctx, "alice")
	if !acc.CashBalance.Equal(dec("110")) {
		t.Fatalf("expected 110, got %s", acc.CashBalance)
	}
}

func TestInMemoryBalancesNeverNegative(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepo()
	r.Account().Create(ctx, &model.Account{Owner: "alice", CashBalance: dec("10")})
	r.Holding().AddQuantity(ctx, "alice", 1, 2)

	if err := r.Account().AddCash(ctx, "alice", dec("-10.0001")); !errors.Is(err, ErrNegativeBalance) {
		t.Errorf("expected negative balance error, got %v", err)
	}
	if err := r.Holding().AddQuantity(ctx, "alice", 1, -3); !errors.Is(err, ErrNegativeBalance) {
		t.Errorf("expected negative holding error, got %v", err)
	}
	if err := r.Holding().AddQuantity(ctx, "bob", 1, -1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := r.Account().AddCash(ctx, "bob", dec("1")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := r.Account().Create(ctx, &model.Account{Owner: "carol", CashBalance: dec("-1")}); !errors.Is(err, ErrNegativeBalance) {
		t.Errorf("expected negative balance error, got %v", err)
	}
}

func TestInMemoryInstruments(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepo()

	for _, sym := range []string{"MSFT", "AAPL"} {
		if _, err := r.Instrument().Create(ctx, &model.Instrument{Symbol: sym, IsActive: true}); err != nil {
			t.Fatalf("create %s: %v", sym, err)
		}
	}
	r.Instrument().Create(ctx, &model.Instrument{Symbol: "OLD"})

	if _, err := r.Instrument().Create(ctx, &model.Instrument{Symbol: "AAPL"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	list, _ := r.Instrument().ListActive(ctx)
	if len(list) != 2 || list[0].Symbol != "AAPL" || list[1].Symbol != "MSFT" {
		t.Fatalf("unexpected active list %+v", list)
	}

	if err := r.Instrument().UpdateDisplayPrice(ctx, "AAPL", dec("187.25")); err != nil {
		t.Fatalf("update price: %v", err)
	}
	got, _ := r.Instrument().GetBySymbol(ctx, "AAPL")
	if !got.DisplayPrice.Equal(dec("187.25")) {
		t.Fatalf("expected 187.25, got %s", got.DisplayPrice)
	}
	if err := r.Instrument().UpdateDisplayPrice(ctx, "NOPE", dec("1")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInMemoryOrders(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepo()
	t0 := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	key := "k-1"
	p := dec("100")

	orders := []*model.Order{
		{Owner: "alice", InstrumentID: 1, Type: model.OrderTypeLimit, Status: model.OrderStatusOpen, Price: &p, Quantity: 5, CreatedAt: t0.Add(2 * time.Second), IdempotencyKey: &key},
		{Owner: "alice", InstrumentID: 1, Type: model.OrderTypeLimit, Status: model.OrderStatusPartiallyFilled, Price: &p, Quantity: 5, FilledQuantity: 1, CreatedAt: t0},
		{Owner: "bob", InstrumentID: 1, Type: model.OrderTypeMarket, Status: model.OrderStatusPartiallyFilled, Quantity: 5, FilledQuantity: 1, CreatedAt: t0},
		{Owner: "bob", InstrumentID: 1, Type: model.OrderTypeLimit, Status: model.OrderStatusFilled, Price: &p, Quantity: 5, FilledQuantity: 5, CreatedAt: t0},
		{Owner: "bob", InstrumentID: 2, Type: model.OrderTypeLimit, Status: model.OrderStatusOpen, Price: &p, Quantity: 5, CreatedAt: t0},
	}
	for _, o := range orders {
		if _, err := r.Order().Create(ctx, o); err != nil {
			t.Fatalf("create order: %v", err)
		}
	}

	dup := &model.Order{Owner: "alice", IdempotencyKey: &key}
	if _, err := r.Order().Create(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate key, got %v", err)
	}
	// the same key is free for another owner
	if _, err := r.Order().Create(ctx, &model.Order{Owner: "bob", InstrumentID: 3, IdempotencyKey: &key}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	got, err := r.Order().GetByIdempotencyKey(ctx, "alice", key)
	if err != nil || got.ID != orders[0].ID {
		t.Fatalf("lookup by key: %+v %v", got, err)
	}

	resting, _ := r.Order().ListResting(ctx, 1)
	if len(resting) != 2 || resting[0].ID != orders[1].ID || resting[1].ID != orders[0].ID {
		t.Fatalf("unexpected resting orders %+v", resting)
	}

	mine, _ := r.Order().ListByOwner(ctx, "alice")
	if len(mine) != 2 || mine[0].ID != orders[0].ID {
		t.Fatalf("expected newest first, got %+v", mine)
	}

	upd := *orders[1]
	upd.ApplyFill(4)
	if err := r.Order().UpdateFill(ctx, &upd); err != nil {
		t.Fatalf("update fill: %v", err)
	}
	stored, _ := r.Order().GetForUpdate(ctx, upd.ID)
	if stored.Status != model.OrderStatusFilled || stored.FilledQuantity != 5 {
		t.Fatalf("fill not stored: %+v", stored)
	}
}

func TestInMemoryTransactionCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewInMemoryRepo()
	called := false
	err := r.Transaction(ctx, func(tx IRepo) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected cancelled unit, got %v", err)
	}
}
