package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/joripage/exchange-sim/pkg/oms/model"
	"github.com/shopspring/decimal"
)

type holdingKey struct {
	owner        string
	instrumentID int64
}

type idempotencyKey struct {
	owner string
	key   string
}

// memStore holds the records of an InMemoryRepo. Every mutation pushes an
// undo func so a failed unit of work can be rolled back.
type memStore struct {
	instruments map[int64]*model.Instrument
	symbols     map[string]int64
	orders      map[int64]*model.Order
	idempotency map[idempotencyKey]int64
	trades      []*model.Trade
	accounts    map[string]*model.Account
	holdings    map[holdingKey]*model.Holding

	nextInstrumentID int64
	nextOrderID      int64
	nextTradeID      int64
	nextHoldingID    int64

	undo []func()
}

func newMemStore() *memStore {
	return &memStore{
		instruments: make(map[int64]*model.Instrument),
		symbols:     make(map[string]int64),
		orders:      make(map[int64]*model.Order),
		idempotency: make(map[idempotencyKey]int64),
		accounts:    make(map[string]*model.Account),
		holdings:    make(map[holdingKey]*model.Holding),
	}
}

func (s *memStore) rollback(mark int) {
	for i := len(s.undo) - 1; i >= mark; i-- {
		s.undo[i]()
	}
	s.undo = s.undo[:mark]
}

func (s *memStore) putInstrument(rec *model.Instrument) {
	prev, existed := s.instruments[rec.ID]
	s.instruments[rec.ID] = rec
	s.symbols[rec.Symbol] = rec.ID
	s.undo = append(s.undo, func() {
		if existed {
			s.instruments[rec.ID] = prev
			return
		}
		delete(s.instruments, rec.ID)
		delete(s.symbols, rec.Symbol)
	})
}

func (s *memStore) putOrder(rec *model.Order) {
	prev, existed := s.orders[rec.ID]
	s.orders[rec.ID] = rec
	s.undo = append(s.undo, func() {
		if existed {
			s.orders[rec.ID] = prev
			return
		}
		delete(s.orders, rec.ID)
	})

	if rec.IdempotencyKey != nil && !existed {
		key := idempotencyKey{owner: rec.Owner, key: *rec.IdempotencyKey}
		s.idempotency[key] = rec.ID
		s.undo = append(s.undo, func() { delete(s.idempotency, key) })
	}
}

func (s *memStore) appendTrade(rec *model.Trade) {
	s.trades = append(s.trades, rec)
	n := len(s.trades) - 1
	s.undo = append(s.undo, func() { s.trades = s.trades[:n] })
}

func (s *memStore) putAccount(rec *model.Account) {
	prev, existed := s.accounts[rec.Owner]
	s.accounts[rec.Owner] = rec
	s.undo = append(s.undo, func() {
		if existed {
			s.accounts[rec.Owner] = prev
			return
		}
		delete(s.accounts, rec.Owner)
	})
}

func (s *memStore) putHolding(rec *model.Holding) {
	key := holdingKey{owner: rec.Owner, instrumentID: rec.InstrumentID}
	prev, existed := s.holdings[key]
	s.holdings[key] = rec
	s.undo = append(s.undo, func() {
		if existed {
			s.holdings[key] = prev
			return
		}
		delete(s.holdings, key)
	})
}

// InMemoryRepo is an IRepo kept in process memory. Units of work are
// serialized under one mutex and rolled back from an undo log on failure.
type InMemoryRepo struct {
	mu    sync.Mutex
	store *memStore
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		store: newMemStore(),
	}
}

// run executes fn as its own unit of work.
func (r *InMemoryRepo) run(fn func(*memStore) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	mark := len(r.store.undo)
	if err := fn(r.store); err != nil {
		r.store.rollback(mark)
		return err
	}
	r.store.undo = r.store.undo[:mark]
	return nil
}

func (r *InMemoryRepo) Instrument() IInstrument { return &memInstrument{run: r.run} }
func (r *InMemoryRepo) Order() IOrder           { return &memOrder{run: r.run} }
func (r *InMemoryRepo) Trade() ITrade           { return &memTrade{run: r.run} }
func (r *InMemoryRepo) Account() IAccount       { return &memAccount{run: r.run} }
func (r *InMemoryRepo) Holding() IHolding       { return &memHolding{run: r.run} }

func (r *InMemoryRepo) Transaction(ctx context.Context, fn func(tx IRepo) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.run(func(s *memStore) error {
		return fn(&memUnit{store: s})
	})
}

// memUnit is the view of an InMemoryRepo inside one unit of work. The repo
// mutex is already held.
type memUnit struct {
	store *memStore
}

func (u *memUnit) run(fn func(*memStore) error) error {
	return fn(u.store)
}

func (u *memUnit) Instrument() IInstrument { return &memInstrument{run: u.run} }
func (u *memUnit) Order() IOrder           { return &memOrder{run: u.run} }
func (u *memUnit) Trade() ITrade           { return &memTrade{run: u.run} }
func (u *memUnit) Account() IAccount       { return &memAccount{run: u.run} }
func (u *memUnit) Holding() IHolding       { return &memHolding{run: u.run} }

// Transaction inside a unit behaves like a savepoint.
func (u *memUnit) Transaction(ctx context.Context, fn func(tx IRepo) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mark := len(u.store.undo)
	if err := fn(u); err != nil {
		u.store.rollback(mark)
		return err
	}
	return nil
}

type runFunc func(fn func(*memStore) error) error

type memInstrument struct {
	run runFunc
}

func (m *memInstrument) Create(_ context.Context, record *model.Instrument) (*model.Instrument, error) {
	err := m.run(func(s *memStore) error {
		if _, ok := s.symbols[record.Symbol]; ok {
			return ErrDuplicate
		}
		s.nextInstrumentID++
		record.ID = s.nextInstrumentID
		cp := *record
		s.putInstrument(&cp)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (m *memInstrument) GetBySymbol(_ context.Context, symbol string) (*model.Instrument, error) {
	var out *model.Instrument
	err := m.run(func(s *memStore) error {
		id, ok := s.symbols[symbol]
		if !ok {
			return ErrNotFound
		}
		cp := *s.instruments[id]
		out = &cp
		return nil
	})
	return out, err
}

func (m *memInstrument) ListActive(_ context.Context) ([]*model.Instrument, error) {
	var out []*model.Instrument
	err := m.run(func(s *memStore) error {
		for _, rec := range s.instruments {
			if rec.IsActive {
				cp := *rec
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, err
}

func (m *memInstrument) UpdateDisplayPrice(_ context.Context, symbol string, price decimal.Decimal) error {
	return m.run(func(s *memStore) error {
		id, ok := s.symbols[symbol]
		if !ok {
			return ErrNotFound
		}
		cp := *s.instruments[id]
		cp.DisplayPrice = price
		s.putInstrument(&cp)
		return nil
	})
}

type memOrder struct {
	run runFunc
}

func (m *memOrder) Create(_ context.Context, record *model.Order) (*model.Order, error) {
	err := m.run(func(s *memStore) error {
		if record.IdempotencyKey != nil {
			if _, ok := s.idempotency[idempotencyKey{owner: record.Owner, key: *record.IdempotencyKey}]; ok {
				return ErrDuplicate
			}
		}
		s.nextOrderID++
		record.ID = s.nextOrderID
		cp := *record
		s.putOrder(&cp)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (m *memOrder) GetForUpdate(_ context.Context, id int64) (*model.Order, error) {
	var out *model.Order
	err := m.run(func(s *memStore) error {
		rec, ok := s.orders[id]
		if !ok {
			return ErrNotFound
		}
		cp := *rec
		out = &cp
		return nil
	})
	return out, err
}

func (m *memOrder) GetByIdempotencyKey(_ context.Context, owner, key string) (*model.Order, error) {
	var out *model.Order
	err := m.run(func(s *memStore) error {
		id, ok := s.idempotency[idempotencyKey{owner: owner, key: key}]
		if !ok {
			return ErrNotFound
		}
		cp := *s.orders[id]
		out = &cp
		return nil
	})
	return out, err
}

func (m *memOrder) UpdateFill(_ context.Context, record *model.Order) error {
	return m.run(func(s *memStore) error {
		rec, ok := s.orders[record.ID]
		if !ok {
			return ErrNotFound
		}
		cp := *rec
		cp.FilledQuantity = record.FilledQuantity
		cp.Status = record.Status
		s.putOrder(&cp)
		return nil
	})
}

func (m *memOrder) ListByOwner(_ context.Context, owner string) ([]*model.Order, error) {
	var out []*model.Order
	err := m.run(func(s *memStore) error {
		for _, rec := range s.orders {
			if rec.Owner == owner {
				cp := *rec
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, err
}

func (m *memOrder) ListResting(_ context.Context, instrumentID int64) ([]*model.Order, error) {
	var out []*model.Order
	err := m.run(func(s *memStore) error {
		for _, rec := range s.orders {
			if rec.InstrumentID != instrumentID || rec.Type != model.OrderTypeLimit {
				continue
			}
			if rec.Status == model.OrderStatusOpen || rec.Status == model.OrderStatusPartiallyFilled {
				cp := *rec
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

type memTrade struct {
	run runFunc
}

func (m *memTrade) Create(_ context.Context, record *model.Trade) (*model.Trade, error) {
	err := m.run(func(s *memStore) error {
		s.nextTradeID++
		record.ID = s.nextTradeID
		cp := *record
		s.appendTrade(&cp)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (m *memTrade) ListByInstrument(_ context.Context, instrumentID int64) ([]*model.Trade, error) {
	var out []*model.Trade
	err := m.run(func(s *memStore) error {
		for _, rec := range s.trades {
			if rec.InstrumentID == instrumentID {
				cp := *rec
				out = append(out, &cp)
			}
		}
		return nil
	})
	return out, err
}

type memAccount struct {
	run runFunc
}

func (m *memAccount) Create(_ context.Context, record *model.Account) (*model.Account, error) {
	err := m.run(func(s *memStore) error {
		if record.CashBalance.IsNegative() {
			return ErrNegativeBalance
		}
		if _, ok := s.accounts[record.Owner]; ok {
			return ErrDuplicate
		}
		cp := *record
		s.putAccount(&cp)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (m *memAccount) Get(_ context.Context, owner string) (*model.Account, error) {
	var out *model.Account
	err := m.run(func(s *memStore) error {
		rec, ok := s.accounts[owner]
		if !ok {
			return ErrNotFound
		}
		cp := *rec
		out = &cp
		return nil
	})
	return out, err
}

func (m *memAccount) GetForUpdate(ctx context.Context, owner string) (*model.Account, error) {
	return m.Get(ctx, owner)
}

func (m *memAccount) AddCash(_ context.Context, owner string, delta decimal.Decimal) error {
	return m.run(func(s *memStore) error {
		rec, ok := s.accounts[owner]
		if !ok {
			return ErrNotFound
		}
		balance := rec.CashBalance.Add(delta)
		if balance.IsNegative() {
			return ErrNegativeBalance
		}
		cp := *rec
		cp.CashBalance = balance
		s.putAccount(&cp)
		return nil
	})
}

type memHolding struct {
	run runFunc
}

func (m *memHolding) GetForUpdate(_ context.Context, owner string, instrumentID int64) (*model.Holding, error) {
	var out *model.Holding
	err := m.run(func(s *memStore) error {
		rec, ok := s.holdings[holdingKey{owner: owner, instrumentID: instrumentID}]
		if !ok {
			return ErrNotFound
		}
		cp := *rec
		out = &cp
		return nil
	})
	return out, err
}

func (m *memHolding) ListByOwner(_ context.Context, owner string) ([]*model.Holding, error) {
	var out []*model.Holding
	err := m.run(func(s *memStore) error {
		for _, rec := range s.holdings {
			if rec.Owner == owner {
				cp := *rec
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].InstrumentID < out[j].InstrumentID })
	return out, err
}

func (m *memHolding) AddQuantity(_ context.Context, owner string, instrumentID int64, delta int64) error {
	return m.run(func(s *memStore) error {
		rec, ok := s.holdings[holdingKey{owner: owner, instrumentID: instrumentID}]
		if !ok {
			if delta < 0 {
				return ErrNotFound
			}
			s.nextHoldingID++
			s.putHolding(&model.Holding{
				ID:           s.nextHoldingID,
				Owner:        owner,
				InstrumentID: instrumentID,
				Quantity:     delta,
			})
			return nil
		}
		if rec.Quantity+delta < 0 {
			return ErrNegativeBalance
		}
		cp := *rec
		cp.Quantity += delta
		s.putHolding(&cp)
		return nil
	})
}
