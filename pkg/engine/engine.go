package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/joripage/exchange-sim/pkg/orderbook"
)

// Loader reads the committed resting orders of a symbol so a book can be
// rebuilt from storage.
type Loader interface {
	LoadBook(ctx context.Context, symbol string) ([]*orderbook.Entry, error)
}

type Engine struct {
	registry *Registry
	loader   Loader
}

func NewEngine(registry *Registry, loader Loader) *Engine {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Engine{
		registry: registry,
		loader:   loader,
	}
}

func (e *Engine) Registry() *Registry {
	return e.registry
}

// Match locks the symbol and matches order against its book. Nothing is
// persisted.
func (e *Engine) Match(ctx context.Context, symbol string, order *Order) (*MatchResult, error) {
	var result *MatchResult
	err := e.Execute(ctx, symbol, func(s *Session) error {
		var err error
		result, err = s.Match(order)
		return err
	})
	return result, err
}

// Execute runs fn while holding the symbol's lock. When fn fails after it
// changed the book, the book is rebuilt from the loader before the lock is
// released, so a failed unit never leaves liquidity that storage does not
// have.
func (e *Engine) Execute(ctx context.Context, symbol string, fn func(*Session) error) error {
	m := e.registry.Get(symbol)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stale {
		if err := e.rebuild(ctx, m); err != nil {
			return fmt.Errorf("%w: %v", ErrBookUnavailable, err)
		}
	}

	s := &Session{market: m}
	err := fn(s)
	if err != nil && s.dirty {
		// the request context may be the reason fn failed
		if rerr := e.rebuild(context.WithoutCancel(ctx), m); rerr != nil {
			m.stale = true
			return errors.Join(err, fmt.Errorf("%w: %v", ErrBookUnavailable, rerr))
		}
	}
	return err
}

// Rebuild replaces the symbol's book with one replayed from storage.
func (e *Engine) Rebuild(ctx context.Context, symbol string) error {
	m := e.registry.Get(symbol)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := e.rebuild(ctx, m); err != nil {
		m.stale = true
		return err
	}
	return nil
}

func (e *Engine) rebuild(ctx context.Context, m *Market) error {
	if e.loader == nil {
		return errors.New("no book loader configured")
	}

	entries, err := e.loader.LoadBook(ctx, m.symbol)
	if err != nil {
		return err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ArrivalTime.Equal(entries[j].ArrivalTime) {
			return entries[i].OrderID < entries[j].OrderID
		}
		return entries[i].ArrivalTime.Before(entries[j].ArrivalTime)
	})

	book := orderbook.New(m.symbol)
	for _, entry := range entries {
		if err := book.Insert(entry); err != nil {
			return fmt.Errorf("replay order %d: %w", entry.OrderID, err)
		}
	}

	m.book = book
	m.stale = false
	return nil
}

// Depth snapshots the top n levels of the symbol's book. A stale book is
// rebuilt first and never served.
func (e *Engine) Depth(ctx context.Context, symbol string, n int) (orderbook.Depth, error) {
	m := e.registry.Get(symbol)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stale {
		if err := e.rebuild(ctx, m); err != nil {
			return orderbook.Depth{}, fmt.Errorf("%w: %v", ErrBookUnavailable, err)
		}
	}
	return m.book.Depth(n), nil
}
