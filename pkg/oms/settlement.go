package oms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joripage/exchange-sim/pkg/engine"
	"github.com/joripage/exchange-sim/pkg/oms/event"
	"github.com/joripage/exchange-sim/pkg/oms/model"
	"github.com/joripage/exchange-sim/pkg/oms/repo"
	"github.com/joripage/exchange-sim/pkg/orderbook"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Submit validates and reserves for req, persists the order, matches it and
// settles every fill, committing all of it as one unit. It returns the taker
// order in its final state.
func (s *OMS) Submit(ctx context.Context, req *model.OrderRequest, owner string) (*model.Order, error) {
	if owner == "" {
		return nil, newError(KindInvalidOrder, "owner is required")
	}
	if err := req.Validate(); err != nil {
		return nil, newError(KindInvalidOrder, "%v", err)
	}
	symbol := model.NormalizeSymbol(req.InstrumentSymbol)

	if existing, err := s.findIdempotent(ctx, s.repo, req, owner); err != nil {
		return nil, settlementError(err)
	} else if existing != nil {
		return existing, nil
	}

	instrument, err := s.repo.Instrument().GetBySymbol(ctx, symbol)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !instrument.IsActive) {
		return nil, newError(KindInstrumentNotFound, "instrument %s not found", symbol)
	}
	if err != nil {
		return nil, settlementError(err)
	}

	for _, rule := range s.rules {
		if err := rule.Check(req, instrument); err != nil {
			return nil, newError(KindInvalidOrder, "%v", err)
		}
	}

	var (
		order  *model.Order
		trades []*model.Trade
		replay bool
	)
	err = s.engine.Execute(ctx, symbol, func(sess *engine.Session) error {
		err := s.repo.Transaction(ctx, func(tx repo.IRepo) error {
			existing, err := s.findIdempotent(ctx, tx, req, owner)
			if err != nil {
				return err
			}
			if existing != nil {
				order, replay = existing, true
				return nil
			}

			order, trades, err = s.settle(ctx, tx, sess, instrument, req, owner)
			return err
		})
		if err != nil || replay {
			return err
		}

		// enqueued under the lock so a symbol's events leave in commit order
		s.publish(ctx, symbol, trades, sess.Depth(s.depthLevels))
		return nil
	})
	if err != nil {
		if KindOf(err) != "" {
			return nil, err
		}
		if errors.Is(err, repo.ErrDuplicate) && req.IdempotencyKey != "" {
			// lost a race on the idempotency key against another symbol
			if existing, ferr := s.findIdempotent(ctx, s.repo, req, owner); existing != nil {
				return existing, nil
			} else if ferr != nil {
				err = errors.Join(err, ferr)
			}
		}
		s.logger.Error(ctx, "settlement failed",
			zap.String("symbol", symbol),
			zap.String("owner", owner),
			zap.Error(err))
		return nil, settlementError(err)
	}

	if !replay {
		s.logger.Info(ctx, "order submitted",
			zap.Int64("order_id", order.ID),
			zap.String("symbol", symbol),
			zap.String("side", string(order.Side)),
			zap.String("type", string(order.Type)),
			zap.Int64("quantity", order.Quantity),
			zap.Int64("filled_quantity", order.FilledQuantity),
			zap.String("status", string(order.Status)),
			zap.Int("trades", len(trades)))
	}
	return order, nil
}

func (s *OMS) findIdempotent(ctx context.Context, r repo.IRepo, req *model.OrderRequest, owner string) (*model.Order, error) {
	if req.IdempotencyKey == "" {
		return nil, nil
	}
	existing, err := r.Order().GetByIdempotencyKey(ctx, owner, req.IdempotencyKey)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// settle runs inside the symbol lock and the storage transaction. Business
// failures are returned before the book is touched.
func (s *OMS) settle(ctx context.Context, tx repo.IRepo, sess *engine.Session,
	instrument *model.Instrument, req *model.OrderRequest, owner string,
) (*model.Order, []*model.Trade, error) {
	now := s.arrival()
	qty := decimal.NewFromInt(req.Quantity)

	var reserved decimal.Decimal
	switch req.Side {
	case model.OrderSideBuy:
		var price decimal.Decimal
		if req.Type == model.OrderTypeLimit {
			price = *req.Price
		} else {
			best, ok := sess.Book().BestAsk()
			if !ok {
				return nil, nil, newError(KindNoLiquidity, "no asks for %s", instrument.Symbol)
			}
			price = best.Price
		}
		reserved = price.Mul(qty)

		account, err := tx.Account().GetForUpdate(ctx, owner)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, newError(KindInsufficientFunds, "no cash account for %s", owner)
		}
		if err != nil {
			return nil, nil, err
		}
		if account.CashBalance.LessThan(reserved) {
			return nil, nil, newError(KindInsufficientFunds, "required %s, available %s",
				reserved.StringFixed(4), account.CashBalance.StringFixed(4))
		}
		if err := tx.Account().AddCash(ctx, owner, reserved.Neg()); err != nil {
			return nil, nil, err
		}

	case model.OrderSideSell:
		if req.Type == model.OrderTypeMarket {
			if _, ok := sess.Book().BestBid(); !ok {
				return nil, nil, newError(KindNoLiquidity, "no bids for %s", instrument.Symbol)
			}
		}

		holding, err := tx.Holding().GetForUpdate(ctx, owner, instrument.ID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, newError(KindInsufficientHoldings, "no %s holding", instrument.Symbol)
		}
		if err != nil {
			return nil, nil, err
		}
		if holding.Quantity < req.Quantity {
			return nil, nil, newError(KindInsufficientHoldings, "required %d, available %d",
				req.Quantity, holding.Quantity)
		}
		if err := tx.Holding().AddQuantity(ctx, owner, instrument.ID, -req.Quantity); err != nil {
			return nil, nil, err
		}
	}

	order := &model.Order{
		Owner:        owner,
		InstrumentID: instrument.ID,
		Symbol:       instrument.Symbol,
		Side:         req.Side,
		Type:         req.Type,
		Status:       model.OrderStatusOpen,
		Quantity:     req.Quantity,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Type == model.OrderTypeLimit {
		price := *req.Price
		order.Price = &price
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		order.IdempotencyKey = &key
	}
	if _, err := tx.Order().Create(ctx, order); err != nil {
		return nil, nil, err
	}

	taker := &engine.Order{
		ID:          order.ID,
		Owner:       owner,
		Side:        orderbook.Side(order.Side),
		Type:        engine.OrderType(order.Type),
		Price:       order.LimitPrice(),
		Quantity:    order.Quantity,
		ArrivalTime: now,
	}
	if req.Side == model.OrderSideBuy && req.Type == model.OrderTypeMarket {
		taker.Budget = reserved
	}
	result, err := sess.Match(taker)
	if err != nil {
		return nil, nil, err
	}

	trades := make([]*model.Trade, 0, len(result.Fills))
	spent := decimal.Zero
	for _, fill := range result.Fills {
		trade, err := s.applyFill(ctx, tx, instrument, fill, now)
		if err != nil {
			return nil, nil, err
		}
		trades = append(trades, trade)
		spent = spent.Add(fill.Notional())

		// a BUY LIMIT reserved at its limit; give back the price improvement
		if req.Side == model.OrderSideBuy && req.Type == model.OrderTypeLimit {
			improvement := order.LimitPrice().Sub(fill.Price).Mul(decimal.NewFromInt(fill.Quantity))
			if improvement.IsPositive() {
				if err := tx.Account().AddCash(ctx, owner, improvement); err != nil {
					return nil, nil, err
				}
			}
		}
	}

	order.FilledQuantity = result.FilledQuantity
	order.RefreshStatus()
	if err := tx.Order().UpdateFill(ctx, order); err != nil {
		return nil, nil, err
	}

	// a MARKET remainder never rests, so release what it still holds
	if req.Type == model.OrderTypeMarket {
		switch req.Side {
		case model.OrderSideBuy:
			if unused := reserved.Sub(spent); unused.IsPositive() {
				if err := tx.Account().AddCash(ctx, owner, unused); err != nil {
					return nil, nil, err
				}
			}
		case model.OrderSideSell:
			if result.Remaining > 0 {
				if err := tx.Holding().AddQuantity(ctx, owner, instrument.ID, result.Remaining); err != nil {
					return nil, nil, err
				}
			}
		}
	}

	return order, trades, nil
}

func (s *OMS) applyFill(ctx context.Context, tx repo.IRepo, instrument *model.Instrument,
	fill engine.Fill, now time.Time,
) (*model.Trade, error) {
	trade := &model.Trade{
		BuyOrderID:   fill.BuyOrderID,
		SellOrderID:  fill.SellOrderID,
		MakerOrderID: fill.MakerOrderID,
		InstrumentID: instrument.ID,
		Symbol:       instrument.Symbol,
		Price:        fill.Price,
		Quantity:     fill.Quantity,
		CreatedAt:    now,
	}
	if _, err := tx.Trade().Create(ctx, trade); err != nil {
		return nil, err
	}

	maker, err := tx.Order().GetForUpdate(ctx, fill.MakerOrderID)
	if err != nil {
		return nil, fmt.Errorf("load maker order %d: %w", fill.MakerOrderID, err)
	}
	maker.ApplyFill(fill.Quantity)
	if err := tx.Order().UpdateFill(ctx, maker); err != nil {
		return nil, err
	}

	if err := tx.Account().AddCash(ctx, fill.SellOwner, fill.Notional()); err != nil {
		return nil, fmt.Errorf("credit seller %s: %w", fill.SellOwner, err)
	}
	if err := tx.Holding().AddQuantity(ctx, fill.BuyOwner, instrument.ID, fill.Quantity); err != nil {
		return nil, fmt.Errorf("credit buyer %s: %w", fill.BuyOwner, err)
	}
	return trade, nil
}

func (s *OMS) publish(ctx context.Context, symbol string, trades []*model.Trade, depth orderbook.Depth) {
	for _, t := range trades {
		err := s.publisher.PublishTrade(ctx, event.TradeEvent{
			Symbol:    symbol,
			Price:     t.Price,
			Quantity:  t.Quantity,
			Timestamp: t.CreatedAt.UnixMilli(),
		})
		if err != nil {
			s.logger.Warn(ctx, "publish trade fail", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	if err := s.publisher.PublishDepth(ctx, event.DepthEvent{Symbol: symbol, Depth: depth}); err != nil {
		s.logger.Warn(ctx, "publish depth fail", zap.String("symbol", symbol), zap.Error(err))
	}
}

func settlementError(err error) error {
	return fmt.Errorf("%w: %w", ErrSettlementFailed, err)
}
