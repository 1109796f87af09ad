package oms

import (
	"context"
	"errors"
	"fmt"

	"github.com/joripage/exchange-sim/pkg/oms/model"
	"github.com/joripage/exchange-sim/pkg/oms/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	errInvalidSymbol = errors.New("symbol is required")
	errInvalidAmount = errors.New("amount must be greater than 0")
	errAccountExists = errors.New("account already exists")
)

// CreateInstrument lists a new active instrument.
func (s *OMS) CreateInstrument(ctx context.Context, symbol, name string, displayPrice decimal.Decimal) (*model.Instrument, error) {
	symbol = model.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, errInvalidSymbol
	}
	if displayPrice.IsNegative() {
		return nil, fmt.Errorf("display price %s is negative", displayPrice)
	}
	if name == "" {
		name = symbol
	}

	now := s.now().UTC()
	instrument, err := s.repo.Instrument().Create(ctx, &model.Instrument{
		Symbol:       symbol,
		Name:         name,
		DisplayPrice: displayPrice,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, newError(KindDuplicateInstrument, "instrument %s already exists", symbol)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "instrument created", zap.String("symbol", symbol))
	return instrument, nil
}

// OpenAccount creates the owner's cash account.
func (s *OMS) OpenAccount(ctx context.Context, owner string, cash decimal.Decimal) (*model.Account, error) {
	if owner == "" {
		return nil, errors.New("owner is required")
	}
	if cash.IsNegative() {
		return nil, errInvalidAmount
	}

	now := s.now().UTC()
	account, err := s.repo.Account().Create(ctx, &model.Account{
		Owner:       owner,
		CashBalance: cash,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, errAccountExists
	}
	return account, err
}

func (s *OMS) DepositCash(ctx context.Context, owner string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errInvalidAmount
	}
	err := s.repo.Account().AddCash(ctx, owner, amount)
	if errors.Is(err, repo.ErrNotFound) {
		return newError(KindAccountNotFound, "no account for %s", owner)
	}
	return err
}

// DepositHoldings credits qty shares of symbol to the owner, opening an
// empty cash account if needed so sale proceeds have somewhere to land.
func (s *OMS) DepositHoldings(ctx context.Context, owner, symbol string, qty int64) error {
	if owner == "" {
		return errors.New("owner is required")
	}
	if qty <= 0 {
		return errInvalidAmount
	}
	instrument, err := s.GetInstrument(ctx, symbol)
	if err != nil {
		return err
	}

	return s.repo.Transaction(ctx, func(tx repo.IRepo) error {
		_, err := tx.Account().Get(ctx, owner)
		if errors.Is(err, repo.ErrNotFound) {
			now := s.now().UTC()
			_, err = tx.Account().Create(ctx, &model.Account{
				Owner:       owner,
				CashBalance: decimal.Zero,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
		if err != nil {
			return err
		}
		return tx.Holding().AddQuantity(ctx, owner, instrument.ID, qty)
	})
}
