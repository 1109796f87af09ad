package oms

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Recover rebuilds the book of every active instrument from its committed
// OPEN and PARTIALLY_FILLED LIMIT orders. Call it before accepting
// submissions.
func (s *OMS) Recover(ctx context.Context) error {
	instruments, err := s.repo.Instrument().ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list instruments: %w", err)
	}

	for _, instrument := range instruments {
		if err := s.engine.Rebuild(ctx, instrument.Symbol); err != nil {
			return fmt.Errorf("rebuild %s: %w", instrument.Symbol, err)
		}
		depth, err := s.engine.Depth(ctx, instrument.Symbol, s.depthLevels)
		if err != nil {
			return fmt.Errorf("depth %s: %w", instrument.Symbol, err)
		}
		s.logger.Info(ctx, "book recovered",
			zap.String("symbol", instrument.Symbol),
			zap.Int("bid_levels", len(depth.Bids)),
			zap.Int("ask_levels", len(depth.Asks)))
	}
	return nil
}
