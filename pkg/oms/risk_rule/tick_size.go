package riskrule

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joripage/exchange-sim/pkg/oms/model"
	"github.com/shopspring/decimal"
)

// DefaultSymbol holds the tiers used for symbols without their own.
const DefaultSymbol = "*"

type TickSizeTier struct {
	MaxPrice decimal.Decimal `json:"maxPrice"` // 0 = no limit
	Step     decimal.Decimal `json:"step"`
}

// TickSizeRule holds the tick tiers of every symbol, lowest price first.
type TickSizeRule struct {
	Config map[string][]TickSizeTier
}

func NewTickSizeRule(cfg map[string][]TickSizeTier) *TickSizeRule {
	return &TickSizeRule{Config: cfg}
}

// NewTickSizeRuleFromFile loads tiers from a JSON file.
func NewTickSizeRuleFromFile(path string) (*TickSizeRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg map[string][]TickSizeTier
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &TickSizeRule{Config: cfg}, nil
}

func (r *TickSizeRule) Check(req *model.OrderRequest, instrument *model.Instrument) error {
	if req.Type != model.OrderTypeLimit || req.Price == nil {
		return nil
	}

	tiers, ok := r.Config[instrument.Symbol]
	if !ok {
		tiers, ok = r.Config[DefaultSymbol]
	}
	if !ok { // no config -> no rule
		return nil
	}

	price := *req.Price
	for _, tier := range tiers {
		if tier.MaxPrice.IsZero() || price.LessThanOrEqual(tier.MaxPrice) {
			if !tier.Step.IsPositive() {
				return nil
			}
			if !price.Mod(tier.Step).IsZero() {
				return fmt.Errorf("price %s is not a multiple of tick size %s", price, tier.Step)
			}
			return nil
		}
	}

	return nil
}
