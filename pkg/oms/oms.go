package oms

import (
	"time"

	"github.com/joripage/exchange-sim/pkg/engine"
	"github.com/joripage/exchange-sim/pkg/logging"
	"github.com/joripage/exchange-sim/pkg/oms/event"
	"github.com/joripage/exchange-sim/pkg/oms/repo"
	riskrule "github.com/joripage/exchange-sim/pkg/oms/risk_rule"
)

const defaultDepthLevels = 10

// OMS is the only path by which orders are created and matched. Every
// submission reserves, persists, matches and settles as one unit under the
// instrument's lock.
type OMS struct {
	repo      repo.IRepo
	engine    *engine.Engine
	publisher event.Publisher
	rules     []riskrule.RiskRule
	logger    *logging.Logger

	depthLevels int
	now         func() time.Time
}

type Option func(*OMS)

func WithPublisher(p event.Publisher) Option {
	return func(s *OMS) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithRiskRules(rules ...riskrule.RiskRule) Option {
	return func(s *OMS) {
		s.rules = append(s.rules, rules...)
	}
}

// WithDepthLevels sets how many levels per side a published snapshot holds.
func WithDepthLevels(n int) Option {
	return func(s *OMS) {
		if n > 0 {
			s.depthLevels = n
		}
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(s *OMS) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *OMS) {
		if now != nil {
			s.now = now
		}
	}
}

func NewOMS(r repo.IRepo, opts ...Option) *OMS {
	s := &OMS{
		repo:        r,
		publisher:   event.NopPublisher{},
		logger:      logging.NewLogger(logging.INFO),
		depthLevels: defaultDepthLevels,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = engine.NewEngine(engine.NewRegistry(), &bookLoader{repo: r})

	return s
}

func (s *OMS) Engine() *engine.Engine {
	return s.engine
}

// arrival truncates to the precision storage keeps so replayed books order
// exactly like live ones.
func (s *OMS) arrival() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
