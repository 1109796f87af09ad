package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	postgres_wrapper "github.com/joripage/exchange-sim/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/exchange-sim/pkg/infra/redis"
	riskrule "github.com/joripage/exchange-sim/pkg/oms/risk_rule"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type AppConfig struct {
	ServiceName string                           `yaml:"service_name"`
	LogLevel    string                           `yaml:"log_level"`
	Storage     string                           `yaml:"storage"`
	ExchangeDB  *postgres_wrapper.PostgresConfig `yaml:"exchange_db"`
	Redis       *redis_wrapper.RedisConfig       `yaml:"redis"`
	Kafka       *KafkaConfig                     `yaml:"kafka"`
	Engine      EngineConfig                     `yaml:"engine"`
	Risk        RiskConfig                       `yaml:"risk"`
}

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	TradeTopic  string   `yaml:"trade_topic"`
	DepthTopic  string   `yaml:"depth_topic"`
	GroupID     string   `yaml:"group_id"`
	WorkerCount int      `yaml:"worker_count"`
	BatchSize   int      `yaml:"batch_size"`
	MaxRetries  int      `yaml:"max_retries"`
	DLQTopic    string   `yaml:"dlq_topic"`
}

type EngineConfig struct {
	DepthLevels      int  `yaml:"depth_levels"`
	EnableShardQueue bool `yaml:"enable_shard_queue"`
	NumShards        int  `yaml:"num_shards"`
	QueueSize        int  `yaml:"queue_size"`
}

// TickSizeTier is written with strings so prices keep their exact decimal form.
type TickSizeTier struct {
	MaxPrice string `yaml:"max_price"`
	Step     string `yaml:"step"`
}

type RiskConfig struct {
	PriceBandPercent string                    `yaml:"price_band_percent"`
	TickSizes        map[string][]TickSizeTier `yaml:"tick_sizes"`
	TickSizeFile     string                    `yaml:"tick_size_file"`
}

// Load load config from file and environment variables.
func Load(filePath string) (*AppConfig, error) {
	// a missing .env is normal outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		zap.S().Warnf("load .env fail: %v", err)
	}

	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	fields := []interface{}{
		"func",
		"config.readFromFile",
		"filePath",
		filePath,
	}

	sugar := zap.S().With(fields...)

	sugar.Debug("Load config...")
	zap.S().Debugf("CONFIG_FILE=%v", filePath)

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}

	err = yaml.Unmarshal(configBytes, cfg)
	if err != nil {
		sugar.Error("Failed to parse config file")
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		sugar.Errorf("Invalid config: %v", err)
		return nil, err
	}

	zap.S().Debugf("config: %+v", cfg)

	return cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "exchange-sim"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Storage == "" {
		c.Storage = StoragePostgres
	}
	if c.Engine.DepthLevels <= 0 {
		c.Engine.DepthLevels = 10
	}
	if c.Engine.NumShards <= 0 {
		c.Engine.NumShards = 16
	}
	if c.Engine.QueueSize <= 0 {
		c.Engine.QueueSize = 100_000
	}
	if c.Kafka != nil {
		if c.Kafka.TradeTopic == "" {
			c.Kafka.TradeTopic = "trades"
		}
		if c.Kafka.DepthTopic == "" {
			c.Kafka.DepthTopic = "orderbook"
		}
		if c.Kafka.GroupID == "" {
			c.Kafka.GroupID = c.ServiceName
		}
	}
}

func (c *AppConfig) validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.ExchangeDB == nil {
			return errors.New("exchange_db is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	if c.Kafka != nil && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is empty")
	}
	return nil
}

// Rules builds the configured risk rules. Tiers from tick_size_file are
// merged under those written inline.
func (r RiskConfig) Rules() ([]riskrule.RiskRule, error) {
	var rules []riskrule.RiskRule

	tiers := map[string][]riskrule.TickSizeTier{}
	if r.TickSizeFile != "" {
		fromFile, err := riskrule.NewTickSizeRuleFromFile(r.TickSizeFile)
		if err != nil {
			return nil, fmt.Errorf("tick_size_file: %w", err)
		}
		for symbol, t := range fromFile.Config {
			tiers[symbol] = t
		}
	}
	for symbol, list := range r.TickSizes {
		converted := make([]riskrule.TickSizeTier, 0, len(list))
		for _, t := range list {
			tier, err := t.parse()
			if err != nil {
				return nil, fmt.Errorf("tick_sizes[%s]: %w", symbol, err)
			}
			converted = append(converted, tier)
		}
		tiers[symbol] = converted
	}
	if len(tiers) > 0 {
		rules = append(rules, riskrule.NewTickSizeRule(tiers))
	}

	if r.PriceBandPercent != "" {
		band, err := decimal.NewFromString(r.PriceBandPercent)
		if err != nil {
			return nil, fmt.Errorf("price_band_percent: %w", err)
		}
		if band.IsPositive() {
			rules = append(rules, riskrule.NewLimitPriceRule(band))
		}
	}
	return rules, nil
}

func (t TickSizeTier) parse() (riskrule.TickSizeTier, error) {
	var out riskrule.TickSizeTier
	if t.MaxPrice != "" {
		max, err := decimal.NewFromString(t.MaxPrice)
		if err != nil {
			return out, fmt.Errorf("max_price: %w", err)
		}
		out.MaxPrice = max
	}
	step, err := decimal.NewFromString(t.Step)
	if err != nil {
		return out, fmt.Errorf("step: %w", err)
	}
	if !step.IsPositive() {
		return out, fmt.Errorf("step %s must be positive", step)
	}
	out.Step = step
	return out, nil
}
