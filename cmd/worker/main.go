package main

import (
	"context"
	"encoding/json"
	"flag"
	"os/signal"
	"syscall"

	"github.com/joripage/exchange-sim/config"
	postgres_wrapper "github.com/joripage/exchange-sim/pkg/infra/postgres"
	kafkawrapper "github.com/joripage/exchange-sim/pkg/kafka_wrapper"
	"github.com/joripage/exchange-sim/pkg/logging"
	"github.com/joripage/exchange-sim/pkg/oms/repo"
	"github.com/joripage/exchange-sim/pkg/oms/worker"
	"go.uber.org/zap"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel))
	defer logger.Sync() // nolint
	zap.ReplaceGlobals(logger.Zap())

	configBytes, err := json.MarshalIndent(cfg, "", "   ")
	if err != nil {
		zap.S().Warnf("could not convert config to JSON: %v", err)
	} else {
		zap.S().Debugf("load config %s", string(configBytes))
	}

	if cfg.Kafka == nil {
		zap.S().Fatal("kafka config is required")
	}
	if cfg.Storage != config.StoragePostgres {
		zap.S().Fatalf("worker needs shared storage, got %q", cfg.Storage)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db := postgres_wrapper.InitPostgresWithBackoff(cfg.ExchangeDB)
	sqlRepo := repo.NewRepo(db)

	consumer, err := kafkawrapper.NewConsumerGroup(kafkawrapper.ConsumerConfig{
		Brokers:     cfg.Kafka.Brokers,
		GroupID:     cfg.Kafka.GroupID,
		Topic:       cfg.Kafka.TradeTopic,
		WorkerCount: cfg.Kafka.WorkerCount,
		MaxRetries:  cfg.Kafka.MaxRetries,
		BatchSize:   cfg.Kafka.BatchSize,
		DLQTopic:    cfg.Kafka.DLQTopic,
		AutoCommit:  true,
	})
	if err != nil {
		zap.S().Fatalf("init consumer fail: %v", err)
	}
	defer consumer.Close()

	w := worker.NewWorker(sqlRepo, logger)
	zap.S().Infof("consuming %s as %s", cfg.Kafka.TradeTopic, cfg.Kafka.GroupID)
	if err := w.StartConsumer(ctx, consumer); err != nil && ctx.Err() == nil {
		zap.S().Errorf("consumer stopped: %v", err)
	}
}
