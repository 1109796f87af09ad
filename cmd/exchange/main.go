package main

import (
	"context"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/joripage/exchange-sim/config"
	postgres_wrapper "github.com/joripage/exchange-sim/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/exchange-sim/pkg/infra/redis"
	kafkawrapper "github.com/joripage/exchange-sim/pkg/kafka_wrapper"
	"github.com/joripage/exchange-sim/pkg/logging"
	"github.com/joripage/exchange-sim/pkg/oms"
	"github.com/joripage/exchange-sim/pkg/oms/event"
	"github.com/joripage/exchange-sim/pkg/oms/repo"
	"go.uber.org/zap"
)

func main() {
	var configFile, pprofAddr string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.StringVar(&pprofAddr, "pprof", "", "Serve pprof on this address, e.g. localhost:6060")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel))
	defer logger.Sync() // nolint
	zap.ReplaceGlobals(logger.Zap())

	if pprofAddr != "" {
		go func() {
			zap.S().Infof("pprof listening on %s", pprofAddr)
			if err := http.ListenAndServe(pprofAddr, nil); err != nil {
				zap.S().Warnf("pprof stopped: %v", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var store repo.IRepo
	switch cfg.Storage {
	case config.StorageMemory:
		store = repo.NewInMemoryRepo()
	default:
		db := postgres_wrapper.InitPostgresWithBackoff(cfg.ExchangeDB)
		store = repo.NewRepo(db)
	}

	var publishers event.MultiPublisher
	if cfg.Redis != nil {
		client, err := redis_wrapper.InitRedisWithBackoff(cfg.Redis)
		if err != nil {
			zap.S().Fatalf("init redis fail: %v", err)
		}
		defer client.Close()
		publishers = append(publishers, event.NewRedisPublisher(client))
	}
	if cfg.Kafka != nil {
		producer := kafkawrapper.NewProducer(kafkawrapper.ProducerConfig{
			Brokers: cfg.Kafka.Brokers,
			Async:   true,
		})
		defer producer.Close(context.Background()) // nolint
		publishers = append(publishers, event.NewKafkaPublisher(producer, cfg.Kafka.TradeTopic, cfg.Kafka.DepthTopic))
	}

	// closed before the producers above so queued events still go out
	dispatcher := event.NewDispatcher(publishers, event.DispatcherConfig{
		EnableShardQueue: cfg.Engine.EnableShardQueue,
		NumShards:        cfg.Engine.NumShards,
		QueueSize:        cfg.Engine.QueueSize,
	})
	defer dispatcher.Close()

	rules, err := cfg.Risk.Rules()
	if err != nil {
		zap.S().Fatalf("risk config: %v", err)
	}

	svc := oms.NewOMS(store,
		oms.WithPublisher(dispatcher),
		oms.WithRiskRules(rules...),
		oms.WithDepthLevels(cfg.Engine.DepthLevels),
		oms.WithLogger(logger),
	)
	if err := svc.Recover(ctx); err != nil {
		zap.S().Fatalf("recover books fail: %v", err)
	}
	zap.S().Infof("%s ready, reading commands from stdin", cfg.ServiceName)

	h := &handler{svc: svc}
	if err := h.serve(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		zap.S().Errorf("serve: %v", err)
	}
	zap.S().Info("Shutting down...")
}
