package main

import (
	"flag"

	"github.com/joripage/exchange-sim/config"
	"github.com/joripage/exchange-sim/pkg/infra"
	"go.uber.org/zap"
)

func main() {
	var configFile, source string
	var down bool
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.StringVar(&source, "source", "file://migration/sql", "Migration source URL")
	flag.BoolVar(&down, "down", false, "Roll back every migration")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync() // nolint
	zap.ReplaceGlobals(logger)

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}
	if cfg.ExchangeDB == nil {
		zap.S().Fatal("exchange_db config is required")
	}

	mgTool := infra.GetMigrateTool()
	if down {
		err = mgTool.Down(source, cfg.ExchangeDB.MigrationConnURL)
	} else {
		err = mgTool.Migrate(source, cfg.ExchangeDB.MigrationConnURL)
	}
	if err != nil {
		zap.S().Fatalf("migrate fail: %v", err)
	}
}
