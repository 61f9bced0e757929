package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ebuka-odih/nyem-sub003/internal/app/relayapp"
	"github.com/ebuka-odih/nyem-sub003/internal/config"
	"github.com/ebuka-odih/nyem-sub003/internal/infra/logger"
)

func main() {
	var cfgPath string
	pflag.StringVar(&cfgPath, "config", defaultConfigPath(), "path to the YAML config file")
	pflag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Level, "relay")
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := relayapp.New(cfg, log)
	if err != nil {
		log.Fatal("create relay app", zap.Error(err))
	}

	runErr := app.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown relay app", zap.Error(err))
	}
	if runErr != nil {
		log.Fatal("relay app failed", zap.Error(runErr))
	}
}

func defaultConfigPath() string {
	if v := os.Getenv("APP_CONFIG"); v != "" {
		return v
	}
	return "configs/config.yaml"
}
