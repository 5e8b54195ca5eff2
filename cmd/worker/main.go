package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ivankudzin/shipyard/internal/app/workerapp"
	"github.com/ivankudzin/shipyard/internal/config"
	"github.com/ivankudzin/shipyard/internal/infra/logger"
)

func main() {
	cfgPath := pflag.String("config", defaultConfigPath(), "path to the YAML config file")
	pflag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New("worker", cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := workerapp.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("create worker app", zap.Error(err))
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		log.Error("worker app failed", zap.Error(err))
	}
}

func defaultConfigPath() string {
	if v := os.Getenv("APP_CONFIG"); v != "" {
		return v
	}
	return "configs/config.yaml"
}
