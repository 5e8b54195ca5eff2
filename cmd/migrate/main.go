package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ivankudzin/shipyard/internal/config"
	"github.com/ivankudzin/shipyard/internal/infra/logger"
	pgrepo "github.com/ivankudzin/shipyard/internal/repo/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	cfgPath := flags.String("config", defaultConfigPath(), "path to the YAML config file")
	down := flags.Bool("down", false, "roll back every applied migration")
	steps := flags.Int("steps", 0, "apply n migrations, negative values roll back")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if *down && *steps != 0 {
		return fmt.Errorf("--down and --steps are mutually exclusive")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}

	log, err := logger.New("migrate", cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	pool, err := pgrepo.NewPool(context.Background(), pgrepo.PoolConfig{
		DSN:            cfg.Postgres.DSN,
		ConnectTimeout: cfg.Postgres.ConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	changed, err := pgrepo.Migrate(pool, pgrepo.MigrateOptions{Down: *down, Steps: *steps})
	if err != nil {
		return err
	}
	log.Info("migrations finished",
		zap.Bool("changed", changed),
		zap.Bool("down", *down),
		zap.Int("steps", *steps),
	)
	return nil
}

func defaultConfigPath() string {
	if v := os.Getenv("APP_CONFIG"); v != "" {
		return v
	}
	return "configs/config.yaml"
}
