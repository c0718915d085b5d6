// Package main provides the encounter bot binary: it connects to
// PostgreSQL, wires the table engine, and serves Discord slash
// commands until interrupted.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gm-tools/encounterbot/internal/bot"
	"github.com/gm-tools/encounterbot/internal/config"
	"github.com/gm-tools/encounterbot/internal/observability"
	"github.com/gm-tools/encounterbot/internal/storage/postgres"
	"github.com/gm-tools/encounterbot/internal/tables/exporter"
	"github.com/gm-tools/encounterbot/internal/tables/importer"
	"github.com/gm-tools/encounterbot/internal/tables/roller"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	repo := postgres.NewTableRepository(pool.DB())

	imp := importer.New(repo, logger)
	exp := exporter.New(repo, logger)
	roll := roller.New(repo, nil)

	b, err := bot.New(cfg.Discord, repo, imp, exp, roll, logger)
	if err != nil {
		logger.Fatal("creating bot", zap.Error(err))
	}

	if err := b.Start(ctx); err != nil {
		logger.Fatal("starting bot", zap.Error(err))
	}
	logger.Info("encounter bot ready", zap.Duration("startup", time.Since(start)))

	<-ctx.Done()

	logger.Info("shutting down")
	if err := b.Close(); err != nil {
		logger.Error("closing discord session", zap.Error(err))
	}
}
