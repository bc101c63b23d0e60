package main

import (
	"log"

	"go.uber.org/zap"

	"sigil/internal/config"
	"sigil/internal/infra/db"
	httpinfra "sigil/internal/infra/http"
)

func main() {
	cfg := config.FromEnv()

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	store, err := db.NewStore(cfg)
	if err != nil {
		logger.Fatal("failed to init store", zap.Error(err))
	}

	srv := httpinfra.NewServer(cfg, store, logger)
	logger.Info("starting sigild", zap.String("addr", cfg.HTTPAddr))
	if err := srv.Run(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	return cfg.Build()
}
