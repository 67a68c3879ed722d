package main

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/zap"

	"uno/internal/config"
	"uno/internal/httpapi"
	"uno/internal/session"
	"uno/internal/store"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	var st session.Store = session.NopStore{}
	if cfg.DatabaseURL != "" {
		s, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("open store", zap.Error(err))
		}
		st = s
	} else {
		logger.Info("DATABASE_URL not set, running without persistence")
	}

	ctx := context.Background()
	d := session.NewDirectory(ctx, session.Config{
		Timing: session.Timing{
			TurnTimeout:   cfg.TurnTimeout,
			AIThinkDelay:  cfg.AIThinkDelay,
			FinishedGrace: cfg.FinishedGrace,
		},
		Inactivity:    cfg.InactivityTimeout,
		SweepInterval: cfg.SweepInterval,
	}, st, logger)

	if err := d.Restore(ctx); err != nil {
		logger.Warn("restore sessions", zap.Error(err))
	}

	handler := httpapi.SetupRoutes(d, logger)

	logger.Info("listening", zap.String("addr", ":"+cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}
