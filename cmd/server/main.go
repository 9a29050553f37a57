// Command server runs the prior-authorization service: the HTTP API, the
// per-queue task executor pools, and the periodic scheduler, all in one
// process.
package main

import (
	"context"
	"log"

	"github.com/medflow/priorauth/internal/config"
	"github.com/medflow/priorauth/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logg := logger.Setup(cfg.Server.LogLevel)
	logg.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"broker_kind", cfg.Broker.Kind)

	app, err := newApplication(context.Background(), cfg, logg)
	if err != nil {
		return err
	}
	defer app.stop()

	if err := app.start(); err != nil {
		return err
	}

	return app.serve()
}
