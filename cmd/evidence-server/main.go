// Evidence API server.
//
// Serves a directory of extracted evidence to remote seekers:
// glob search over an in-memory index, streamed downloads with timestamp
// headers, index refresh and a health endpoint. Optional bearer-token
// authentication via API_KEY.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/whobutwb/ALEAPP/internal/config"
	"github.com/whobutwb/ALEAPP/internal/logging"
	"github.com/whobutwb/ALEAPP/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("evidence server starting",
		zap.String("listen", cfg.ListenAddr),
		zap.String("evidence_root", cfg.EvidenceRoot),
		zap.Bool("auth_enabled", cfg.APIKey != ""))

	srv, err := server.New(cfg.EvidenceRoot, cfg.APIKey)
	if err != nil {
		logging.Fatal("server init failed", zap.Error(err))
	}
	srv.Refresh()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(),
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logging.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logging.Error("shutdown error", zap.Error(err))
	}
}
