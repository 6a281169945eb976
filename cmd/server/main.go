// Command server runs the NavGuard coordinator: it gates page navigations
// behind a remote risk classifier, drives per-page blocking agents over
// WebSocket, and serves the inspector and history HTTP API.
package main

import (
	"flag"
	"os"

	"go.uber.org/zap"

	"github.com/harees/navguard/internal/config"
	"github.com/harees/navguard/internal/logging"
	"github.com/harees/navguard/internal/server"
)

func main() {
	port := flag.String("port", "", "HTTP port (overrides PORT)")
	classifierURL := flag.String("classifier", "", "classifier base URL (overrides CLASSIFIER_URL)")
	storeDir := flag.String("store", "", "persistence directory (overrides STORE_DIR; empty = in-memory)")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *classifierURL != "" {
		cfg.Classifier.BaseURL = *classifierURL
	}
	if *storeDir != "" {
		cfg.Store.Dir = *storeDir
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		logger = logging.NewDefault()
	}
	defer logger.Sync()

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to build server", zap.Error(err))
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
