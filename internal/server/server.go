// Package server wires the coordinator, transports, and HTTP API together.
package server

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harees/navguard/internal/agent"
	"github.com/harees/navguard/internal/allowlist"
	"github.com/harees/navguard/internal/api/middleware"
	"github.com/harees/navguard/internal/classifier"
	"github.com/harees/navguard/internal/config"
	"github.com/harees/navguard/internal/coordinator"
	"github.com/harees/navguard/internal/delivery"
	"github.com/harees/navguard/internal/history"
	"github.com/harees/navguard/internal/inspector"
	"github.com/harees/navguard/internal/logging"
	"github.com/harees/navguard/internal/monitoring"
	"github.com/harees/navguard/internal/store"
	"github.com/harees/navguard/internal/ws"
)

// Server hosts the coordinator and its HTTP/WebSocket surface.
type Server struct {
	router *gin.Engine
	logger *logging.Logger
	cfg    *config.Config
}

// New builds a fully wired server from configuration.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	var st store.Store
	if cfg.Store.Dir != "" {
		fileStore, err := store.NewFile(cfg.Store.Dir)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		st = fileStore
		logger.Info("using file store", zap.String("dir", cfg.Store.Dir))
	} else {
		st = store.NewMemory()
		logger.Info("using in-memory store")
	}

	lexicon, err := agent.LoadLexicon(cfg.Agent.LexiconPath)
	if err != nil {
		return nil, fmt.Errorf("load lexicon: %w", err)
	}
	logger.Info("phishing-cue lexicon loaded", zap.Int("cues", len(lexicon)))

	metrics := monitoring.New()
	allow := allowlist.New(st)
	hist := history.New(st)
	cls := classifier.New(classifier.Config{
		BaseURL:           cfg.Classifier.BaseURL,
		Timeout:           cfg.Classifier.Timeout,
		RequestsPerSecond: cfg.Classifier.RequestsPerSecond,
	}, logger)

	hub := ws.NewHub(logger, metrics)
	deliverer := delivery.New(hub, logger)
	interceptor := coordinator.New(deliverer, cls, hub, allow, hist, logger, metrics)
	hub.Bind(interceptor, deliverer)

	insp := inspector.New(cls, hist, logger)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	h := newHandlers(insp, hist, logger)
	router.GET("/health", h.Health)
	router.POST("/inspect", h.Inspect)
	router.GET("/history", h.History)
	router.GET("/verdict/last", h.LastVerdict)
	router.GET("/agent", hub.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return &Server{router: router, logger: logger, cfg: cfg}, nil
}

// Run serves until the listener fails.
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.logger.Info("navguard coordinator listening", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
