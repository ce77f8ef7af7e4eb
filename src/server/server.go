// Package server exposes the chat relay over HTTP.
package server

import (
	"context"
	_ "embed"
	"net/http"
	"time"

	"go.uber.org/zap"

	"kaiwa/src/config"
	"kaiwa/src/database"
	"kaiwa/src/ollama"
)

//go:embed static/index.html
var indexPage []byte

type Server struct {
	settings *config.Settings
	client   *ollama.Client
	store    *database.UsageStore // nil when the usage store is disabled
	logger   *zap.Logger

	httpServer *http.Server
}

// New wires the relay server. store may be nil; logger must not be.
func New(settings *config.Settings, store *database.UsageStore, logger *zap.Logger) *Server {
	s := &Server{
		settings: settings,
		client:   ollama.NewClient(&settings.Ollama, logger),
		store:    store,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    settings.Server.Listen,
		Handler: mux,
		// No WriteTimeout: responses stream for as long as the model keeps
		// generating.
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler exposes the route tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving requests until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("relay listening",
		zap.String("addr", s.settings.Server.Listen),
		zap.String("upstream", s.settings.Ollama.URL),
		zap.String("model", s.settings.Ollama.Model))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests until the context expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
