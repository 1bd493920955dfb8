// Package server exposes the program engines over a JSON HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"DriftShield/internal/cache"
	"DriftShield/internal/config"
	"DriftShield/internal/host"
	"DriftShield/internal/insurance"
	"DriftShield/internal/market"
	"DriftShield/internal/observability"
	"DriftShield/internal/query"
	"DriftShield/internal/registry"
	"DriftShield/internal/vault"
)

// Config holds the HTTP server configuration.
type Config struct {
	Addr string
}

// Deps aggregates everything the handlers need. Query and Prices are
// optional: without a query service the list endpoints answer 503, and
// without a price cache every price read goes straight to the engine.
type Deps struct {
	Markets  *market.Engine
	Models   *registry.Engine
	Policies *insurance.Engine
	Ledger   *vault.Ledger
	Query    *query.QueryService
	Prices   *cache.PriceCache
	Clock    host.Clock
	Health   *observability.HealthChecker
	Defaults config.MarketConfig
}

// Server is the HTTP API for the market, registry, and insurance programs.
type Server struct {
	markets  *market.Engine
	models   *registry.Engine
	policies *insurance.Engine
	ledger   *vault.Ledger
	query    *query.QueryService
	prices   *cache.PriceCache
	clock    host.Clock
	health   *observability.HealthChecker
	defaults config.MarketConfig
	log      zerolog.Logger

	httpServer *http.Server
}

// New builds a Server with all routes registered.
func New(cfg Config, deps Deps, log zerolog.Logger) *Server {
	s := &Server{
		markets:  deps.Markets,
		models:   deps.Models,
		policies: deps.Policies,
		ledger:   deps.Ledger,
		query:    deps.Query,
		prices:   deps.Prices,
		clock:    deps.Clock,
		health:   deps.Health,
		defaults: deps.Defaults,
		log:      log,
	}
	if s.clock == nil {
		s.clock = host.WallClock{}
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with the logging middleware applied.
// Exposed separately so tests can drive the mux through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if s.health != nil {
		mux.HandleFunc("GET /healthz", s.health.LivenessHandler)
		mux.HandleFunc("GET /readyz", s.health.ReadinessHandler)
	}

	mux.HandleFunc("POST /v1/markets", s.handleCreateMarket)
	mux.HandleFunc("GET /v1/markets", s.handleListMarkets)
	mux.HandleFunc("GET /v1/markets/{key}", s.handleGetMarket)
	mux.HandleFunc("POST /v1/markets/{key}/bets", s.handlePlaceBet)
	mux.HandleFunc("POST /v1/markets/{key}/resolve", s.handleResolveMarket)
	mux.HandleFunc("POST /v1/markets/{key}/claim", s.handleClaimWinnings)
	mux.HandleFunc("GET /v1/markets/{key}/prices", s.handleGetPrices)
	mux.HandleFunc("GET /v1/markets/{key}/positions/{user}", s.handleGetPosition)

	mux.HandleFunc("POST /v1/models", s.handleRegisterModel)
	mux.HandleFunc("GET /v1/models", s.handleListModels)
	mux.HandleFunc("GET /v1/models/{key}", s.handleGetModel)
	mux.HandleFunc("POST /v1/models/{key}/receipts", s.handleSubmitReceipt)
	mux.HandleFunc("GET /v1/models/{key}/receipts", s.handleListReceipts)

	mux.HandleFunc("POST /v1/policies", s.handlePurchasePolicy)
	mux.HandleFunc("GET /v1/policies/{key}", s.handleGetPolicy)
	mux.HandleFunc("POST /v1/policies/{key}/claim", s.handleFileClaim)
	mux.HandleFunc("POST /v1/policies/{key}/cancel", s.handleCancelPolicy)

	mux.HandleFunc("POST /v1/vault/deposits", s.handleDeposit)
	mux.HandleFunc("GET /v1/vault/accounts/{user}/balance", s.handleBalance)
	mux.HandleFunc("GET /v1/vault/journal", s.handleJournal)

	return requestLogging(s.log)(mux)
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("http server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
