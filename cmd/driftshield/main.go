// Command driftshield runs the model registry, insurance, and prediction
// market programs behind a JSON HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"DriftShield/internal/cache"
	"DriftShield/internal/config"
	"DriftShield/internal/emit"
	"DriftShield/internal/host"
	"DriftShield/internal/insurance"
	"DriftShield/internal/market"
	"DriftShield/internal/observability"
	"DriftShield/internal/persistence"
	"DriftShield/internal/query"
	"DriftShield/internal/registry"
	"DriftShield/internal/server"
	"DriftShield/internal/vault"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := observability.NewLoggerWithLevel("driftshield", level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("driftshield exited")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- Postgres ---
	db, err := persistence.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)

	if cfg.Postgres.RunMigrations {
		migrator := persistence.NewMigrator(db, cfg.Postgres.MigrationsDir, log)
		if err := migrator.Up(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info().Msg("migrations applied")
	}

	// --- Observability ---
	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker()

	// --- Event publisher ---
	var emitter emit.Emitter = emit.Nop{}
	if cfg.NATS.URL != "" {
		nc, js, err := emit.ConnectNATS(cfg.NATS.URL, log)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Close()
		if err := emit.EnsureEventStream(ctx, js); err != nil {
			return fmt.Errorf("ensure event stream: %w", err)
		}
		pub := emit.NewPublisher(js, cfg.NATS.BufferSize, log, metrics)
		go func() {
			if err := pub.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("event publisher stopped")
			}
		}()
		emitter = pub
		log.Info().Str("url", cfg.NATS.URL).Msg("nats connected")
	} else {
		log.Warn().Msg("nats url empty, event publishing disabled")
	}

	// --- Price cache ---
	var priceCache *cache.PriceCache
	if cfg.Redis.Addr != "" {
		client, err := cache.New(ctx, cache.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		priceCache = cache.NewPriceCache(client, cfg.Redis.PriceTTL)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connected")
	} else {
		log.Warn().Msg("redis addr empty, price cache disabled")
	}

	// --- Ledger and engines ---
	clock := host.WallClock{}
	st := persistence.NewPostgresStore(db)
	ledger := vault.NewLedger(clock, persistence.NewJournalWriter(db), log)

	models := registry.NewEngine(st, clock, emitter, metrics, log)
	markets := market.NewEngine(st, ledger, clock, emitter, metrics, log)
	markets.SetRegistry(models)
	policies := insurance.NewEngine(st, ledger, clock, emitter, models, metrics, log)

	// --- HTTP API ---
	srv := server.New(server.Config{Addr: cfg.Server.Addr}, server.Deps{
		Markets:  markets,
		Models:   models,
		Policies: policies,
		Ledger:   ledger,
		Query:    query.NewQueryService(db),
		Prices:   priceCache,
		Clock:    clock,
		Health:   health,
		Defaults: cfg.Market,
	}, log)

	errChan := make(chan error, 2)
	go func() {
		errChan <- srv.Start()
	}()

	// --- Metrics listener ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metricsMux}
	go func() {
		log.Info().Str("addr", cfg.Server.MetricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	health.SetReady(true)
	log.Info().
		Str("addr", cfg.Server.Addr).
		Str("metrics_addr", cfg.Server.MetricsAddr).
		Msg("driftshield ready")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := metricsServer.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("metrics shutdown")
	}
	return nil
}
