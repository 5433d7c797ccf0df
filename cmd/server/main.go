package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/cryptodesk/leverage-engine/internal/calculator"
	"github.com/cryptodesk/leverage-engine/internal/config"
	"github.com/cryptodesk/leverage-engine/internal/metrics"
	"github.com/cryptodesk/leverage-engine/internal/model"
	"github.com/cryptodesk/leverage-engine/internal/pricing"
	"github.com/cryptodesk/leverage-engine/internal/workspace"
	"github.com/cryptodesk/leverage-engine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(log)

	var cleanup []func()

	// --- Price sources ---
	limiter := pricing.NewLimiter("market-data", cfg.Pricing.RequestsPerMinute, log)
	static := pricing.NewStaticSource()
	paprika := pricing.NewPaprikaClient(cfg.Pricing.PaprikaBaseURL, cfg.Pricing.FetchTimeout, limiter, log)
	gecko := pricing.NewGeckoClient(cfg.Pricing.GeckoBaseURL, cfg.Pricing.FetchTimeout, limiter, log)
	chain := pricing.NewChain(log, paprika, gecko, static)

	// Wrap the chain with a read-through cache, Redis-backed if configured.
	var priceSrc pricing.Source
	if cfg.Redis.Enabled() {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		priceSrc = pricing.NewRedisCache(chain, rdb, cfg.Pricing.SpotTTL, cfg.Pricing.SlowTTL, log)
		log.Info().Msg("Redis price cache enabled")
	} else {
		priceSrc = pricing.NewMemoryCache(chain, cfg.Pricing.SpotTTL, cfg.Pricing.SlowTTL, log)
		log.Info().Msg("in-memory price cache enabled")
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Workspace ---
	ws := workspace.New(model.Settings{
		MaintenanceMarginPct: cfg.Engine.MaintenanceMarginPct,
		FundingRate:          cfg.Engine.FundingRate,
		UseLivePrices:        cfg.Engine.UseLivePrices,
	})

	// --- WebSocket hub ---
	hub := calculator.NewHub(log)
	go hub.Run()

	// --- Calculator service ---
	svc := calculator.NewService(ws, priceSrc, static, cfg.Pricing.TopCoinLimit, hub, log)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"leverage-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", svc.RegisterRoutes)

	// --- Server ---
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("leverage-engine listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	log.Info().Msg("shutting down leverage-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	fmt.Println("leverage-engine stopped")
}
