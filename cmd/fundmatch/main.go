package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/veyralabs/fundmatch-go/internal/config"
	"github.com/veyralabs/fundmatch-go/internal/domain"
	"github.com/veyralabs/fundmatch-go/internal/handler"
	"github.com/veyralabs/fundmatch-go/internal/index"
	"github.com/veyralabs/fundmatch-go/internal/infra/cache"
	"github.com/veyralabs/fundmatch-go/internal/infra/client"
	"github.com/veyralabs/fundmatch-go/internal/infra/observability"
	"github.com/veyralabs/fundmatch-go/internal/infra/resilience"
	"github.com/veyralabs/fundmatch-go/internal/port"
	"github.com/veyralabs/fundmatch-go/internal/recommend"
	"github.com/veyralabs/fundmatch-go/internal/scoring"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("recommend_timeout", cfg.RecommendTimeout),
		zap.Duration("search_timeout", cfg.SearchTimeout),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "fundmatch-engine")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Caches ---
	var (
		recoCache   port.Cache[domain.Recommendations]
		searchCache port.Cache[domain.SearchResult]
	)
	if cfg.CacheBackend == "redis" {
		logger.Info("using redis cache backend", zap.String("addr", cfg.RedisAddr))
		redisReco := cache.NewRedis[domain.Recommendations](cfg.RedisAddr, cfg.RedisDB, logger)
		redisSearch := cache.NewRedis[domain.SearchResult](cfg.RedisAddr, cfg.RedisDB, logger)
		defer redisReco.Close()
		defer redisSearch.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisReco.Ping(pingCtx); err != nil {
			logger.Warn("redis unreachable at startup, cache degrades to misses", zap.Error(err))
		}
		cancel()

		recoCache = redisReco
		searchCache = redisSearch
	} else {
		logger.Info("using in-memory cache backend")
		memReco := cache.NewInMemory[domain.Recommendations](cfg.CacheTTL)
		memSearch := cache.NewInMemory[domain.SearchResult](cfg.CacheTTL)
		defer memReco.Close()
		defer memSearch.Close()

		recoCache = memReco
		searchCache = memSearch
	}

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	profileStore := client.NewProfileStoreClient(httpClient, cfg.ProfileStoreURL,
		resilience.NewCircuitBreaker("profile-api"), resilienceCfg, metrics)
	matchStore := client.NewMatchStoreClient(httpClient, cfg.MatchStoreURL,
		resilience.NewCircuitBreaker("match-api"), resilienceCfg, metrics)
	quota := client.NewQuotaClient(httpClient, cfg.QuotaAPIURL,
		resilience.NewCircuitBreaker("quota-api"), resilienceCfg, metrics)

	// --- Services ---
	policy := scoring.DefaultPolicy()
	policy.MaxPreferredDistanceMeters = cfg.MaxPreferredDistanceKm * 1000
	policy.SuspiciousMatchesPerDay = cfg.SuspiciousMatchesPerDay
	scorer := scoring.New(policy)

	recoCfg := recommend.DefaultConfig()
	recoCfg.CompatWeight = cfg.CompatWeight
	recoCfg.HistoryWeight = cfg.HistoryWeight
	recoCfg.ActivityWeight = cfg.ActivityWeight
	recoCfg.ActiveUserBaseline = cfg.ActiveUserBaseline
	recoCfg.ReasonThreshold = cfg.ReasonThreshold
	recoCfg.SuperLikeBoost = cfg.SuperLikeBoost
	recoCfg.DefaultLimit = cfg.RecommendLimit
	recoCfg.CacheTTL = cfg.RecommendTTL
	recoCfg.MaxConcurrency = cfg.MaxConcurrency

	reco := recommend.NewService(profileStore, matchStore, quota, scorer, recoCache, metrics, logger, recoCfg)
	idx := index.NewService(profileStore, searchCache, metrics, logger, cfg.CacheTTL, cfg.MaxConcurrency)

	// Warm the index so the first searches don't fall back to store scans.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := idx.ReindexAll(ctx); err != nil {
			logger.Warn("initial index build failed, searches degrade until reindex", zap.Error(err))
		}
	}()

	// --- Router ---
	router := handler.NewRouter(reco, idx, metrics, logger, handler.Config{
		RecommendTimeout: cfg.RecommendTimeout,
		SearchTimeout:    cfg.SearchTimeout,
		AdminJWTSecret:   cfg.AdminJWTSecret,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
