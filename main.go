package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trends-backend/cache"
	"trends-backend/config"
	"trends-backend/database"
	"trends-backend/handlers"
	"trends-backend/logging"
	"trends-backend/providers/trends"
	"trends-backend/providers/youtube"
	"trends-backend/services"
	"trends-backend/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("trends-backend stopped")
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logging.Warn().Err(err).Msg("failed to close database")
		}
	}()

	relevanceRepo := database.NewRelevanceRepository(db)
	feedRepo := database.NewFeedRepository(db)
	usageRepo := database.NewUsageRepository(db)

	now := time.Now
	spent, err := usageRepo.SpendSince(context.Background(), services.MonthStart(now()))
	if err != nil {
		logging.Warn().Err(err).Msg("could not load month-to-date llm spend, starting from zero")
		spent = 0
	}
	budget := services.NewBudgetTracker(cfg.LLM.MonthlyBudget, cfg.LLM.CostPerMillionTokens, spent, now)

	yt := youtube.NewClient(youtube.Config{
		APIKey:            cfg.YouTube.APIKey,
		BaseURL:           cfg.YouTube.BaseURL,
		Timeout:           cfg.YouTube.Timeout,
		RequestsPerSecond: cfg.YouTube.RequestsPerSecond,
		Burst:             cfg.YouTube.Burst,
		BreakerFailures:   cfg.YouTube.BreakerFailures,
		BreakerTimeout:    cfg.YouTube.BreakerTimeout,
	}, nil)
	if cfg.YouTube.APIKey == "" {
		logging.Warn().Msg("YOUTUBE_API_KEY not set, searches will fail and results will be empty")
	}

	llmClient, err := services.NewLLMClient(cfg.LLM)
	if err != nil {
		return err
	}

	// expansion sources are tried in order: llm, then google trends
	var termSources []services.TermSource
	// a nil *openai.Client must not end up inside the interface
	var chat services.ChatCompleter
	if llmClient != nil {
		chat = llmClient
		if cfg.LLM.ExpansionEnabled {
			termSources = append(termSources, services.NewLLMTermSource(chat, cfg.LLM.ExpansionModel, cfg.LLM.ExpansionTimeout))
		}
		logging.Info().Str("provider", cfg.LLM.Provider).Str("model", cfg.LLM.ScoringModel).Msg("llm relevance scoring enabled")
	} else {
		logging.Warn().Msg("no llm api key configured, relevance scoring disabled")
	}
	if cfg.Trends.Enabled {
		termSources = append(termSources, trends.NewRSSSource(cfg.Trends.RSSURL, cfg.Trends.Timeout, nil))
	}

	expander := services.NewExpander(termSources, cfg.Expansion.MaxVariants, cfg.Trends.Timeout, cfg.Cache.ExpansionTTL)

	collector := services.NewCollector(yt, yt, feedRepo, services.CollectorConfig{
		TargetPoolSize:     cfg.Pipeline.TargetPoolSize,
		SearchParallelism:  cfg.Pipeline.SearchParallelism,
		MaxResultsPerQuery: cfg.YouTube.MaxResultsPerQuery,
		TrendingFeedSize:   cfg.Pipeline.TrendingFeedSize,
		FeedFreshness:      cfg.Pipeline.FeedFreshness,
		FeedTTL:            cfg.Cache.FeedTTL,
		DetailsEnabled:     cfg.Pipeline.DetailsEnabled,
	}, now)

	scorer := services.NewScorer(chat, relevanceRepo, usageRepo, budget, services.ScorerConfig{
		Model:                cfg.LLM.ScoringModel,
		BatchSize:            cfg.LLM.BatchSize,
		Parallelism:          cfg.LLM.Parallelism,
		OutputTokensPerVideo: cfg.LLM.OutputTokensPerVideo,
		MaxRetries:           cfg.LLM.MaxRetries,
		ScoreValidity:        cfg.LLM.ScoreValidity,
		BatchTimeout:         cfg.LLM.BatchTimeout,
		Temperature:          cfg.LLM.Temperature,
	}, now)

	store, err := openCacheStore(cfg.Cache)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Warn().Err(err).Msg("failed to close cache store")
		}
	}()
	results := cache.NewFingerprintCache(store, cfg.Cache.ResultTTL)

	trendingService := services.NewTrendingService(cfg, expander, collector, scorer, budget, results)

	gin.SetMode(cfg.Server.Mode)
	router := handlers.NewRouter(handlers.NewTrendingHandler(trendingService), func(r *gin.Engine) {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	supCfg := supervisor.DefaultConfig()
	supCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout + 5*time.Second
	sup := supervisor.New("trends-backend", supCfg)
	sup.Add(supervisor.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	if cfg.YouTube.APIKey != "" {
		sup.Add(services.NewFeedCrawler(collector, cfg.Countries.Codes(), cfg.Pipeline.FeedCrawlInterval))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().
		Str("port", cfg.Server.Port).
		Strs("countries", cfg.Countries.Codes()).
		Str("cache_backend", cfg.Cache.Backend).
		Float64("monthly_budget_eur", cfg.LLM.MonthlyBudget).
		Float64("spent_eur", spent).
		Msg("server starting")

	err = sup.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("server stopped")
	return nil
}

func openCacheStore(cfg config.CacheConfig) (cache.Store, error) {
	if cfg.Backend == "badger" {
		store, err := cache.OpenBadgerStore(cfg.BadgerPath)
		if err != nil {
			return nil, fmt.Errorf("open badger cache: %w", err)
		}
		return store, nil
	}
	return cache.NewMemoryStore(cfg.ResultTTL), nil
}
