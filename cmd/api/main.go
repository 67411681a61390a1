package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/medleads/clinic-insight/internal/adapters/cache"
	"github.com/medleads/clinic-insight/internal/adapters/export"
	"github.com/medleads/clinic-insight/internal/adapters/ratelimit"
	"github.com/medleads/clinic-insight/internal/api/handlers"
	"github.com/medleads/clinic-insight/internal/api/middleware"
	"github.com/medleads/clinic-insight/internal/api/routes"
	"github.com/medleads/clinic-insight/internal/application/services"
	"github.com/medleads/clinic-insight/internal/domain/providers"
	"github.com/medleads/clinic-insight/internal/infrastructure/clients/anthropic"
	"github.com/medleads/clinic-insight/internal/infrastructure/clients/estat"
	"github.com/medleads/clinic-insight/internal/infrastructure/clients/gemini"
	"github.com/medleads/clinic-insight/internal/infrastructure/clients/googlemaps"
	"github.com/medleads/clinic-insight/internal/infrastructure/clients/openai"
	"github.com/medleads/clinic-insight/internal/infrastructure/clients/serpapi"
	"github.com/medleads/clinic-insight/internal/infrastructure/observability"
	"github.com/medleads/clinic-insight/internal/ragstore"
	"github.com/medleads/clinic-insight/pkg/config"
)

func main() {
	// .env is optional; deployed environments inject real variables.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("opentelemetry setup failed, continuing without tracing")
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("opentelemetry shutdown failed")
				}
			}()
			log.Info().Msg("opentelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Settings migration runs before the RAG store opens so both singletons
	// are ready before the first request is served.
	settingsService, err := services.NewSettingsService(cfg.Storage.SettingsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize settings")
	}

	ragStore, err := ragstore.Open(cfg.Storage.RAGDBPath, cfg.Storage.RAGDataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open rag store")
	}
	defer ragStore.Close()
	if err := ragStore.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure rag schema")
	}

	// Redis fronts the HTTP response cache when configured; the in-process
	// cache covers everything else either way.
	memoryCache := cache.NewMemoryAdapter()
	memoryCache.StartSweeper()
	defer memoryCache.Stop()

	var responseCache providers.CacheProvider = memoryCache
	if cfg.Redis.Enabled() {
		redisCache, err := cache.NewRedisAdapter(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, falling back to in-process cache")
		} else {
			defer redisCache.Close()
			responseCache = redisCache
			log.Info().Msg("redis response cache initialized")
		}
	}

	limiter := ratelimit.New(ratelimit.DefaultBuckets())

	// Provider clients
	openAIClient := openai.NewClient(metrics, cfg.AI.OpenAIMaxCompletionTokens)
	anthropicClient := anthropic.NewClient(metrics, cfg.AI.AnthropicDirectHTTP)
	geminiClient := gemini.NewClient(metrics)
	mapsClient := googlemaps.NewClient(cfg.Maps.APIKey, memoryCache, limiter)
	serpClient := serpapi.NewClient(cfg.Research.SerpAPIKey, limiter)
	estatClient := estat.NewClient(cfg.EStat.APIKey, cfg.Storage.CacheDir, limiter)

	// Services
	gateway := services.NewAIGateway(openAIClient, anthropicClient, geminiClient, openAIClient, geminiClient)
	regionalStats := services.NewRegionalStatsService(estatClient)
	medicalStats := services.NewMedicalStatsService(estatClient)
	webResearch := services.NewWebResearchService(serpClient, gateway, settingsService)

	personaService := services.NewPersonaService(settingsService, ragStore, gateway)
	competitiveService := services.NewCompetitiveService(mapsClient, regionalStats, medicalStats, webResearch, gateway, settingsService)
	timelineService := services.NewTimelineService(ragStore, gateway, settingsService)
	configService := services.NewConfigService()

	// HTTP layer
	auth := middleware.NewBasicAuth(&cfg.Auth)
	cacheMiddleware := middleware.NewCacheMiddleware(responseCache)

	router := routes.NewRouter(
		handlers.NewGenerateHandler(personaService),
		handlers.NewCompetitiveHandler(competitiveService),
		handlers.NewDownloadHandler(export.NewRenderer()),
		handlers.NewAdminHandler(settingsService, ragStore),
		handlers.NewConfigHandler(configService),
		handlers.NewTimelineHandler(timelineService),
		auth,
		cacheMiddleware,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router.SetupRoutes(),
		// Generation requests wait on multi-minute AI retries.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 7 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
