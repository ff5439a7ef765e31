package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"directus-usage-tracker/analytics"
	"directus-usage-tracker/cache"
	"directus-usage-tracker/config"
	"directus-usage-tracker/db"
	_ "directus-usage-tracker/docs" // Swagger docs
	"directus-usage-tracker/handler"
	appLogger "directus-usage-tracker/logger"
	"directus-usage-tracker/middleware"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Directus Usage Tracker API
// @version 1.2
// @description Analytics companion service for Directus: per-collection row counts and aggregated audit-log activity (by collection, action, user and IP) with a TTL cache in front.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @BasePath /usage-tracker

// @securityDefinitions.apikey AdminKey
// @in header
// @name X-Admin-Key

// @tag.name Collections
// @tag.description Per-collection row counts for the dashboard

// @tag.name Activity
// @tag.description Aggregations over the directus_activity audit log

// @tag.name Cache
// @tag.description Admin-only cache invalidation

// @tag.name System
// @tag.description Health checks

func main() {
	// Load configuration
	cfg := config.MustLoadConfig()

	// Initialize logger
	appLogger.Initialize(cfg.Log.Level)
	log.Info().Msg("Configuration loaded successfully")

	// Connect to the host Directus database
	conn, dialect, err := db.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Initialize cache (if enabled)
	var cacheService *cache.Service
	if cfg.Cache.Enabled {
		var store cache.Store
		switch cfg.Cache.Backend {
		case "redis":
			store, err = cache.NewRedisStore(cfg.Redis)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to initialize Redis cache backend")
			}
		default:
			store = cache.NewMemoryStore(time.Duration(cfg.Cache.SweepInterval) * time.Second)
		}
		cacheService = cache.NewService(cfg.Cache, store)
		log.Info().Str("backend", cfg.Cache.Backend).Msg("Cache initialized")
	} else {
		log.Info().Msg("Cache disabled in configuration")
	}

	// Create handler with dependency injection
	aggregator := analytics.New(conn, dialect)
	usageHandler := handler.NewUsageHandler(aggregator, cacheService, cfg)

	// Set up router
	r := mux.NewRouter()
	api := r.PathPrefix(cfg.WebServer.BasePath).Subrouter()

	// Apply global middleware
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	adminAuth := middleware.NewAdminAuth(cfg.Admin.APIKey, cfg.Admin.AuthEnabled)

	r.Use(middleware.CORS)
	r.Use(middleware.RequestLogger)
	r.Use(rateLimiter.Limit)

	// Register routes
	api.HandleFunc("/health", usageHandler.HealthCheck).Methods("GET")
	api.HandleFunc("/collections", usageHandler.GetCollections).Methods("GET")
	api.HandleFunc("/activity", usageHandler.GetActivity).Methods("GET")
	api.HandleFunc("/activity/ips", usageHandler.GetActivityIPs).Methods("GET")
	api.HandleFunc("/activity/timeseries", usageHandler.GetTimeseries).Methods("GET")
	api.HandleFunc("/activity/ips/{ip}", usageHandler.GetActivityByIP).Methods("GET")

	// Cache invalidation (admin-protected)
	api.Handle("/cache", adminAuth.Protect(http.HandlerFunc(usageHandler.ClearCache))).Methods("DELETE")
	api.Handle("/activity/cache", adminAuth.Protect(http.HandlerFunc(usageHandler.ClearActivityCache))).Methods("DELETE")
	api.Handle("/collections/cache", adminAuth.Protect(http.HandlerFunc(usageHandler.ClearCollectionsCache))).Methods("DELETE")

	// Path-variable routes last to avoid shadowing the fixed ones
	api.HandleFunc("/collections/{collection}", usageHandler.GetCollection).Methods("GET")

	// Swagger UI
	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	// Configure HTTP server
	serverAddress := fmt.Sprintf("%s:%s", cfg.WebServer.IP, cfg.WebServer.Port)
	server := &http.Server{
		Addr:         serverAddress,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.WebServer.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WebServer.WriteTimeout) * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("address", serverAddress).
			Str("base_path", cfg.WebServer.BasePath).
			Msg("Starting server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.WebServer.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop the cache sweeper / close the Redis connection
	cacheService.Close()

	if err := conn.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close database connection")
	}

	log.Info().Msg("Server stopped gracefully")
}
