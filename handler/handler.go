package handler

import (
	"context"
	"time"

	"directus-usage-tracker/analytics"
	"directus-usage-tracker/cache"
	"directus-usage-tracker/config"
	"directus-usage-tracker/model"
)

// Version reported by the health endpoint.
const Version = "1.2.0"

// Aggregator is the query layer the handlers call on cache misses.
type Aggregator interface {
	ListCollections(ctx context.Context, includeSystem bool) ([]model.CollectionUsage, error)
	CollectionUsage(ctx context.Context, collection string) (model.CollectionUsage, error)
	ActivityStats(ctx context.Context, f analytics.ActivityFilter) (model.ActivityStatistics, error)
	TopIPs(ctx context.Context, f analytics.ActivityFilter) ([]model.IPBreakdown, error)
	Timeseries(ctx context.Context, start, end time.Time, granularity string) ([]model.TimeseriesPoint, error)
}

// UsageHandler serves the analytics dashboard API.
type UsageHandler struct {
	agg      Aggregator
	cache    *cache.Service
	config   config.Config
	basePath string
}

// NewUsageHandler creates the handler with its dependencies injected.
// cacheSvc may be nil when caching is disabled.
func NewUsageHandler(agg Aggregator, cacheSvc *cache.Service, cfg config.Config) *UsageHandler {
	return &UsageHandler{
		agg:      agg,
		cache:    cacheSvc,
		config:   cfg,
		basePath: cfg.WebServer.BasePath,
	}
}
