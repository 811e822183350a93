// Package api provides the HTTP status API for the flood monitor.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/riverwatch/riverwatch/internal/api/handler"
	"github.com/riverwatch/riverwatch/internal/api/middleware"
	"github.com/riverwatch/riverwatch/internal/monitor"
	"github.com/riverwatch/riverwatch/internal/provider/resilience"
	"github.com/riverwatch/riverwatch/internal/station"
	"github.com/riverwatch/riverwatch/internal/warehouse"
	"github.com/riverwatch/riverwatch/internal/zone"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	Store       warehouse.Repository
	Cache       *monitor.Cache
	Feeds       *resilience.Registry
	Stations    *station.Registry
	Zones       []zone.Zone
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "riverwatch-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Store, cfg.Cache, cfg.Feeds)
	siteHandler := handler.NewSiteHandler(cfg.Stations, cfg.Store)
	zoneHandler := handler.NewZoneHandler(cfg.Zones)

	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)  // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public, no rate limit so probes never 429)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/sites", func(r chi.Router) {
			r.With(standardRateLimit).Get("/", siteHandler.ListSites)
			r.Route("/{siteCode}", func(r chi.Router) {
				r.With(standardRateLimit).Get("/", siteHandler.GetSite)
				// Range queries scan the readings table - strict rate limiting
				r.With(expensiveRateLimit).Get("/readings", siteHandler.GetReadings)
				r.With(standardRateLimit).Get("/events", siteHandler.ListEvents)
			})
		})

		r.Route("/zones", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", zoneHandler.ListZones)
			r.Get("/{zoneId}", zoneHandler.GetZone)
		})
	})

	return r
}
