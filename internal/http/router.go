// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-weather-backend/internal/config"
	"github.com/tbourn/go-weather-backend/internal/domain"
	"github.com/tbourn/go-weather-backend/internal/enrich"
	"github.com/tbourn/go-weather-backend/internal/geo"
	"github.com/tbourn/go-weather-backend/internal/http/handlers"
	"github.com/tbourn/go-weather-backend/internal/http/middleware"
	"github.com/tbourn/go-weather-backend/internal/meteo"
	"github.com/tbourn/go-weather-backend/internal/repo"
	"github.com/tbourn/go-weather-backend/internal/services"
)

// requestRepoShim adapts the repository free functions to the
// services.RequestRepo interface expected by RequestService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type requestRepoShim struct{}

// CreateRequest proxies repo.CreateRequest.
func (requestRepoShim) CreateRequest(ctx context.Context, db *gorm.DB, rec *domain.WeatherRequest) error {
	return repo.CreateRequest(ctx, db, rec)
}

// ListRequests proxies repo.ListRequests.
func (requestRepoShim) ListRequests(ctx context.Context, db *gorm.DB, limit int) ([]domain.WeatherRequest, error) {
	return repo.ListRequests(ctx, db, limit)
}

// ListRequestsAsc proxies repo.ListRequestsAsc (export support).
func (requestRepoShim) ListRequestsAsc(ctx context.Context, db *gorm.DB) ([]domain.WeatherRequest, error) {
	return repo.ListRequestsAsc(ctx, db)
}

// GetRequest proxies repo.GetRequest.
func (requestRepoShim) GetRequest(ctx context.Context, db *gorm.DB, id uint) (*domain.WeatherRequest, error) {
	return repo.GetRequest(ctx, db, id)
}

// SaveRequest proxies repo.SaveRequest.
func (requestRepoShim) SaveRequest(ctx context.Context, db *gorm.DB, rec *domain.WeatherRequest) error {
	return repo.SaveRequest(ctx, db, rec)
}

// DeleteRequest proxies repo.DeleteRequest.
func (requestRepoShim) DeleteRequest(ctx context.Context, db *gorm.DB, id uint) error {
	return repo.DeleteRequest(ctx, db, id)
}

// RequestsStats proxies repo.RequestsStats (ETag support).
func (requestRepoShim) RequestsStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	return repo.RequestsStats(ctx, db)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting,
// CORS and security headers, health and metrics endpoints, and then mounts
// the public API under the configured base path.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured request logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per client IP; every create/update fans out to paid-for
//     upstream calls, so the edge limit doubles as cost protection)
//  8. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured request logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per client IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Content-Disposition"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Content-Disposition"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Dependency injection: services ← repo/db and outbound clients
	resolver := geo.NewResolver(cfg.Upstream.GeocodingTimeout)
	fetcher := meteo.NewFetcher(cfg.Upstream.WeatherTimeout)
	enricher := enrich.NewClient(cfg.Upstream.HTTPTimeout,
		cfg.Upstream.YouTubeAPIKey, cfg.Upstream.StaticMapsKey)

	reqSvc := services.NewRequestService(db, requestRepoShim{}, resolver, fetcher)
	reqSvc.MaxRangeDays = cfg.MaxRangeDays

	h := handlers.New(reqSvc, enricher)

	// Optional static front-end bundle
	if cfg.WebDir != "" {
		r.Static("/ui", cfg.WebDir)
		r.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusTemporaryRedirect, "/ui/")
		})
	} else {
		r.GET("/", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"service": cfg.OTEL.ServiceName, "api": cfg.APIBasePath})
		})
	}

	// Public API (gzip helps the larger list/export payloads)
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC().Format(time.RFC3339)})
		})

		// Stored requests
		api.POST("/requests", h.CreateRequest)
		api.GET("/requests", h.ListRequests)
		api.GET("/requests/:id", h.GetRequest)
		api.PUT("/requests/:id", h.UpdateRequest)
		api.DELETE("/requests/:id", h.DeleteRequest)

		// Enrichment
		api.GET("/info", h.PlaceInfo)
		api.GET("/media/youtube", h.PlaceVideos)
		api.GET("/map", h.PlaceMap)

		// Export
		api.GET("/export", h.ExportRequests)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
