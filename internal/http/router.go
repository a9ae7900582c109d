// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// authentication, CORS, security headers, idempotency, and rate limiting.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-garage-backend/internal/config"
	"github.com/tbourn/go-garage-backend/internal/http/handlers"
	"github.com/tbourn/go-garage-backend/internal/http/middleware"
	"github.com/tbourn/go-garage-backend/internal/repo"
	"github.com/tbourn/go-garage-backend/internal/services"
	"github.com/tbourn/go-garage-backend/internal/transfer"
)

// Body caps. Import uploads get the import limit plus room for multipart
// framing; every other route gets defaultBodyLimit.
const (
	defaultBodyLimit = 1 << 20
	importBodyLimit  = transfer.MaxImportBytes + 1<<20
)

var (
	corsMethods       = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsAllowHeaders  = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderUserID, middleware.HeaderIdempotencyKey, "If-None-Match"}
	corsExposeHeaders = []string{"X-Request-ID", "Content-Length", "Content-Disposition", "ETag", middleware.HeaderIdempotencyReplayed, "Retry-After"}
)

// Services are the application services mounted by RegisterRoutes.
type Services struct {
	Assistant   handlers.AssistantService
	Suggestions handlers.SuggestionService
	Sessions    handlers.SessionService
	Messages    handlers.MessageService
	Transfer    handlers.TransferService
	Vehicles    handlers.VehicleService
}

// DefaultServices builds the database-backed services around an assistant.
func DefaultServices(db *gorm.DB, assistant handlers.AssistantService) Services {
	return Services{
		Assistant:   assistant,
		Suggestions: &services.SuggestionService{DB: db},
		Sessions:    services.NewChatService(db, repo.Chats{}),
		Messages:    &services.MessageService{DB: db},
		Transfer:    &services.TransferService{DB: db},
		Vehicles:    &services.VehicleService{DB: db},
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Access log (redacting unless LOG_REDACT=false)
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip responses
//  7. Metrics
//  8. OptionalAuth: resolve the caller so later steps can key on it
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per user/IP, bypass on replay)
//  11. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, svc Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	if cfg.LogRedact {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	} else {
		r.Use(middleware.Logger())
	}
	r.Use(middleware.Recovery())
	r.Use(limitBody(defaultBodyLimit, importBodyLimit))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.NewAuthenticator(middleware.AuthOptions{
		Secret:   cfg.Auth.JWTSecret,
		Audience: cfg.Auth.Audience,
		Leeway:   cfg.Auth.Leeway,
	})
	r.Use(auth.OptionalAuth())

	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, handlers.IdempotencyLookup(db)))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", health(db))
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(handlers.Deps{
		DB:              db,
		Assistant:       svc.Assistant,
		Suggestions:     svc.Suggestions,
		Sessions:        svc.Sessions,
		Messages:        svc.Messages,
		Transfer:        svc.Transfer,
		Vehicles:        svc.Vehicles,
		MaxMessageRunes: cfg.MaxMessageRunes,
		IdempotencyTTL:  cfg.IdempotencyTTL,
	})

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.GET("/chat/suggestions", h.Suggestions)

	authed := api.Group("", auth.Auth())
	{
		// Chat
		authed.POST("/chat", h.Chat)
		authed.GET("/chat/sessions", h.ListSessions)
		authed.GET("/chat/sessions/:id/messages", h.ListMessages)
		authed.PUT("/chat/sessions/:id/title", h.RenameSession)
		authed.DELETE("/chat/sessions/:id", h.DeleteSession)

		// Collections
		authed.GET("/collections/:id/vehicles", h.ListVehicles)
		authed.GET("/collections/:id/export", h.ExportCollection)
		authed.POST("/collections/:id/import", h.ImportCollection)
		authed.POST("/collections/:id/import/match", h.MatchImportFiles)
		authed.GET("/vehicles/:id", h.GetVehicle)
	}
}

// health reports liveness plus database reachability.
func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status})
	}
}

// corsMiddleware allows every origin when none are configured. Otherwise only
// allowlisted origins are echoed back.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     corsMethods,
		AllowHeaders:     corsAllowHeaders,
		ExposeHeaders:    corsExposeHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		base.AllowAllOrigins = true
		// ACAO: * even without an Origin header, so simple probes see it too.
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{cors.New(base)}
}

// limitBody caps request bodies with http.MaxBytesReader. Import routes get
// importMax; the rest get max.
func limitBody(max, importMax int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := max
		if strings.HasSuffix(c.FullPath(), "/import") {
			limit = importMax
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
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
