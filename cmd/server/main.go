// Command server runs the garage assistant HTTP API.
//
// @title                      Garage Assistant API
// @version                    1.0
// @description                Chat assistant and bulk transfer endpoints for vehicle collections.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-garage-backend/docs"
	"github.com/tbourn/go-garage-backend/internal/config"
	httpapi "github.com/tbourn/go-garage-backend/internal/http"
	"github.com/tbourn/go-garage-backend/internal/llm"
	"github.com/tbourn/go-garage-backend/internal/observability"
	"github.com/tbourn/go-garage-backend/internal/repo"
	"github.com/tbourn/go-garage-backend/internal/research"
	"github.com/tbourn/go-garage-backend/internal/retail"
	"github.com/tbourn/go-garage-backend/internal/services"
	"github.com/tbourn/go-garage-backend/internal/sysutil"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()
	log := sysutil.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, sysutil.Version())
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(sctx)
	}()

	db, err := repo.Open(cfg.DBDriver, dbDSN(cfg))
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	gen := newGenerator(ctx, cfg, log)
	cache, closeCache := newRetailCache(ctx, cfg, log)
	defer closeCache()
	tools := retail.NewRegistry(cfg.Retail.Timeout,
		retail.NewRevZilla(retail.RevZillaConfig{
			Client: &http.Client{Timeout: cfg.Retail.Timeout},
			Cache:  cache,
		}),
	)

	titles, waitTitles := newTitleDispatcher(cfg, services.NewTitleGenerator(db, gen), log)
	defer waitTitles()

	assistant := services.NewAssistantService(db, research.NewOrchestrator(gen, tools))
	assistant.Titles = titles
	assistant.HistoryLimit = cfg.HistoryLimit
	assistant.MaxMessageRunes = cfg.MaxMessageRunes

	gin.SetMode(cfg.GinMode)
	docs.SwaggerInfo.BasePath = cfg.APIBasePath
	r := gin.New()
	httpapi.RegisterRoutes(r, db, httpapi.DefaultServices(db, assistant), cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("db", cfg.DBDriver).Bool("llm", cfg.LLM.APIKey != "").Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}

func dbDSN(cfg config.Config) string {
	if cfg.DBDriver == repo.DriverPostgres {
		return cfg.DatabaseURL
	}
	return cfg.DBPath
}

// newGenerator returns Gemini when a key is configured. Without one the
// assistant still answers from collection data and retailer results.
func newGenerator(ctx context.Context, cfg config.Config, log zerolog.Logger) llm.Generator {
	g, err := llm.NewGemini(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		log.Warn().Msg("GEMINI_API_KEY not set; language model disabled")
		return llm.Disabled{}
	case err != nil:
		log.Fatal().Err(err).Msg("gemini client failed")
	}
	return g
}

// newRetailCache shares retailer results through Redis when REDIS_ADDR is
// set and keeps them in process otherwise.
func newRetailCache(ctx context.Context, cfg config.Config, log zerolog.Logger) (retail.Cache, func()) {
	if cfg.Redis.Addr == "" {
		return retail.NewMemoryCache(cfg.Retail.CacheTTL, cfg.Retail.CacheMax), func() {}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable; using in-memory retail cache")
		_ = rdb.Close()
		return retail.NewMemoryCache(cfg.Retail.CacheTTL, cfg.Retail.CacheMax), func() {}
	}
	return retail.NewRedisCache(rdb, cfg.Retail.CacheTTL), func() { _ = rdb.Close() }
}

// newTitleDispatcher publishes title jobs to RabbitMQ for cmd/worker when
// RABBIT_URL is set, and runs them on goroutines otherwise. The returned
// func waits for in-process jobs or closes the connection.
func newTitleDispatcher(cfg config.Config, gen *services.TitleGenerator, log zerolog.Logger) (services.TitleDispatcher, func()) {
	if cfg.Rabbit.URL != "" {
		pub, err := services.NewTitlePublisher(cfg.Rabbit.URL, cfg.Rabbit.TitleQueue)
		if err == nil {
			return pub, pub.Close
		}
		log.Warn().Err(err).Msg("rabbitmq unavailable; generating titles in process")
	}
	async := services.NewAsyncTitleDispatcher(gen)
	return async, async.Wait
}
