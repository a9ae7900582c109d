// Command worker consumes session title jobs from RabbitMQ.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tbourn/go-garage-backend/internal/config"
	"github.com/tbourn/go-garage-backend/internal/llm"
	"github.com/tbourn/go-garage-backend/internal/observability"
	"github.com/tbourn/go-garage-backend/internal/repo"
	"github.com/tbourn/go-garage-backend/internal/services"
	"github.com/tbourn/go-garage-backend/internal/sysutil"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()
	log := sysutil.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName+"-worker")
	if cfg.Rabbit.URL == "" {
		log.Fatal().Msg("RABBIT_URL is required")
	}

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

	dsn := cfg.DBPath
	if cfg.DBDriver == repo.DriverPostgres {
		dsn = cfg.DatabaseURL
	}
	db, err := repo.Open(cfg.DBDriver, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open database failed")
	}

	var gen llm.Generator = llm.Disabled{}
	if g, err := llm.NewGemini(ctx, cfg.LLM.APIKey, cfg.LLM.Model); err == nil {
		gen = g
	} else if !errors.Is(err, llm.ErrNotConfigured) {
		log.Fatal().Err(err).Msg("gemini client failed")
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set; titles use the heuristic fallback")
	}

	conn, err := amqp.Dial(cfg.Rabbit.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit dial failed")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit channel failed")
	}
	defer ch.Close()

	queue := cfg.Rabbit.TitleQueue
	if err := services.DeclareTitleQueues(ch, queue); err != nil {
		log.Fatal().Err(err).Msg("declare queues failed")
	}

	concurrency := cfg.Rabbit.Concurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal().Err(err).Msg("qos failed")
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("consume failed")
	}

	consumer := services.NewTitleConsumer(services.NewTitleGenerator(db, gen), ch, queue, cfg.Rabbit.MaxAttempts)
	log.Info().Str("queue", queue).Int("concurrency", concurrency).Msg("worker started")

	jobs := make(chan amqp.Delivery, concurrency*2)
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		wlog := log.With().Int("worker", i).Logger()
		go func() {
			defer wg.Done()
			for d := range jobs {
				consumer.Handle(wlog.WithContext(ctx), d)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker shutting down")
			close(jobs)
			wg.Wait()
			return
		case d, ok := <-msgs:
			if !ok {
				log.Error().Msg("delivery channel closed")
				close(jobs)
				wg.Wait()
				return
			}
			jobs <- d
		}
	}
}
