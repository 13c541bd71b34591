package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/i474232898/weather-cache-api/internal/config"
	"github.com/i474232898/weather-cache-api/internal/flaglock"
	"github.com/i474232898/weather-cache-api/internal/queue"
	"github.com/i474232898/weather-cache-api/internal/store"
	"github.com/i474232898/weather-cache-api/internal/taskstatus"
	"github.com/i474232898/weather-cache-api/internal/weather/providers"
	"github.com/i474232898/weather-cache-api/internal/worker"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres observation cache.
	pg, err := store.New(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pg.Close()

	// Redis holds the busy/free fetch flags and task statuses.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	flag := flaglock.New(flaglock.NewRedisKV(rdb), cfg.LockTTL)
	statuses := taskstatus.New(rdb, cfg.StatusTTL)

	// RabbitMQ transport for fetch jobs.
	broker, err := queue.Dial(cfg.AMQPURL, cfg.HistoryQueue, cfg.ForecastQueue)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer broker.Close()

	// Upstream provider with resilience (backoff + circuit breaker).
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	provider := providers.NewWeatherAPIClient(httpClient, cfg.WeatherAPIKey,
		cfg.WeatherAPIHistoryURL, cfg.WeatherAPIForecastURL)

	w := worker.New(provider, pg, flag, statuses)

	log.Println("INFO: worker consuming fetch jobs")
	if err := broker.Consume(ctx, w.Handle); err != nil {
		log.Fatalf("consumer stopped: %v", err)
	}
}
