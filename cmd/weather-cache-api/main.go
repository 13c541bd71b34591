package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/i474232898/weather-cache-api/internal/api/http"
	"github.com/i474232898/weather-cache-api/internal/config"
	"github.com/i474232898/weather-cache-api/internal/coordinator"
	"github.com/i474232898/weather-cache-api/internal/flaglock"
	"github.com/i474232898/weather-cache-api/internal/queue"
	"github.com/i474232898/weather-cache-api/internal/scheduler"
	"github.com/i474232898/weather-cache-api/internal/store"
	"github.com/i474232898/weather-cache-api/internal/taskapi"
	"github.com/i474232898/weather-cache-api/internal/taskclient"
	"github.com/i474232898/weather-cache-api/internal/taskstatus"
	"github.com/i474232898/weather-cache-api/internal/weather"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("failed to load timezone %q: %v", cfg.Timezone, err)
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

	hostname, err := os.Hostname()
	if err != nil {
		log.Fatalf("failed to resolve hostname: %v", err)
	}
	dispatcher := coordinator.New(flag, statuses, broker, hostname)

	// The request path triggers fetches through the tasks endpoint so the
	// busy/free flag applies to scheduled and interactive fetches alike.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	trigger := taskclient.New(httpClient, cfg.TasksBaseURL, cfg.APIToken, cfg.PollAttempts, cfg.PollDelay)

	service := weather.NewService(pg, trigger, tz)

	// Scheduler that periodically refreshes forecast data.
	sched := scheduler.New(cfg.Locations, cfg.SchedulerInterval, dispatcher)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-cache-api",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-cache-api",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service)
	taskapi.RegisterRoutes(app, dispatcher, statuses, cfg.APIToken)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
