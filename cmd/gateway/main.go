package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ocpp-central/station/internal/allowlist"
	"github.com/ocpp-central/station/internal/config"
	"github.com/ocpp-central/station/internal/dispatch"
	"github.com/ocpp-central/station/internal/events"
	"github.com/ocpp-central/station/internal/httpserver"
	"github.com/ocpp-central/station/internal/logger"
)

func main() {
	// 1. Load configuration.
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logging.
	lg, err := logger.New(&logger.Config{
		Level:      cfg.LogLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
		Caller:     false,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := lg.GetLogger()
	log.Info().Msg("logger initialized")

	// 3. Initialize the allow-list store: Redis-backed if REDIS_ADDR is set,
	// otherwise an in-memory store seeded from ALLOWED_SERIAL_NUMBERS.
	var allowStore allowlist.Store
	if cfg.RedisAddr != "" {
		store, err := allowlist.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.AllowedSerialNumbers)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to redis, falling back to in-memory allow-list")
			allowStore = allowlist.NewMemoryStore(cfg.AllowedSerialNumbers)
		} else {
			allowStore = store
			log.Info().Str("addr", cfg.RedisAddr).Msg("redis allow-list store initialized")
		}
	} else {
		allowStore = allowlist.NewMemoryStore(cfg.AllowedSerialNumbers)
		log.Info().Msg("in-memory allow-list store initialized")
	}

	// 4. Initialize the event publisher: Kafka-backed if KAFKA_BROKERS is
	// set, otherwise a no-op so the server runs standalone.
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize kafka publisher, events will not be published")
		} else {
			publisher = kp
			log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka event publisher initialized")
		}
	}

	// 5. Initialize the dispatcher.
	d := dispatch.New(allowStore, publisher, log)
	log.Info().Msg("dispatcher initialized")

	// 6. Initialize the HTTP/WebSocket surface.
	httpSrv := httpserver.New(d, publisher, log)

	server := &http.Server{
		Addr:         cfg.ServerAddr(),
		Handler:      httpSrv.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	listener, err := net.Listen("tcp", cfg.ServerAddr())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bind listener")
	}
	httpSrv.MarkStarted()

	go func() {
		log.Info().Str("addr", cfg.ServerAddr()).Msg("station server starting")
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("station server failed")
		}
	}()

	log.Info().Msg("ocpp central station server started")

	// 7. Wait for shutdown signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down http server")
	}

	if closer, ok := allowStore.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Error().Err(err).Msg("error closing allow-list store")
		}
	}

	if err := publisher.Close(); err != nil {
		log.Error().Err(err).Msg("error closing event publisher")
	}

	log.Info().Msg("server gracefully stopped")
}
