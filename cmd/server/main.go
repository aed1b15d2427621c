/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the stock ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment), then apply flag overrides
  2. Build the logger
  3. Initialize SQLite store
  4. Choose the event notifier (Kafka when brokers are set, else log)
  5. Create ledger, report service, handler and router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database
  -env     Path of the .env file (default: .env)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Flush and close the Kafka writer
  4. Close database connection

EXAMPLES:
  ./server -db="./data/stock.db"
  KAFKA_BROKERS=localhost:9092 STOCK_AMEND_POLICY=preserve ./server -port=3000

SEE ALSO:
  - config/config.go: Environment keys and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/stock-ledger/api"
	"github.com/warp/stock-ledger/config"
	"github.com/warp/stock-ledger/events"
	"github.com/warp/stock-ledger/ledger"
	"github.com/warp/stock-ledger/report"
	"github.com/warp/stock-ledger/store/sqlite"
)

func main() {
	// Flags
	port := flag.String("port", "", "HTTP server port (overrides PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DB_PATH)")
	envFile := flag.String("env", ".env", "Path of the .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Stock movement events
	var notifier ledger.Notifier = events.NewLogNotifier(logger)
	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := publisher.Close(); err != nil {
				config.LogError(logger, "main", "main", "close kafka writer", nil, err)
			}
		}()
		notifier = ledger.MultiNotifier{publisher, notifier}
		logger.WithFields(logrus.Fields{"brokers": cfg.KafkaBrokers, "topic": cfg.KafkaTopic}).Info("publishing stock events to kafka")
	}

	l := ledger.New(store,
		ledger.WithLogger(logger),
		ledger.WithNotifier(notifier),
		ledger.WithAmendPolicy(cfg.AmendPolicy),
		ledger.WithRetryBudget(cfg.RetryBudget),
	)
	reports := report.NewService(store, store,
		report.WithLogger(logger),
		report.WithExpiryWindow(cfg.ExpiryWindow),
	)

	handler := api.NewHandler(l, reports, store, logger)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.WithFields(logrus.Fields{
			"port":         cfg.Port,
			"db":           cfg.DBPath,
			"amend_policy": cfg.AmendPolicy,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		config.LogError(logger, "main", "main", "shutdown", nil, err)
		return
	}

	logger.Info("server stopped")
}
