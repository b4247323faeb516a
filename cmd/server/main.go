/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the consequence ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load CONSEQUENCE_* environment, then parse command-line flags
  2. Initialize SQLite store and the validating ledger over it
  3. Optionally mirror appended transactions to Kafka
  4. Start the cross-process watcher and the engine registry
  5. Configure HTTP router and start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port    HTTP server port (CONSEQUENCE_PORT, default: 8080)
  -db      SQLite database path (CONSEQUENCE_DB, default: consequences.db)
           Use ":memory:" for in-memory database
  -tz      Default day boundary for profiles without a zone
           (CONSEQUENCE_TIMEZONE, default: UTC)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the watcher, close engines, the Kafka writer and the database
  4. Exit

EXAMPLES:
  ./server -db="./data/consequences.db"
  CONSEQUENCE_KAFKA_BROKERS=localhost:9092 ./server -port=3000

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/watch.go: Cross-process change detection
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/warp/consequence-ledger/api"
	"github.com/warp/consequence-ledger/config"
	"github.com/warp/consequence-ledger/consequence"
	"github.com/warp/consequence-ledger/events"
	"github.com/warp/consequence-ledger/factory"
	"github.com/warp/consequence-ledger/generic"
	"github.com/warp/consequence-ledger/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	timeZone := flag.String("tz", cfg.TimeZone, "Default time zone for profiles without one")
	flag.Parse()
	cfg.Port, cfg.DBPath, cfg.TimeZone = *port, *dbPath, *timeZone

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	attribution, err := cfg.AttributionOrder()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	var ledger generic.Store = generic.NewLedger(store)
	if cfg.MirrorEnabled() {
		mirror := events.NewMirror(ledger, events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		defer mirror.Close()
		ledger = mirror
		log.Printf("Mirroring transactions to Kafka topic %s", cfg.KafkaTopic)
	}

	watcher := sqlite.NewWatcher(store)
	watcher.Interval = cfg.WatchInterval
	if err := watcher.Start(); err != nil {
		log.Fatalf("Failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	engines := consequence.NewRegistry(ledger, consequence.WithAttribution(attribution))
	defer engines.Close()

	handler := api.NewHandler(store, engines, factory.NewProfileFactory(loc))
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	// Create server. No write timeout: /stream responses are long-lived.
	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Port)
		log.Printf("API available at http://localhost:%d/api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
