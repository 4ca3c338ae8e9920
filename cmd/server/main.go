/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the points administration server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (optional) and parse command-line flags
  2. Pick the store backend: MongoDB when MONGO_URI is set, SQLite
     otherwise
  3. Start the notification dispatcher
  4. Create the API handler and router
  5. Start the server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: points.db)
           Use ":memory:" for an in-memory database

ENVIRONMENT:
  MONGO_URI  When set, use MongoDB instead of SQLite
  MONGO_DB   Database name for MongoDB (default: points)
  PORT       Overrides -port when set

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Drain the notification dispatcher
  4. Close the store

EXAMPLES:
  # Run with file database
  ./server -db="./data/points.db"

  # Run against MongoDB
  MONGO_URI="mongodb://localhost:27017" ./server

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite, store/mongodb: Store implementations
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
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vantage/points-engine/api"
	"github.com/vantage/points-engine/notify"
	"github.com/vantage/points-engine/rewards"
	"github.com/vantage/points-engine/store/mongodb"
	"github.com/vantage/points-engine/store/sqlite"
)

func main() {
	// .env is optional; flags and the environment win.
	_ = godotenv.Load()

	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "points.db", "SQLite database path")
	flag.Parse()

	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			*port = p
		}
	}

	store, closeStore, err := openStore(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer closeStore()

	dispatcher := notify.NewDispatcher(256, &notify.LogSink{})
	defer dispatcher.Close()

	handler := api.NewHandler(store, dispatcher)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// openStore selects the backend: MongoDB when MONGO_URI is set,
// SQLite otherwise.
func openStore(dbPath string) (rewards.Store, func(), error) {
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		dbName := os.Getenv("MONGO_DB")
		if dbName == "" {
			dbName = "points"
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s, err := mongodb.New(ctx, uri, dbName)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Using MongoDB store (db=%s)", dbName)
		return s, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.Close(ctx)
		}, nil
	}

	s, err := sqlite.New(dbPath)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Using SQLite store (db=%s)", dbPath)
	return s, func() { s.Close() }, nil
}
