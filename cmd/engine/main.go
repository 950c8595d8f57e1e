package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/rawblock/bridge-dd-engine/internal/analysis"
	"github.com/rawblock/bridge-dd-engine/internal/api"
	"github.com/rawblock/bridge-dd-engine/internal/batch"
	"github.com/rawblock/bridge-dd-engine/internal/db"
	"github.com/rawblock/bridge-dd-engine/internal/ingest"
)

func main() {
	log.Println("Starting Bridge DD Analysis Engine (Microservice: bridge-dd-engine)...")

	// ─── Required Environment Variables ─────────────────────────────────
	// All credentials MUST come from environment variables. No fallback
	// defaults for security-sensitive values. Use a .env file for local
	// development: cp .env.example .env && edit .env
	// ────────────────────────────────────────────────────────────────────

	dbUrl := requireEnv("DATABASE_URL")

	dbConn, err := db.Connect(dbUrl)
	if err != nil {
		log.Printf("Warning: Failed to connect to PostgreSQL, continuing without persisting analysis results. Error: %v", err)
		dbConn = nil
	} else {
		defer dbConn.Close()
		if err := dbConn.InitSchema(); err != nil {
			log.Printf("Warning: DB schema init failed: %v", err)
		}
	}

	// Setup WebSocket Hub
	wsHub := api.NewHub()
	go wsHub.Run()

	// Per-hand analysis is sequential; boards fan out across this pool.
	workers := getEnvInt("DD_WORKERS", 4)
	cfg := analysis.MidTrickConfig()
	if budgetMs := getEnvInt("DD_BUDGET_MS", 0); budgetMs > 0 {
		cfg.Budget = time.Duration(budgetMs) * time.Millisecond
	}
	runner := batch.NewRunner(workers, cfg, dbConn, api.BroadcastBoardResult(wsHub))

	// Optional drop-directory ingestion alongside the API.
	if watchDir := os.Getenv("LIN_WATCH_DIR"); watchDir != "" {
		poller := ingest.NewPoller(watchDir, runner, wsHub)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go poller.Run(ctx)
	} else {
		log.Println("LIN_WATCH_DIR not set — engine running in API-only mode (no file poller)")
	}

	// Setup the Gin Router
	r := api.SetupRouter(dbConn, wsHub, runner)

	port := getEnvOrDefault("PORT", "5440")

	// Start the server
	log.Printf("Engine running on :%s (workers=%d)\n", port, workers)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// requireEnv reads a required environment variable and exits if it is not set.
// This prevents the binary from starting with missing critical configuration.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set. "+
			"Copy .env.example to .env and fill in your values: cp .env.example .env", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt parses an integer env var, falling back on absence or garbage.
func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("Warning: %s=%q is not an integer, using %d", key, val, fallback)
		return fallback
	}
	return n
}
