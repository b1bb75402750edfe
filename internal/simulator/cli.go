package simulator

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/courtside/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "rank_sim_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	log.SetOutput(io.MultiWriter(os.Stdout, file))
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Courtside Ranking Simulator
===========================

Drives simulated users through the ranking wizard over HTTP. Every user
holds a secret strict order over the games and answers each comparison
consistently with it. Once all games are placed, each user's list is
checked for dense ranks and for agreement with the secret order inside
every sentiment bucket.

Usage:
  go run ./cmd/rank-sim [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -users int
        Number of simulated users (default 20)
  -games int
        Games each user ranks (default 40)
  -workers int
        Users driven concurrently (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -seed uint
        Seed for the hidden orders (default: from the clock)
  -jwt-secret string
        Sign per-user bearer tokens with this HS256 secret
        (default: $COURTSIDE_JWT_SECRET)
  -prefix string
        Prefix for generated user IDs (default "sim-")
  -output string
        Write the generated scenarios as JSON
  -log string
        Log file for run output (default: rank_sim_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate with default settings
  go run ./cmd/rank-sim

  # Reproducible run against a secured server
  go run ./cmd/rank-sim -seed 42 -users 100 -games 60 -jwt-secret s3cret

  # Keep the scenarios for inspection
  go run ./cmd/rank-sim -verbose -output scenarios.json
`)
}
