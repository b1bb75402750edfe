package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/courtside/internal/simulator"
)

// Default configuration constants.
const (
	defaultUsers       = 20
	defaultGames       = 40
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		users      = flag.Int("users", defaultUsers, "Number of simulated users")
		games      = flag.Int("games", defaultGames, "Games each user ranks")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Users driven concurrently")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed       = flag.Uint64("seed", 0, "Seed for the hidden orders (default: from the clock)")
		jwtSecret  = flag.String("jwt-secret", os.Getenv("COURTSIDE_JWT_SECRET"), "HS256 secret for per-user bearer tokens")
		prefix     = flag.String("prefix", "sim-", "Prefix for generated user IDs")
		outputFile = flag.String("output", "", "Write the generated scenarios as JSON")
		logFile    = flag.String("log", "", "Log file for run output (default: rank_sim_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulator.ShowHelp()
		return
	}

	if err := simulator.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &simulator.Config{
		BaseURL:    *baseURL,
		Users:      *users,
		Games:      *games,
		Workers:    *workers,
		Timeout:    *timeout,
		Seed:       *seed,
		JWTSecret:  *jwtSecret,
		UserPrefix: *prefix,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	if _, err := simulator.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
