package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/courtside/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	outputPermission    = 0600
)

// ErrPlacementsFailed is returned when some games could not be ranked.
var ErrPlacementsFailed = errors.New("some placements failed")

// Run executes a complete simulation and returns its statistics. Failed
// placements and verification violations are both reported as errors.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{
		StartTime: time.Now(),
	}
	if config.Workers < 1 {
		config.Workers = 1
	}

	logger.Get().Info(ctx, "starting courtside ranking simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("users", config.Users),
		logger.Int("games", config.Games),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Bool("auth", config.JWTSecret != ""),
		logger.Any("verbose", config.Verbose))

	client := newHTTPClient(config.BaseURL, config.Timeout, config.JWTSecret)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate scenarios
	scenarios := generateScenarios(ctx, config)

	// Step 3: Rank every game for every user
	rankUsers(ctx, config, client, scenarios, stats)
	stats.Retries = client.Retries()

	// Step 4: Verify lists
	verifyErr := verifyResults(ctx, config, client, scenarios, stats)

	// Step 5: Save scenarios
	if config.OutputFile != "" {
		if err := saveScenarios(ctx, config.OutputFile, scenarios); err != nil {
			logger.Get().Warn(ctx, "failed to save scenarios to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	if verifyErr != nil {
		return stats, fmt.Errorf("result verification failed: %w", verifyErr)
	}
	if stats.ItemsFailed > 0 {
		return stats, fmt.Errorf("%w: %d of %d", ErrPlacementsFailed, stats.ItemsFailed, stats.ItemsFailed+stats.ItemsRanked)
	}
	logger.Get().Info(ctx, "simulation completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	logger.Get().Info(ctx, "checking service health")

	resp, err := client.Get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if _, err := readResponseBody(resp); err != nil {
		return fmt.Errorf("failed to read health response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveScenarios writes the generated scenarios as indented JSON.
func saveScenarios(ctx context.Context, filename string, scenarios []Scenario) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(scenarios, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scenarios: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), outputPermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "scenarios saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final run statistics.
func displayFinalStats(stats *Stats) {
	var successRate, placementsPerSecond, comparisonsPerItem float64

	attempted := stats.ItemsRanked + stats.ItemsFailed
	if attempted > 0 {
		successRate = float64(stats.ItemsRanked) / float64(attempted) * PercentageMultiplier
	}
	if stats.ItemsRanked > 0 {
		comparisonsPerItem = float64(stats.Comparisons) / float64(stats.ItemsRanked)
	}
	if stats.Duration > 0 {
		placementsPerSecond = float64(stats.ItemsRanked) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("usersSimulated", stats.UsersSimulated),
		logger.Int("itemsRanked", stats.ItemsRanked),
		logger.Int("itemsFailed", stats.ItemsFailed),
		logger.Int("comparisons", stats.Comparisons),
		logger.Int("directPlacements", stats.DirectPlacements),
		logger.Int("retries", stats.Retries),
		logger.Int("violations", stats.Violations),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("comparisonsPerItem", comparisonsPerItem),
		logger.Float64("placementsPerSecond", placementsPerSecond))
}
