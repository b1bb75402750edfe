package simulator

import (
	"time"

	"github.com/okian/courtside/internal/domain/model"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Users      int           // Number of simulated users
	Games      int           // Games each user ranks
	Workers    int           // Users driven concurrently
	Timeout    time.Duration // HTTP request timeout
	Seed       uint64        // Seed for hidden orders; 0 picks one from the clock
	JWTSecret  string        // Signs per-user bearer tokens when set
	UserPrefix string        // Prefix for generated user IDs
	OutputFile string        // Scenario dump; empty skips it
	LogFile    string        // Log file for run output
	Verbose    bool          // Enable verbose logging
}

// Game is one matchup as a simulated user sees it.
type Game struct {
	model.Matchup
	Sentiment string `json:"sentiment"`
	// Hidden is the user's secret preference; lower is better.
	Hidden int `json:"hidden"`
}

// Scenario is everything a simulated user ranks, in insertion order.
type Scenario struct {
	UserID  string   `json:"user_id"`
	Favored []string `json:"favored"`
	Games   []Game   `json:"games"`
}

// Stats holds run statistics.
type Stats struct {
	UsersSimulated   int
	ItemsRanked      int
	ItemsFailed      int
	Comparisons      int
	DirectPlacements int
	Retries          int
	Violations       int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
