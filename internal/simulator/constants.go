package simulator

import "time"

// HTTP status code constants.
const (
	StatusOK = 200
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	ProgressInterval     = time.Second
	PercentageMultiplier = 100
	MaxRetries           = 5
	tokenTTL             = time.Hour
)

// maxWizardSteps bounds the requests spent on one game; a log2 search
// over any realistic list fits well inside it.
const maxWizardSteps = 64
