package models

import "time"

// Experiment statuses. A failed dispatch is modeled as a completed experiment
// with a nil pnl, not a distinct state.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
)

// Trade directions carried on discovered patterns.
const (
	TradeLong  = "long"
	TradeShort = "short"
)

// LearningPattern is a discovered pattern produced by the pattern-discovery
// collaborator. Read-only input to the experiment lifecycle.
type LearningPattern struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Category         string  `json:"category"`
	Confidence       float64 `json:"confidence"`
	ObservationCount int     `json:"observation_count"`
	TriggerAsset     string  `json:"trigger_asset"`
	AffectedAsset    string  `json:"affected_asset"`
	TradeDirection   string  `json:"trade_direction"`
}

// ExperimentResult links an experiment to its simulated trade. PnL stays nil
// until the trade closes; it also stays nil forever for failed dispatches.
type ExperimentResult struct {
	PnL     *float64 `json:"pnl"`
	TradeID string   `json:"trade_id"`
}

// Experiment is an approved LearningPattern being tracked through a simulated
// trade. Result is set only once the experiment leaves pending.
type Experiment struct {
	LearningPattern
	Status     string            `json:"status"`
	Result     *ExperimentResult `json:"result,omitempty"`
	ApprovedAt time.Time         `json:"approved_at"`
}

// Log entry classifications.
const (
	LogSuccess = "success"
	LogFailure = "failure"
	LogInfo    = "info"
)

// LogEntry is one line of the append-only activity log. ExperimentID is empty
// for entries not tied to a single experiment.
type LogEntry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Message      string    `json:"message"`
	Type         string    `json:"type"`
	ExperimentID string    `json:"experiment_id,omitempty"`
}
