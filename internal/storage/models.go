package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunRecord summarises one evaluation run.
type RunRecord struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	RulesTotal   int
	Triggered    int
	NotTriggered int
	Skipped      int
	Problems     int
	Status       string
}

// EvaluationRecord persists one rule evaluation for history queries.
// ChangePct is nil for skipped evaluations.
type EvaluationRecord struct {
	ID           int64
	RunID        string
	Metric       string
	Mode         string
	Direction    string
	ThresholdPct decimal.Decimal
	ChangePct    *decimal.Decimal
	Outcome      string
	Reason       string
	CreatedAt    time.Time
}
