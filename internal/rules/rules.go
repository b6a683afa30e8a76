package rules

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Mode selects which prior value a rule compares against.
type Mode string

const (
	// ModeMoM compares against the prior month value.
	ModeMoM Mode = "mom"
	// ModeYoY compares against the same month one year earlier.
	ModeYoY Mode = "yoy"
)

// ParseMode normalises a spreadsheet cell into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mom", "m/m", "month-over-month":
		return ModeMoM, nil
	case "yoy", "y/y", "year-over-year":
		return ModeYoY, nil
	default:
		return "", fmt.Errorf("unknown comparison mode %q", s)
	}
}

// Direction 约束触发告警的变化方向。
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
	DirectionEither   Direction = "either"
)

// ParseDirection normalises a spreadsheet cell into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "increase", "up":
		return DirectionIncrease, nil
	case "decrease", "down":
		return DirectionDecrease, nil
	case "either", "abs", "any":
		return DirectionEither, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// Outcome is the result class of one rule evaluation.
type Outcome string

const (
	OutcomeTriggered    Outcome = "triggered"
	OutcomeNotTriggered Outcome = "not_triggered"
	OutcomeSkipped      Outcome = "skipped"
)

// MetricRow is one row of the Latest tab: the current value of a named metric
// plus its comparison baselines. A nil prior value means the baseline is not
// available yet and rules needing it are skipped.
type MetricRow struct {
	Name     string
	Month    string
	Current  decimal.Decimal
	PriorMoM *decimal.Decimal
	PriorYoY *decimal.Decimal
}

func (r MetricRow) prior(mode Mode) *decimal.Decimal {
	if mode == ModeYoY {
		return r.PriorYoY
	}
	return r.PriorMoM
}

// RuleDefinition is one configured alert rule from the Config tab.
type RuleDefinition struct {
	Metric       string
	Mode         Mode
	Direction    Direction
	ThresholdPct decimal.Decimal
	Recipients   []string
	Enabled      bool
	// SourceRow is the 1-based spreadsheet row the rule was read from,
	// carried for audit output only.
	SourceRow int
}

// EvaluationResult pairs a rule with its computed outcome. ChangePct is nil
// for skipped evaluations.
type EvaluationResult struct {
	Rule      RuleDefinition
	Outcome   Outcome
	ChangePct *decimal.Decimal
	Reason    string
}

// Triggered reports whether the evaluation fired.
func (r EvaluationResult) Triggered() bool {
	return r.Outcome == OutcomeTriggered
}

// RowSet indexes metric rows by name for rule lookup.
type RowSet struct {
	byName map[string]MetricRow
}

// NewRowSet builds a RowSet. Later duplicates of a metric name win, matching
// how a spreadsheet reader would overwrite on re-read.
func NewRowSet(rows []MetricRow) RowSet {
	byName := make(map[string]MetricRow, len(rows))
	for _, row := range rows {
		if row.Name == "" {
			continue
		}
		byName[row.Name] = row
	}
	return RowSet{byName: byName}
}

// Lookup returns the row for a metric name.
func (s RowSet) Lookup(name string) (MetricRow, bool) {
	row, ok := s.byName[name]
	return row, ok
}

// Len returns the number of indexed rows.
func (s RowSet) Len() int {
	return len(s.byName)
}
