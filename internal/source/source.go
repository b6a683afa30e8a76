// Package source reads metric snapshots and rule definitions from a tabular
// store with named columns. Column positions are resolved once from the header
// row; schema drift fails the fetch instead of silently misreading cells.
package source

import (
	"context"
	"fmt"

	"metric-alerts/internal/rules"
)

// RowSource provides the snapshot one run evaluates. Both fetches read the
// store once; nothing is updated mid-run.
type RowSource interface {
	FetchMetricRows(ctx context.Context) ([]rules.MetricRow, error)
	FetchRuleDefinitions(ctx context.Context) ([]rules.RuleDefinition, []RuleProblem, error)
}

// RuleProblem reports one malformed rule row. Problems are surfaced alongside
// the valid rules; a bad row never aborts the batch.
type RuleProblem struct {
	Row int
	Err error
}

func (p RuleProblem) Error() string {
	return fmt.Sprintf("config row %d: %v", p.Row, p.Err)
}
