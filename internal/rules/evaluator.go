package rules

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Evaluate computes the outcome of a single rule against the current row set.
// It is pure: no I/O, and identical inputs always produce identical results.
// Degenerate inputs (missing metric, missing baseline, zero baseline) skip the
// rule rather than erroring, so one bad row never halts a run.
func Evaluate(rows RowSet, rule RuleDefinition) EvaluationResult {
	if !rule.Enabled {
		return skipped(rule, "rule disabled")
	}

	row, ok := rows.Lookup(rule.Metric)
	if !ok {
		return skipped(rule, "metric not found")
	}

	prior := row.prior(rule.Mode)
	if prior == nil {
		return skipped(rule, "missing comparison value")
	}
	if prior.IsZero() {
		return skipped(rule, "division by zero avoided")
	}

	change := row.Current.Sub(*prior).Div(prior.Abs()).Mul(hundred)

	outcome := OutcomeNotTriggered
	if directionMatches(rule.Direction, change) && change.Abs().GreaterThanOrEqual(rule.ThresholdPct) {
		outcome = OutcomeTriggered
	}

	reason := fmt.Sprintf("change %s%% vs threshold %s%% (direction=%s)",
		change.String(), rule.ThresholdPct.String(), rule.Direction)

	return EvaluationResult{
		Rule:      rule,
		Outcome:   outcome,
		ChangePct: &change,
		Reason:    reason,
	}
}

// EvaluateAll evaluates every rule against the snapshot. The result slice has
// the same length and order as the input rules; downstream log writers key off
// that ordering.
func EvaluateAll(rows RowSet, defs []RuleDefinition) []EvaluationResult {
	results := make([]EvaluationResult, 0, len(defs))
	for _, rule := range defs {
		results = append(results, Evaluate(rows, rule))
	}
	return results
}

// directionMatches gates on the sign of the change. A change of exactly zero
// never qualifies, so a zero threshold still only fires on actual movement.
func directionMatches(dir Direction, change decimal.Decimal) bool {
	switch dir {
	case DirectionIncrease:
		return change.Sign() > 0
	case DirectionDecrease:
		return change.Sign() < 0
	case DirectionEither:
		return change.Sign() != 0
	default:
		return false
	}
}

func skipped(rule RuleDefinition, reason string) EvaluationResult {
	return EvaluationResult{Rule: rule, Outcome: OutcomeSkipped, Reason: reason}
}
