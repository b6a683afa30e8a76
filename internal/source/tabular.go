package source

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"metric-alerts/internal/rules"
)

// Latest tab columns.
const (
	colMetric     = "Metric"
	colMonth      = "Current Month"
	colCurrent    = "Current Value"
	colPriorMonth = "Prior Month Value"
	colPriorYear  = "Prior Year Value"
)

// Config tab columns.
const (
	colMode       = "Mode"
	colDirection  = "Direction"
	colThreshold  = "Threshold Pct"
	colRecipients = "Recipients"
	colEnabled    = "Enabled"
)

var (
	latestColumns = []string{colMetric, colMonth, colCurrent, colPriorMonth, colPriorYear}
	configColumns = []string{colMetric, colMode, colDirection, colThreshold, colRecipients, colEnabled}
)

// columnIndex maps a column name to its position in the header row.
type columnIndex map[string]int

// indexColumns resolves required column names against a header row. Header
// cells are trimmed so "Threshold Pct " still matches. Missing columns are a
// configuration error naming every absent column.
func indexColumns(header []string, required []string) (columnIndex, error) {
	idx := make(columnIndex, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required column(s): %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func (idx columnIndex) cell(row []string, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// metricRowsFromTable converts Latest tab values (header first) into metric
// rows. Blank lines are ignored; blank prior-value cells become nil baselines
// so the evaluator can skip, rather than fail, the rules that need them.
func metricRowsFromTable(values [][]string) ([]rules.MetricRow, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("latest tab is empty")
	}

	idx, err := indexColumns(values[0], latestColumns)
	if err != nil {
		return nil, fmt.Errorf("latest tab: %w", err)
	}

	out := make([]rules.MetricRow, 0, len(values)-1)
	for n, cells := range values[1:] {
		if blankRow(cells) {
			continue
		}

		name := idx.cell(cells, colMetric)
		if name == "" {
			continue
		}

		current, err := decimal.NewFromString(idx.cell(cells, colCurrent))
		if err != nil {
			return nil, fmt.Errorf("latest tab row %d (%s): parse current value: %w", n+2, name, err)
		}

		row := rules.MetricRow{
			Name:    name,
			Month:   idx.cell(cells, colMonth),
			Current: current,
		}

		if cell := idx.cell(cells, colPriorMonth); cell != "" {
			prior, err := decimal.NewFromString(cell)
			if err != nil {
				return nil, fmt.Errorf("latest tab row %d (%s): parse prior month value: %w", n+2, name, err)
			}
			row.PriorMoM = &prior
		}
		if cell := idx.cell(cells, colPriorYear); cell != "" {
			prior, err := decimal.NewFromString(cell)
			if err != nil {
				return nil, fmt.Errorf("latest tab row %d (%s): parse prior year value: %w", n+2, name, err)
			}
			row.PriorYoY = &prior
		}

		out = append(out, row)
	}
	return out, nil
}

// rulesFromTable converts Config tab values into validated rule definitions.
// Malformed rows are returned as problems next to the rules that did parse.
func rulesFromTable(values [][]string) ([]rules.RuleDefinition, []RuleProblem, error) {
	if len(values) == 0 {
		return nil, nil, fmt.Errorf("config tab is empty")
	}

	idx, err := indexColumns(values[0], configColumns)
	if err != nil {
		return nil, nil, fmt.Errorf("config tab: %w", err)
	}

	var (
		defs     []rules.RuleDefinition
		problems []RuleProblem
	)
	for n, cells := range values[1:] {
		if blankRow(cells) {
			continue
		}

		rowNum := n + 2
		def, err := ruleFromRow(idx, cells, rowNum)
		if err != nil {
			problems = append(problems, RuleProblem{Row: rowNum, Err: err})
			continue
		}
		defs = append(defs, def)
	}
	return defs, problems, nil
}

func ruleFromRow(idx columnIndex, cells []string, rowNum int) (rules.RuleDefinition, error) {
	metric := idx.cell(cells, colMetric)
	if metric == "" {
		return rules.RuleDefinition{}, fmt.Errorf("empty metric name")
	}

	mode, err := rules.ParseMode(idx.cell(cells, colMode))
	if err != nil {
		return rules.RuleDefinition{}, err
	}

	direction, err := rules.ParseDirection(idx.cell(cells, colDirection))
	if err != nil {
		return rules.RuleDefinition{}, err
	}

	threshold, err := parsePercentCell(idx.cell(cells, colThreshold))
	if err != nil {
		return rules.RuleDefinition{}, fmt.Errorf("parse threshold: %w", err)
	}
	if threshold.IsNegative() {
		return rules.RuleDefinition{}, fmt.Errorf("threshold must not be negative, got %s", threshold)
	}

	enabled := parseBoolCell(idx.cell(cells, colEnabled))
	recipients := parseRecipients(idx.cell(cells, colRecipients))
	if enabled && len(recipients) == 0 {
		return rules.RuleDefinition{}, fmt.Errorf("enabled rule has no recipients")
	}

	return rules.RuleDefinition{
		Metric:       metric,
		Mode:         mode,
		Direction:    direction,
		ThresholdPct: threshold,
		Recipients:   recipients,
		Enabled:      enabled,
		SourceRow:    rowNum,
	}, nil
}
