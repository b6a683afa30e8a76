package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"metric-alerts/internal/rules"
)

// CSVOptions point at local exports of the Latest and Config tabs.
type CSVOptions struct {
	LatestPath string
	ConfigPath string
}

// CSVSource reads the snapshot from two CSV files sharing the spreadsheet
// schema. Used for offline runs and tests.
type CSVSource struct {
	opts   CSVOptions
	logger zerolog.Logger
}

// NewCSVSource constructs a CSV-backed row source.
func NewCSVSource(opts CSVOptions, logger zerolog.Logger) *CSVSource {
	return &CSVSource{opts: opts, logger: logger.With().Str("component", "csv_source").Logger()}
}

// FetchMetricRows reads the Latest CSV.
func (s *CSVSource) FetchMetricRows(ctx context.Context) ([]rules.MetricRow, error) {
	values, err := readCSV(ctx, s.opts.LatestPath)
	if err != nil {
		return nil, err
	}
	rowsOut, err := metricRowsFromTable(values)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int("rows", len(rowsOut)).Str("path", s.opts.LatestPath).Msg("loaded metric rows")
	return rowsOut, nil
}

// FetchRuleDefinitions reads the Config CSV.
func (s *CSVSource) FetchRuleDefinitions(ctx context.Context) ([]rules.RuleDefinition, []RuleProblem, error) {
	values, err := readCSV(ctx, s.opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	defs, problems, err := rulesFromTable(values)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Debug().Int("rules", len(defs)).Int("problems", len(problems)).Msg("loaded rule definitions")
	return defs, problems, nil
}

func readCSV(ctx context.Context, path string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("csv path not configured")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

var _ RowSource = (*CSVSource)(nil)
