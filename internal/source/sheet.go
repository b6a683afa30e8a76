package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"metric-alerts/internal/rules"
)

// SheetOptions parameterise the Google Sheets row source.
type SheetOptions struct {
	SpreadsheetID   string
	CredentialsFile string
	LatestTab       string
	ConfigTab       string
	// ClientOptions override credentials, for tests pointing at a fake API.
	ClientOptions []option.ClientOption
}

// SheetSource reads the snapshot from a Google Spreadsheet via the Sheets API.
type SheetSource struct {
	svc    *sheets.Service
	opts   SheetOptions
	logger zerolog.Logger
}

// NewSheetSource builds the Sheets API client from service-account credentials.
func NewSheetSource(ctx context.Context, opts SheetOptions, logger zerolog.Logger) (*SheetSource, error) {
	if opts.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheet.spreadsheet_id is required")
	}

	clientOpts := opts.ClientOptions
	if clientOpts == nil {
		if opts.CredentialsFile == "" {
			return nil, fmt.Errorf("sheet.credentials_file is required")
		}
		clientOpts = []option.ClientOption{
			option.WithCredentialsFile(opts.CredentialsFile),
			option.WithScopes(sheets.SpreadsheetsScope),
		}
	}

	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &SheetSource{
		svc:    svc,
		opts:   opts,
		logger: logger.With().Str("component", "sheet_source").Logger(),
	}, nil
}

// FetchMetricRows reads the Latest tab.
func (s *SheetSource) FetchMetricRows(ctx context.Context) ([]rules.MetricRow, error) {
	values, err := s.readTab(ctx, s.opts.LatestTab)
	if err != nil {
		return nil, err
	}
	rowsOut, err := metricRowsFromTable(values)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int("rows", len(rowsOut)).Str("tab", s.opts.LatestTab).Msg("loaded metric rows")
	return rowsOut, nil
}

// FetchRuleDefinitions reads the Config tab.
func (s *SheetSource) FetchRuleDefinitions(ctx context.Context) ([]rules.RuleDefinition, []RuleProblem, error) {
	values, err := s.readTab(ctx, s.opts.ConfigTab)
	if err != nil {
		return nil, nil, err
	}
	defs, problems, err := rulesFromTable(values)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Debug().Int("rules", len(defs)).Int("problems", len(problems)).Str("tab", s.opts.ConfigTab).Msg("loaded rule definitions")
	return defs, problems, nil
}

func (s *SheetSource) readTab(ctx context.Context, tab string) ([][]string, error) {
	if strings.TrimSpace(tab) == "" {
		return nil, fmt.Errorf("tab name not configured")
	}

	resp, err := s.svc.Spreadsheets.Values.Get(s.opts.SpreadsheetID, tab).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read tab %q: %w", tab, err)
	}

	values := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			cells = append(cells, fmt.Sprint(cell))
		}
		values = append(values, cells)
	}
	return values, nil
}

var _ RowSource = (*SheetSource)(nil)
