package alerting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"metric-alerts/internal/rules"
)

// AuditSink records one durable row per triggered evaluation.
type AuditSink interface {
	Record(ctx context.Context, runID string, res rules.EvaluationResult, ts time.Time) error
}

// SheetAuditOptions parameterise the Logs tab appender.
type SheetAuditOptions struct {
	SpreadsheetID   string
	CredentialsFile string
	LogsTab         string
	// ClientOptions override credentials, for tests pointing at a fake API.
	ClientOptions []option.ClientOption
}

// SheetAuditSink appends audit rows to the spreadsheet Logs tab.
type SheetAuditSink struct {
	svc    *sheets.Service
	opts   SheetAuditOptions
	logger zerolog.Logger
}

// NewSheetAuditSink builds the Sheets API client for the Logs tab.
func NewSheetAuditSink(ctx context.Context, opts SheetAuditOptions, logger zerolog.Logger) (*SheetAuditSink, error) {
	if opts.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheet.spreadsheet_id is required")
	}
	if opts.LogsTab == "" {
		return nil, fmt.Errorf("logs tab is required")
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

	return &SheetAuditSink{
		svc:    svc,
		opts:   opts,
		logger: logger.With().Str("component", "sheet_audit").Logger(),
	}, nil
}

// Record appends one row: timestamp, run id, metric, mode, direction, change,
// threshold, recipients, reason.
func (s *SheetAuditSink) Record(ctx context.Context, runID string, res rules.EvaluationResult, ts time.Time) error {
	change := ""
	if res.ChangePct != nil {
		change = res.ChangePct.StringFixed(2)
	}

	row := []interface{}{
		ts.Format(time.RFC3339),
		runID,
		res.Rule.Metric,
		string(res.Rule.Mode),
		string(res.Rule.Direction),
		change,
		res.Rule.ThresholdPct.StringFixed(2),
		strings.Join(res.Rule.Recipients, ", "),
		res.Reason,
	}

	vr := &sheets.ValueRange{Values: [][]interface{}{row}}
	_, err := s.svc.Spreadsheets.Values.
		Append(s.opts.SpreadsheetID, s.opts.LogsTab, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append log row: %w", err)
	}

	s.logger.Debug().Str("metric", res.Rule.Metric).Str("run_id", runID).Msg("audit row appended")
	return nil
}

var _ AuditSink = (*SheetAuditSink)(nil)
