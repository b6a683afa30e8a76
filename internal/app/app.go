package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"metric-alerts/internal/alerting"
	"metric-alerts/internal/config"
	"metric-alerts/internal/source"
	"metric-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// TabOverrides lets run-level flags replace the configured tab names.
type TabOverrides struct {
	LatestTab string
	ConfigTab string
	LogsTab   string
}

func (a *App) resolveTabs(overrides TabOverrides) (latest, configTab, logs string) {
	latest = a.Config.Sheet.LatestTab
	configTab = a.Config.Sheet.ConfigTab
	logs = a.Config.Sheet.LogsTab
	if overrides.LatestTab != "" {
		latest = overrides.LatestTab
	}
	if overrides.ConfigTab != "" {
		configTab = overrides.ConfigTab
	}
	if overrides.LogsTab != "" {
		logs = overrides.LogsTab
	}
	return latest, configTab, logs
}

func (a *App) newRowSource(ctx context.Context, overrides TabOverrides) (source.RowSource, error) {
	if a.Config.Source.Driver == "csv" {
		return source.NewCSVSource(source.CSVOptions{
			LatestPath: a.Config.Source.LatestCSV,
			ConfigPath: a.Config.Source.ConfigCSV,
		}, a.Logger), nil
	}

	latest, configTab, _ := a.resolveTabs(overrides)
	return source.NewSheetSource(ctx, source.SheetOptions{
		SpreadsheetID:   a.Config.Sheet.SpreadsheetID,
		CredentialsFile: a.Config.Sheet.CredentialsFile,
		LatestTab:       latest,
		ConfigTab:       configTab,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	return alerting.NewEmailNotifier(alerting.EmailOptions{
		Host:       a.Config.Email.Host,
		Port:       a.Config.Email.Port,
		Username:   a.Config.Email.Username,
		Password:   a.Config.Email.Password,
		SenderName: a.Config.Email.SenderName,
		Timeout:    a.Config.Email.RequestTimeout,
	}, a.Logger)
}

func (a *App) newAuditSink(ctx context.Context, overrides TabOverrides) (alerting.AuditSink, error) {
	// CSV 离线模式没有 Logs tab 可写。
	if !a.Config.Alerting.SheetLog || a.Config.Source.Driver == "csv" {
		return nil, nil
	}

	_, _, logs := a.resolveTabs(overrides)
	return alerting.NewSheetAuditSink(ctx, alerting.SheetAuditOptions{
		SpreadsheetID:   a.Config.Sheet.SpreadsheetID,
		CredentialsFile: a.Config.Sheet.CredentialsFile,
		LogsTab:         logs,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// RunOptions hold parameters for a single evaluation run.
type RunOptions struct {
	DryRun        bool
	NoEmail       bool
	NoSheetLog    bool
	SubjectPrefix string
	Verbose       bool
	Tabs          TabOverrides
}

// ExportOptions hold parameters for exporting evaluation history.
type ExportOptions struct {
	Metric    string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// SimulateOptions configure the simulate-alert command.
type SimulateOptions struct {
	Metric    string
	Current   float64
	Prior     float64
	Threshold float64
	Mode      string
	Direction string
	Recipient string
	DryRun    bool
}
