package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"metric-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Source    SourceConfig    `mapstructure:"source"`
	Sheet     SheetConfig     `mapstructure:"sheet"`
	Email     EmailConfig     `mapstructure:"email"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for run history.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs watch-mode cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToInterval bool          `mapstructure:"align_to_interval"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// SourceConfig selects where the snapshot comes from.
type SourceConfig struct {
	Driver    string `mapstructure:"driver"`
	LatestCSV string `mapstructure:"latest_csv"`
	ConfigCSV string `mapstructure:"config_csv"`
}

// SheetConfig covers Google Sheets access.
type SheetConfig struct {
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	LatestTab       string `mapstructure:"latest_tab"`
	ConfigTab       string `mapstructure:"config_tab"`
	LogsTab         string `mapstructure:"logs_tab"`
}

// EmailConfig 描述 SMTP 告警参数。
type EmailConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	SenderName     string        `mapstructure:"sender_name"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AlertingConfig defines alert dispatch behaviour.
type AlertingConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
	SheetLog      bool   `mapstructure:"sheet_log"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("METRICALERTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "metricalerts")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.align_to_interval", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x6d657472))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("source.driver", "sheet")

	v.SetDefault("sheet.credentials_file", "metric_alerts_service_account.json")
	v.SetDefault("sheet.latest_tab", "Latest")
	v.SetDefault("sheet.config_tab", "Config")
	v.SetDefault("sheet.logs_tab", "Logs")

	v.SetDefault("email.port", 587)
	v.SetDefault("email.sender_name", "Metrics Bot")
	v.SetDefault("email.request_timeout", "30s")

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.subject_prefix", "[Metric Alert]")
	v.SetDefault("alerting.sheet_log", true)

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Source.Driver {
	case "sheet":
		if c.Sheet.SpreadsheetID == "" {
			return fmt.Errorf("sheet.spreadsheet_id 必须配置")
		}
	case "csv":
		if c.Source.LatestCSV == "" || c.Source.ConfigCSV == "" {
			return fmt.Errorf("source.latest_csv and source.config_csv are required for the csv driver")
		}
	default:
		return fmt.Errorf("source.driver must be \"sheet\" or \"csv\", got %q", c.Source.Driver)
	}

	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}

	if c.Alerting.Enabled {
		if c.Email.Host == "" {
			return fmt.Errorf("email.host 必须配置")
		}
		if c.Email.Port <= 0 {
			return fmt.Errorf("email.port must be greater than zero")
		}
		if c.Email.Username == "" {
			return fmt.Errorf("email.username 必须配置")
		}
	}

	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
