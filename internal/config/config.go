package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/application"
	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/infrastructure/extraction"
)

// Ledger backends.
const (
	LedgerCSV      = "csv"
	LedgerPostgres = "postgres"
	LedgerSQLite   = "sqlite"
)

// LedgerConfig selects the processed-invoice store.
type LedgerConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	DSN     string `yaml:"dsn"`
}

// AggregatesConfig holds configurable aggregate components per provider.
type AggregatesConfig struct {
	Enel application.AggregateConfig `yaml:"enel"`
}

// MetricsConfig configures the metrics textfile.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the process configuration.
type Config struct {
	DataRoot         string                       `yaml:"data_root"`
	Ledger           LedgerConfig                 `yaml:"ledger"`
	ExportDir        string                       `yaml:"export_dir"`
	WorkbookPath     string                       `yaml:"workbook_path"`
	ReportDir        string                       `yaml:"report_dir"`
	Reprocess        bool                         `yaml:"reprocess"`
	Workers          int                          `yaml:"workers"`
	MaxLoginAttempts int                          `yaml:"max_login_attempts"`
	LoginRetryDelay  time.Duration                `yaml:"login_retry_delay"`
	DocumentTimeout  time.Duration                `yaml:"document_timeout"`
	Recognition      extraction.RecognitionConfig `yaml:"recognition"`
	Aggregates       AggregatesConfig             `yaml:"aggregates"`
	Metrics          MetricsConfig                `yaml:"metrics"`
	WebhookURL       string                       `yaml:"webhook_url"`
	Log              LogConfig                    `yaml:"log"`
}

// Load builds defaults, reads .env when present and the YAML file named by
// RPA_CONFIG, then applies environment overrides.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: .env: %w", err)
	}

	cfg := Config{
		DataRoot:         filepath.FromSlash("temp_downloads"),
		Ledger:           LedgerConfig{Backend: LedgerCSV},
		Workers:          1,
		MaxLoginAttempts: application.DefaultMaxLoginAttempts,
		LoginRetryDelay:  application.DefaultLoginRetryDelay,
		DocumentTimeout:  application.DefaultDocumentTimeout,
		Recognition: extraction.RecognitionConfig{
			Model:         "gpt-4o",
			RatePerMinute: 30,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}

	if path := os.Getenv("RPA_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.deriveDirs()
	return cfg, cfg.Validate()
}

// deriveDirs places unset output locations under data_root.
func (c *Config) deriveDirs() {
	if c.Ledger.Dir == "" {
		c.Ledger.Dir = filepath.Join(c.DataRoot, "ledger")
	}
	if c.WorkbookPath == "" {
		c.WorkbookPath = filepath.Join(c.DataRoot, "facturas.xlsx")
	}
	if c.ReportDir == "" {
		c.ReportDir = filepath.Join(c.DataRoot, "reports")
	}
}

func (c *Config) applyEnv() {
	c.DataRoot = getenvDefault("RPA_DATA_ROOT", c.DataRoot)
	c.Ledger.Backend = getenvDefault("RPA_LEDGER_BACKEND", c.Ledger.Backend)
	c.Ledger.Dir = getenvDefault("RPA_LEDGER_DIR", c.Ledger.Dir)
	c.Ledger.DSN = getenvDefault("RPA_LEDGER_DSN", c.Ledger.DSN)
	c.ExportDir = getenvDefault("RPA_EXPORT_DIR", c.ExportDir)
	c.WorkbookPath = getenvDefault("RPA_WORKBOOK_PATH", c.WorkbookPath)
	c.ReportDir = getenvDefault("RPA_REPORT_DIR", c.ReportDir)
	c.Reprocess = getenvBool("RPA_REPROCESS", c.Reprocess)
	c.Workers = getenvIntDefault("RPA_WORKERS", c.Workers)
	c.MaxLoginAttempts = getenvIntDefault("RPA_MAX_LOGIN_ATTEMPTS", c.MaxLoginAttempts)
	c.LoginRetryDelay = getenvDuration("RPA_LOGIN_RETRY_DELAY", c.LoginRetryDelay)
	c.DocumentTimeout = getenvDuration("RPA_DOCUMENT_TIMEOUT", c.DocumentTimeout)
	c.Recognition.APIKey = getenvDefault("OPENAI_API_KEY", c.Recognition.APIKey)
	c.Recognition.Model = getenvDefault("RPA_RECOGNITION_MODEL", c.Recognition.Model)
	c.Recognition.BaseURL = getenvDefault("RPA_RECOGNITION_BASE_URL", c.Recognition.BaseURL)
	c.Recognition.RatePerMinute = getenvIntDefault("RPA_RECOGNITION_RATE_PER_MINUTE", c.Recognition.RatePerMinute)
	c.Recognition.Prompts.Endesa = getenvDefault("RPA_PROMPT_ENDESA_PATH", c.Recognition.Prompts.Endesa)
	c.Recognition.Prompts.Enel = getenvDefault("RPA_PROMPT_ENEL_PATH", c.Recognition.Prompts.Enel)
	c.Metrics.Textfile = getenvDefault("RPA_METRICS_TEXTFILE", c.Metrics.Textfile)
	c.WebhookURL = getenvDefault("RPA_WEBHOOK_URL", c.WebhookURL)
	c.Log.Level = getenvDefault("RPA_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getenvDefault("RPA_LOG_FORMAT", c.Log.Format)
}

// Validate reports settings the run cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DataRoot) == "" {
		return errors.New("config: data_root required")
	}
	switch c.Ledger.Backend {
	case LedgerCSV:
		if c.Ledger.Dir == "" {
			return errors.New("config: ledger.dir required for the csv backend")
		}
	case LedgerPostgres, LedgerSQLite:
		if c.Ledger.DSN == "" {
			return fmt.Errorf("config: ledger.dsn required for the %s backend", c.Ledger.Backend)
		}
	default:
		return fmt.Errorf("config: unknown ledger backend %q", c.Ledger.Backend)
	}
	if c.Workers < 1 {
		return errors.New("config: workers must be at least 1")
	}
	if c.MaxLoginAttempts < 1 {
		return errors.New("config: max_login_attempts must be at least 1")
	}
	if c.DocumentTimeout <= 0 {
		return errors.New("config: document_timeout must be positive")
	}
	return nil
}

// ProviderDir returns <data_root>/<provider>/<kind>, the download layout.
func (c Config) ProviderDir(provider, kind string) string {
	return filepath.Join(c.DataRoot, provider, kind)
}

// ExportDirFor returns export_dir when set, else the provider's csv folder
// that the clean command sweeps.
func (c Config) ExportDirFor(provider string) string {
	if c.ExportDir != "" {
		return c.ExportDir
	}
	return c.ProviderDir(provider, "csv")
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
