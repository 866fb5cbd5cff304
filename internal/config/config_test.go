package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("RPA_CONFIG", "")
	t.Setenv("RPA_DATA_ROOT", "")
	t.Setenv("RPA_EXPORT_DIR", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Ledger.Backend != LedgerCSV || cfg.Ledger.Dir != filepath.Join("temp_downloads", "ledger") {
		t.Fatalf("unexpected ledger %+v", cfg.Ledger)
	}
	if got := cfg.ExportDirFor("enel"); got != filepath.Join("temp_downloads", "enel", "csv") {
		t.Fatalf("export dir = %q", got)
	}
	if cfg.MaxLoginAttempts != 5 || cfg.LoginRetryDelay != 5*time.Second || cfg.DocumentTimeout != 45*time.Second {
		t.Fatalf("unexpected retry settings %+v", cfg)
	}
	if cfg.Recognition.Model != "gpt-4o" || cfg.Recognition.APIKey != "" {
		t.Fatalf("unexpected recognition %+v", cfg.Recognition)
	}
}

func TestLoadYAMLAndOverrides(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	yamlPath := filepath.Join(dir, "rpa.yaml")
	content := `
data_root: /srv/rpa
ledger:
  backend: sqlite
  dsn: file:ledger.db
workers: 3
login_retry_delay: 2s
aggregates:
  enel:
    other_charges: [importe_alquiler_equipos]
    reactive: []
recognition:
  rate_per_minute: 10
  prompts:
    endesa: prompts/endesa.txt
    enel: prompts/enel.txt
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("RPA_CONFIG", yamlPath)
	t.Setenv("RPA_WORKERS", "4")
	t.Setenv("RPA_REPROCESS", "true")
	t.Setenv("RPA_PROMPT_ENEL_PATH", "/etc/rpa/enel.txt")
	t.Setenv("RPA_PROMPT_ENDESA_PATH", "")
	t.Setenv("RPA_EXPORT_DIR", "")
	t.Setenv("OPENAI_API_KEY", "")
	os.Unsetenv("OPENAI_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Ledger.Backend != LedgerSQLite || cfg.Ledger.DSN != "file:ledger.db" {
		t.Fatalf("unexpected ledger %+v", cfg.Ledger)
	}
	if cfg.Workers != 4 || !cfg.Reprocess {
		t.Fatalf("env overrides not applied: workers=%d reprocess=%v", cfg.Workers, cfg.Reprocess)
	}
	if cfg.LoginRetryDelay != 2*time.Second {
		t.Fatalf("login retry delay = %v", cfg.LoginRetryDelay)
	}
	if got := cfg.ExportDirFor("endesa"); got != filepath.Join("/srv/rpa", "endesa", "csv") {
		t.Fatalf("export dir not derived from data_root: %q", got)
	}
	if cfg.Recognition.Prompts.Endesa != "prompts/endesa.txt" || cfg.Recognition.Prompts.Enel != "/etc/rpa/enel.txt" {
		t.Fatalf("unexpected prompts %+v", cfg.Recognition.Prompts)
	}
	if len(cfg.Aggregates.Enel.EnelOtherCharges) != 1 {
		t.Fatalf("aggregates not decoded: %+v", cfg.Aggregates)
	}
	if cfg.Recognition.APIKey != "from-dotenv" || cfg.Recognition.RatePerMinute != 10 {
		t.Fatalf("unexpected recognition %+v", cfg.Recognition)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		DataRoot:         "x",
		Ledger:           LedgerConfig{Backend: LedgerCSV, Dir: "x"},
		Workers:          1,
		MaxLoginAttempts: 1,
		DocumentTimeout:  time.Second,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	cases := map[string]func(*Config){
		"unknown backend": func(c *Config) { c.Ledger.Backend = "redis" },
		"postgres dsn":    func(c *Config) { c.Ledger.Backend = LedgerPostgres },
		"workers":         func(c *Config) { c.Workers = 0 },
		"timeout":         func(c *Config) { c.DocumentTimeout = 0 },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestExportDirOverride(t *testing.T) {
	cfg := Config{DataRoot: "root", ExportDir: "out"}
	if got := cfg.ExportDirFor("endesa"); got != "out" {
		t.Fatalf("export dir = %q", got)
	}
}
