package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/internal/storage"
	"github.com/isobench/isobench/internal/store"
	"github.com/isobench/isobench/pkg/types"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfig_IsValidForSwap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()

	if err := cfg.ValidateStore(); err != nil {
		t.Errorf("ValidateStore: %v", err)
	}
	if err := cfg.ValidateSwap(); err != nil {
		t.Errorf("ValidateSwap: %v", err)
	}
	if err := cfg.ValidateResults(); err != nil {
		t.Errorf("ValidateResults: %v", err)
	}
	if cfg.Store.Database != filepath.Join(cfg.DataDir, "isobench.db") {
		t.Errorf("unexpected database path %q", cfg.Store.Database)
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := writeConfig(t, "bench.yaml", `
data_dir: /tmp/bench
store:
  driver: postgres
  host: db
  database: bench
  user: alice
swap:
  runs: 5
  threads: 8
  isolation: CS
  read_delay: 250ms
writes:
  mode: updateN
  attributes: [2, 0]
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.DataDir != "/tmp/bench" || cfg.Store.Driver != store.DriverPostgres {
		t.Errorf("unexpected top-level values: %+v", cfg)
	}
	if cfg.Swap.Runs != 5 || cfg.Swap.Threads != 8 || cfg.Swap.Isolation != "CS" {
		t.Errorf("unexpected swap section: %+v", cfg.Swap)
	}
	if cfg.Swap.ReadDelay != 250*time.Millisecond {
		t.Errorf("read_delay = %v, want 250ms", cfg.Swap.ReadDelay)
	}
	if cfg.Swap.High != 1000 {
		t.Errorf("defaults should survive partial files, high = %d", cfg.Swap.High)
	}
	if len(cfg.Writes.Attributes) != 2 || cfg.Writes.Attributes[0] != 2 {
		t.Errorf("attributes = %v", cfg.Writes.Attributes)
	}

	dsn, err := cfg.StoreDSN()
	if err != nil {
		t.Fatalf("StoreDSN: %v", err)
	}
	if !strings.Contains(dsn, "host=db") || !strings.Contains(dsn, "dbname=bench") {
		t.Errorf("unexpected DSN %q", dsn)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := writeConfig(t, "bench.json", `{"swap": {"runs": 3, "low": 10, "high": 20}, "results": {"type": "s3", "s3": {"bucket": "b"}}}`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Swap.Runs != 3 || cfg.Swap.Low != 10 || cfg.Swap.High != 20 {
		t.Errorf("unexpected swap section: %+v", cfg.Swap)
	}
	if got := cfg.StorageConfig(); got.Backend != storage.BackendS3 || got.Bucket != "b" {
		t.Errorf("unexpected storage config: %+v", got)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	tests := []struct {
		name, file, content string
	}{
		{"unsupported extension", "bench.toml", "x = 1"},
		{"bad yaml", "bench.yaml", "swap: [unclosed"},
		{"bad json", "bench.json", "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.file, tt.content))
			if !errors.IsConfigError(err) {
				t.Errorf("expected a config error, got %v", err)
			}
		})
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); !errors.IsConfigError(err) {
		t.Errorf("expected a config error for a missing file, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ISOBENCH_DRIVER", "mysql")
	t.Setenv("ISOBENCH_DB_PORT", "3307")
	t.Setenv("ISOBENCH_SEED", "99")
	t.Setenv("ISOBENCH_SWAP_READ_DELAY", "1s")
	t.Setenv("ISOBENCH_RESULTS_PUBLISH", "true")
	t.Setenv("ISOBENCH_STATUS_ADDR", ":7070")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Store.Driver != store.DriverMySQL || cfg.Store.Port != 3307 {
		t.Errorf("unexpected store section: %+v", cfg.Store)
	}
	if cfg.Generate.Seed != 99 {
		t.Errorf("seed = %d, want 99", cfg.Generate.Seed)
	}
	if cfg.Swap.ReadDelay != time.Second {
		t.Errorf("read delay = %v", cfg.Swap.ReadDelay)
	}
	if !cfg.Results.Publish || !cfg.Status.Enabled || cfg.Status.Addr != ":7070" {
		t.Errorf("unexpected results/status: %+v %+v", cfg.Results, cfg.Status)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := writeConfig(t, ".env", "ISOBENCH_TEST_ENVFILE_VALUE=from-file\n")
	t.Setenv("ISOBENCH_TEST_ENVFILE_VALUE", "")
	os.Unsetenv("ISOBENCH_TEST_ENVFILE_VALUE")

	if err := LoadEnvFile(path, true); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("ISOBENCH_TEST_ENVFILE_VALUE"); got != "from-file" {
		t.Errorf("got %q, want from-file", got)
	}

	missing := filepath.Join(t.TempDir(), ".env")
	if err := LoadEnvFile(missing, false); err != nil {
		t.Errorf("optional missing file should be ignored, got %v", err)
	}
	if err := LoadEnvFile(missing, true); !errors.IsConfigError(err) {
		t.Errorf("required missing file should fail, got %v", err)
	}
}

func TestResolve_Update1ForcesSingleTransaction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Writes.Mode = string(types.WriteUpdate1)
	cfg.Writes.Trans = string(types.TransN)

	cfg.Resolve()

	if cfg.Writes.Trans != string(types.TransOne) {
		t.Errorf("trans = %q, want 1", cfg.Writes.Trans)
	}
}

func TestValidateSwap_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SwapConfig)
	}{
		{"zero runs", func(s *SwapConfig) { s.Runs = 0 }},
		{"too many runs", func(s *SwapConfig) { s.Runs = MaxRuns }},
		{"too many swaps", func(s *SwapConfig) { s.Swaps = MaxSwaps }},
		{"zero threads", func(s *SwapConfig) { s.Threads = 0 }},
		{"too many threads", func(s *SwapConfig) { s.Threads = MaxThreads + 1 }},
		{"bad isolation", func(s *SwapConfig) { s.Isolation = "SI" }},
		{"empty range", func(s *SwapConfig) { s.High = s.Low }},
		{"negative delay", func(s *SwapConfig) { s.ReadDelay = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg.Swap)
			if err := cfg.ValidateSwap(); !errors.IsConfigError(err) {
				t.Errorf("expected a config error, got %v", err)
			}
		})
	}
}

func TestValidateSwap_PoolSize(t *testing.T) {
	tests := []struct {
		maxOpen int
		valid   bool
	}{
		{0, true},
		{1, false},
		{4, false},
		{5, true},
		{20, true},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Swap.Threads = 4
		cfg.Store.MaxOpenConns = tt.maxOpen
		err := cfg.ValidateSwap()
		if tt.valid && err != nil {
			t.Errorf("max_open_conns %d: unexpected error %v", tt.maxOpen, err)
		}
		if !tt.valid && !errors.IsConfigError(err) {
			t.Errorf("max_open_conns %d: expected a config error, got %v", tt.maxOpen, err)
		}
	}

	cfg := DefaultConfig()
	cfg.Writes.Threads = 4
	cfg.Store.MaxOpenConns = 3
	err := cfg.ValidateWrites()
	if !errors.IsConfigError(err) || !strings.Contains(err.Error(), "max_open_conns") {
		t.Errorf("writes with max_open_conns 3: expected a pool size error, got %v", err)
	}
}

func TestValidateWrites(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Writes.SpecFile = "spec.txt"
		cfg.Writes.StatementFile = "insert.sql"
		return cfg
	}
	if err := valid().ValidateWrites(); err != nil {
		t.Fatalf("valid writes config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*WritesConfig)
	}{
		{"bad mode", func(w *WritesConfig) { w.Mode = "upsert" }},
		{"bad trans", func(w *WritesConfig) { w.Trans = "2" }},
		{"update1 with N", func(w *WritesConfig) { w.Mode = "update1"; w.Trans = "N" }},
		{"n too large", func(w *WritesConfig) { w.N = MaxWrites + 1 }},
		{"no statement", func(w *WritesConfig) { w.StatementFile = "" }},
		{"no spec file", func(w *WritesConfig) { w.SpecFile = "" }},
		{"updateN without attributes", func(w *WritesConfig) { w.Mode = "updateN" }},
		{"negative attribute", func(w *WritesConfig) { w.Attributes = []int{-1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg.Writes)
			if err := cfg.ValidateWrites(); !errors.IsConfigError(err) {
				t.Errorf("expected a config error, got %v", err)
			}
		})
	}

	cfg := valid()
	cfg.Writes.Mode = "update1"
	cfg.Writes.SpecFile = ""
	if err := cfg.ValidateWrites(); err != nil {
		t.Errorf("update1 needs no spec file, got %v", err)
	}
}

func TestValidateReads(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ValidateReads(); !errors.IsConfigError(err) {
		t.Errorf("missing query file should fail, got %v", err)
	}

	cfg.Reads.QueryFile = "q.sql"
	if err := cfg.ValidateReads(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.Reads.Attributes = []int{0}
	if err := cfg.ValidateReads(); !errors.IsConfigError(err) {
		t.Errorf("attributes without a spec file should fail, got %v", err)
	}
}

func TestValidateStoreAndResults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Driver = store.DriverMemory
	if err := cfg.ValidateStore(); !errors.IsConfigError(err) {
		t.Errorf("memory driver should be rejected, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.Results.Type = storage.BackendS3
	if err := cfg.ValidateResults(); !errors.IsConfigError(err) {
		t.Errorf("s3 without bucket should fail, got %v", err)
	}
	cfg.Results.Type = "gcs"
	if err := cfg.ValidateResults(); !errors.IsConfigError(err) {
		t.Errorf("unknown type should fail, got %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Resolve()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.DataDir, cfg.Swap.Output, cfg.Writes.Output, cfg.Reads.Output} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("expected %s to exist: %v", dir, err)
		}
	}
}
