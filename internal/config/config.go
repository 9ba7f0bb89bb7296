// Package config provides the isobench configuration: defaults, YAML or
// JSON files, .env files, ISOBENCH_* environment variables and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/internal/storage"
	"github.com/isobench/isobench/internal/store"
	"github.com/isobench/isobench/pkg/types"
)

// Limits inherited from the experiment scripts.
const (
	MaxRuns    = 100
	MaxSwaps   = 10000
	MaxThreads = 60
	MaxWrites  = 1000000
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "ISOBENCH_"

// Config holds the configuration of every isobench command.
type Config struct {
	// DataDir is the base directory for databases, tables and results
	DataDir string `json:"data_dir" yaml:"data_dir"`

	Store    StoreConfig    `json:"store" yaml:"store"`
	Generate GenerateConfig `json:"generate" yaml:"generate"`
	Swap     SwapConfig     `json:"swap" yaml:"swap"`
	Writes   WritesConfig   `json:"writes" yaml:"writes"`
	Reads    ReadsConfig    `json:"reads" yaml:"reads"`
	Results  ResultsConfig  `json:"results" yaml:"results"`
	Status   StatusConfig   `json:"status" yaml:"status"`
}

// StoreConfig describes the database under test.
type StoreConfig struct {
	// Driver is one of sqlite3, sqlite, postgres, pgx, mysql
	Driver string `json:"driver" yaml:"driver"`

	// DSN, when set, is used as is; otherwise it is built from the fields below
	DSN string `json:"dsn" yaml:"dsn"`

	Host     string            `json:"host" yaml:"host"`
	Port     int               `json:"port" yaml:"port"`
	Database string            `json:"database" yaml:"database"`
	User     string            `json:"user" yaml:"user"`
	Password string            `json:"password" yaml:"password"`
	Params   map[string]string `json:"params" yaml:"params"`

	// Table holds the swap accounts
	Table string `json:"table" yaml:"table"`

	MaxOpenConns int           `json:"max_open_conns" yaml:"max_open_conns"`
	PingTimeout  time.Duration `json:"ping_timeout" yaml:"ping_timeout"`
}

// GenerateConfig controls data generation.
type GenerateConfig struct {
	// Seed makes generated data reproducible; 0 draws a random seed
	Seed uint64 `json:"seed" yaml:"seed"`

	SpecFile  string `json:"specfile" yaml:"specfile"`
	NumKeys   int    `json:"numkeys" yaml:"numkeys"`
	NumTuples int    `json:"numtuples" yaml:"numtuples"`

	// Output is the table file; a .sz suffix compresses it
	Output string `json:"output" yaml:"output"`
}

// SwapConfig configures the swap experiment and the accounts it uses.
type SwapConfig struct {
	Runs      int    `json:"runs" yaml:"runs"`
	Swaps     int    `json:"swaps" yaml:"swaps"`
	Threads   int    `json:"threads" yaml:"threads"`
	Isolation string `json:"isolation" yaml:"isolation"`
	Low       int64  `json:"low" yaml:"low"`
	High      int64  `json:"high" yaml:"high"`

	// BalanceStep seeds account id with balance id*BalanceStep
	BalanceStep int64 `json:"balance_step" yaml:"balance_step"`

	ReadDelay     time.Duration `json:"read_delay" yaml:"read_delay"`
	ObserverDelay time.Duration `json:"observer_delay" yaml:"observer_delay"`

	// Statement files; empty means the generated default for the driver
	ReadFile  string `json:"read_file" yaml:"read_file"`
	WriteFile string `json:"write_file" yaml:"write_file"`
	SumFile   string `json:"sum_file" yaml:"sum_file"`

	Output string `json:"output" yaml:"output"`
}

// WritesConfig configures the write experiment.
type WritesConfig struct {
	Runs       int    `json:"runs" yaml:"runs"`
	Threads    int    `json:"threads" yaml:"threads"`
	Isolation  string `json:"isolation" yaml:"isolation"`
	Mode       string `json:"mode" yaml:"mode"`
	Trans      string `json:"trans" yaml:"trans"`
	N          int    `json:"n" yaml:"n"`
	NumTuples  int    `json:"numtuples" yaml:"numtuples"`
	SpecFile   string `json:"specfile" yaml:"specfile"`
	NumKeys    int    `json:"numkeys" yaml:"numkeys"`
	Attributes []int  `json:"attributes" yaml:"attributes"`

	// TableLock runs LockFile, or the driver's lock statement, at each transaction start
	TableLock bool   `json:"table_lock" yaml:"table_lock"`
	LockFile  string `json:"lock_file" yaml:"lock_file"`

	StatementFile string `json:"statement_file" yaml:"statement_file"`
	Output        string `json:"output" yaml:"output"`
}

// ReadsConfig configures the read experiment.
type ReadsConfig struct {
	Runs       int    `json:"runs" yaml:"runs"`
	Queries    int    `json:"queries" yaml:"queries"`
	Isolation  string `json:"isolation" yaml:"isolation"`
	SpecFile   string `json:"specfile" yaml:"specfile"`
	NumKeys    int    `json:"numkeys" yaml:"numkeys"`
	NumTuples  int    `json:"numtuples" yaml:"numtuples"`
	Attributes []int  `json:"attributes" yaml:"attributes"`
	QueryFile  string `json:"query_file" yaml:"query_file"`
	Output     string `json:"output" yaml:"output"`
}

// ResultsConfig controls publication of result directories.
type ResultsConfig struct {
	// Publish uploads each result directory after the experiment
	Publish bool `json:"publish" yaml:"publish"`

	// Prefix is prepended to published object paths
	Prefix string `json:"prefix" yaml:"prefix"`

	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	Bucket       string `json:"bucket" yaml:"bucket"`
	Region       string `json:"region" yaml:"region"`
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	UsePathStyle bool   `json:"use_path_style" yaml:"use_path_style"`
}

// StatusConfig controls the gRPC health endpoint.
type StatusConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

// DefaultConfig returns a configuration that runs against a local SQLite file.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/isobench",
		Store: StoreConfig{
			Driver:       store.DriverSQLite3,
			Table:        store.DefaultAccountsTable,
			MaxOpenConns: 0,
			PingTimeout:  10 * time.Second,
		},
		Generate: GenerateConfig{
			NumKeys:   1,
			NumTuples: 1000,
		},
		Swap: SwapConfig{
			Runs:        1,
			Swaps:       100,
			Threads:     4,
			Isolation:   string(types.IsolationRR),
			Low:         1,
			High:        1000,
			BalanceStep: 1,
		},
		Writes: WritesConfig{
			Runs:      1,
			Threads:   1,
			Isolation: string(types.IsolationRR),
			Mode:      string(types.WriteInsertN),
			Trans:     string(types.TransOne),
			N:         1000,
			NumTuples: 1000000,
			NumKeys:   1,
		},
		Reads: ReadsConfig{
			Runs:      1,
			Queries:   1,
			Isolation: string(types.IsolationCS),
			NumKeys:   1,
			NumTuples: 1000,
		},
		Results: ResultsConfig{
			Type: storage.BackendLocal,
		},
		Status: StatusConfig{
			Addr: ":9090",
		},
	}
}

// Resolve fills paths derived from DataDir and normalizes dependent settings.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/isobench"
	}
	if c.Store.Table == "" {
		c.Store.Table = store.DefaultAccountsTable
	}
	if c.Store.DSN == "" && isSQLite(c.Store.Driver) && c.Store.Database == "" {
		c.Store.Database = filepath.Join(c.DataDir, "isobench.db")
	}
	if c.Generate.Output == "" {
		c.Generate.Output = filepath.Join(c.DataDir, "table.txt")
	}
	if c.Swap.Output == "" {
		c.Swap.Output = filepath.Join(c.DataDir, "results", "swap")
	}
	if c.Writes.Output == "" {
		c.Writes.Output = filepath.Join(c.DataDir, "results", "writes")
	}
	if c.Reads.Output == "" {
		c.Reads.Output = filepath.Join(c.DataDir, "results", "reads")
	}
	if c.Results.Path == "" {
		c.Results.Path = filepath.Join(c.DataDir, "published")
	}

	// update1 is one statement, so it is always one transaction
	if c.Writes.Mode == string(types.WriteUpdate1) {
		c.Writes.Trans = string(types.TransOne)
	}
}

// StoreDSN returns the configured DSN or builds one from the connection fields.
func (c *Config) StoreDSN() (string, error) {
	if c.Store.DSN != "" {
		return c.Store.DSN, nil
	}
	dsn, err := store.BuildDSN(c.Store.Driver, store.ConnParams{
		Host:     c.Store.Host,
		Port:     c.Store.Port,
		Database: c.Store.Database,
		User:     c.Store.User,
		Password: c.Store.Password,
		Params:   c.Store.Params,
	})
	if err != nil {
		return "", errors.InvalidSpec("store: %v", err)
	}
	return dsn, nil
}

// StorageConfig returns the artifact storage settings for results publication.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Backend:      c.Results.Type,
		Path:         c.Results.Path,
		Bucket:       c.Results.S3.Bucket,
		Region:       c.Results.S3.Region,
		Endpoint:     c.Results.S3.Endpoint,
		UsePathStyle: c.Results.S3.UsePathStyle,
	}
}

func isSQLite(driver string) bool {
	return driver == store.DriverSQLite3 || driver == store.DriverSQLite
}

// LoadFromFile loads configuration from a YAML or JSON file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCategoryConfig, errors.CodeInvalidSpec, "failed to read config file", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCategoryConfig, errors.CodeInvalidSpec, "failed to parse YAML config", err)
		}
	case ".json":
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCategoryConfig, errors.CodeInvalidSpec, "failed to parse JSON config", err)
		}
	default:
		return nil, errors.InvalidSpec("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadEnvFile loads variables from a .env file into the process environment.
// Variables already set win. A missing file is ignored unless required.
func LoadEnvFile(path string, required bool) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && !required {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrap(errors.ErrCategoryConfig, errors.CodeInvalidSpec, "failed to load env file "+path, err)
	}
	return nil
}

// LoadFromEnv overrides cfg with ISOBENCH_* environment variables.
func LoadFromEnv(cfg *Config) {
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	if v := env("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Store configuration
	if v := env("DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := env("DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := env("DB_HOST"); v != "" {
		cfg.Store.Host = v
	}
	if v := env("DB_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Store.Port)
	}
	if v := env("DB_NAME"); v != "" {
		cfg.Store.Database = v
	}
	if v := env("DB_USER"); v != "" {
		cfg.Store.User = v
	}
	if v := env("DB_PASSWORD"); v != "" {
		cfg.Store.Password = v
	}
	if v := env("TABLE"); v != "" {
		cfg.Store.Table = v
	}
	if v := env("MAX_OPEN_CONNS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Store.MaxOpenConns)
	}

	// Generation
	if v := env("SEED"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Generate.Seed)
	}

	// Swap experiment
	if v := env("SWAP_ISOLATION"); v != "" {
		cfg.Swap.Isolation = v
	}
	if v := env("SWAP_READ_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Swap.ReadDelay = d
		}
	}

	// Results publication
	if v := env("RESULTS_PUBLISH"); v != "" {
		cfg.Results.Publish = v == "true" || v == "1"
	}
	if v := env("RESULTS_PREFIX"); v != "" {
		cfg.Results.Prefix = v
	}
	if v := env("STORAGE_TYPE"); v != "" {
		cfg.Results.Type = v
	}
	if v := env("STORAGE_PATH"); v != "" {
		cfg.Results.Path = v
	}
	if v := env("S3_BUCKET"); v != "" {
		cfg.Results.S3.Bucket = v
	}
	if v := env("S3_REGION"); v != "" {
		cfg.Results.S3.Region = v
	}
	if v := env("S3_ENDPOINT"); v != "" {
		cfg.Results.S3.Endpoint = v
	}

	// Status endpoint
	if v := env("STATUS_ADDR"); v != "" {
		cfg.Status.Addr = v
		cfg.Status.Enabled = true
	}
}

// EnsureDirectories creates the data directory and every output directory.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		filepath.Dir(c.Generate.Output),
		c.Swap.Output,
		c.Writes.Output,
		c.Reads.Output,
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(errors.ErrCategoryConfig, errors.CodeInvalidSpec, "failed to create directory "+dir, err)
		}
	}
	return nil
}
