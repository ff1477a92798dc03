package contract

import (
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/roy-sema/cto-tool-sub001/schema"
)

// Default values for configuration.
const (
	DefaultLookbackDays  = 30
	DefaultPrecision     = 2
	DefaultRollupWorkers = 2
	DefaultListen        = ":8080"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// DateFormat is the calendar-day representation used for bucket labels and date flags.
const DateFormat = "2006-01-02"

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// DefaultExcludes are glob patterns skipped during ingestion.
var DefaultExcludes = []string{
	"**/vendor/**",
	"**/node_modules/**",
	"**/*.min.js",
	"**/*.lock",
	"**/go.sum",
	"**/package-lock.json",
}

// Config holds the runtime configuration.
// This struct is the "final, validated" config.
type Config struct {
	Backend   schema.DatabaseBackend
	DBConnect string // Please use env var as this is plaintext

	Output     schema.OutputMode
	OutputFile string
	Precision  int
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool

	Workers       int
	RollupWorkers int

	Since         time.Time
	Until         time.Time
	Organization  string
	Repositories  []string
	IncludeDaily  bool
	Excludes      []string
	Force         bool
	Listen        string
	LogLevel      slog.Level
	LogFormat     string
	TargetVersion int
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	DBBackend     string `mapstructure:"db-backend"`
	DBConnect     string `mapstructure:"db-connect"`
	Output        string `mapstructure:"output"`
	OutputFile    string `mapstructure:"output-file"`
	Precision     int    `mapstructure:"precision"`
	Width         int    `mapstructure:"width"`
	Color         string `mapstructure:"color"`
	Workers       int    `mapstructure:"workers"`
	RollupWorkers int    `mapstructure:"rollup-workers"`
	LogLevel      string `mapstructure:"log-level"`
	LogFormat     string `mapstructure:"log-format"`

	// --- Fields from compositionCmd.Flags() ---
	Since        string `mapstructure:"since"`
	Until        string `mapstructure:"until"`
	Organization string `mapstructure:"org"`
	Repositories string `mapstructure:"repos"`
	Daily        bool   `mapstructure:"daily"`

	// --- Fields from ingestCmd.Flags() ---
	Exclude string `mapstructure:"exclude"`

	// --- Fields from recalcCmd.Flags() ---
	Force bool `mapstructure:"force"`

	// --- Fields from serveCmd.Flags() ---
	Listen string `mapstructure:"listen"`

	// --- Fields from storeMigrateCmd.Flags() ---
	TargetVersion int `mapstructure:"target-version"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Excludes = slices.Clone(c.Excludes)
	clone.Repositories = slices.Clone(c.Repositories)
	return &clone
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfig(cfg, input); err != nil {
		return err
	}
	if err := processTimeRange(cfg, input, time.Now()); err != nil {
		return err
	}
	if err := processSelection(cfg, input); err != nil {
		return err
	}
	return processLogging(cfg, input)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// ValidateBackend normalizes and checks a backend name together with its connection string.
func ValidateBackend(raw, connStr string) (schema.DatabaseBackend, error) {
	backend := schema.DatabaseBackend(strings.ToLower(strings.TrimSpace(raw)))
	if backend == "" {
		backend = schema.SQLiteBackend
	}
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return "", fmt.Errorf("invalid db backend '%s'. must be sqlite, mysql, postgresql, none", raw)
	}
	if err := ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", err
	}
	return backend, nil
}

// validateBackendConfig validates the store backend configuration.
func validateBackendConfig(cfg *Config, input *ConfigRawInput) error {
	backend, err := ValidateBackend(input.DBBackend, input.DBConnect)
	if err != nil {
		return err
	}
	cfg.Backend = backend
	cfg.DBConnect = input.DBConnect
	return nil
}

// validateSimpleInputs processes and validates all non-time related fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.Force = input.Force
	cfg.TargetVersion = input.TargetVersion

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	if input.RollupWorkers <= 0 {
		return fmt.Errorf("rollup-workers must be greater than 0 (received %d)", input.RollupWorkers)
	}
	cfg.RollupWorkers = input.RollupWorkers

	if input.Precision < 1 || input.Precision > 2 {
		return fmt.Errorf("precision must be 1 or 2 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}

	cfg.Listen = strings.TrimSpace(input.Listen)
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	return nil
}

// processTimeRange resolves the chart window. Until defaults to now and Since to
// DefaultLookbackDays before Until.
func processTimeRange(cfg *Config, input *ConfigRawInput, now time.Time) error {
	cfg.Until = now.UTC()
	if input.Until != "" {
		t, err := ParseTimeInput(input.Until, now)
		if err != nil {
			return fmt.Errorf("invalid --until: %w", err)
		}
		cfg.Until = t
	}

	cfg.Since = cfg.Until.AddDate(0, 0, -DefaultLookbackDays)
	if input.Since != "" {
		t, err := ParseTimeInput(input.Since, now)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		cfg.Since = t
	}

	if cfg.Since.After(cfg.Until) {
		return fmt.Errorf("since (%s) cannot be after until (%s)", cfg.Since.Format(DateTimeFormat), cfg.Until.Format(DateTimeFormat))
	}
	return nil
}

// processSelection handles organization, repository and exclude lists.
func processSelection(cfg *Config, input *ConfigRawInput) error {
	cfg.Organization = strings.TrimSpace(input.Organization)
	cfg.IncludeDaily = input.Daily
	cfg.Repositories = splitList(input.Repositories)
	if len(cfg.Repositories) > 0 && cfg.Organization == "" {
		return fmt.Errorf("--repos requires --org")
	}

	cfg.Excludes = slices.Clone(DefaultExcludes)
	cfg.Excludes = append(cfg.Excludes, splitList(input.Exclude)...)
	return nil
}

// processLogging parses the log level and format.
func processLogging(cfg *Config, input *ConfigRawInput) error {
	level := input.LogLevel
	if level == "" {
		level = DefaultLogLevel
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level '%s': must be debug, info, warn, error", input.LogLevel)
	}

	cfg.LogFormat = strings.ToLower(strings.TrimSpace(input.LogFormat))
	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("invalid --log-format '%s': must be text or json", input.LogFormat)
	}
	return nil
}

// ParseIDList parses a comma-separated list of positive integer IDs.
func ParseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(s) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id '%s': must be a positive integer", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// splitList splits a comma-separated string, dropping blanks.
func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
