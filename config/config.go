// Package config loads annostat settings from a YAML file with ANNOSTAT_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/cost"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/ingest"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/record"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/report"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ANNOSTAT_"

// PathEnv names the config file when no path is passed to Load.
const PathEnv = EnvPrefix + "CONFIG"

// Config is the full annostat configuration.
type Config struct {
	Settings `yaml:",inline"`

	// Reports are added to the built-in catalog; a name that already exists
	// replaces the built-in.
	Reports []report.Spec `yaml:"reports"`
}

// Settings are the scalar options; each can be overridden from the environment.
type Settings struct {
	Policy          string   `yaml:"policy" env:"POLICY"`
	KnownErrorTypes []string `yaml:"known_error_types" env:"KNOWN_ERROR_TYPES" envSeparator:","`
	Timezone        string   `yaml:"timezone" env:"TIMEZONE"`
	Shards          int      `yaml:"shards" env:"SHARDS"`
	Concurrency     int      `yaml:"concurrency" env:"CONCURRENCY"`
	LogMode         string   `yaml:"log_mode" env:"LOG_MODE"`
	Locale          string   `yaml:"locale" env:"LOCALE"`
	Trace           bool     `yaml:"trace" env:"TRACE"`
	CostDimension   string   `yaml:"cost_dimension" env:"COST_DIMENSION"`

	Input  InputConfig  `yaml:"input" envPrefix:"INPUT_"`
	Costs  CostConfig   `yaml:"costs" envPrefix:"COST_"`
	Server ServerConfig `yaml:"server" envPrefix:"SERVER_"`
}

type InputConfig struct {
	Path             string `yaml:"path" env:"PATH"`
	Table            string `yaml:"table" env:"TABLE"`
	DefaultGuideline string `yaml:"default_guideline" env:"DEFAULT_GUIDELINE"`
}

type CostConfig struct {
	AnnotationUnitCost decimal.Decimal `yaml:"annotation_unit_cost" env:"ANNOTATION_UNIT"`
	ReworkUnitCost     decimal.Decimal `yaml:"rework_unit_cost" env:"REWORK_UNIT"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

// Default returns the settings used when neither file nor environment set a value.
func Default() Config {
	rates := cost.DefaultRates()
	return Config{Settings: Settings{
		Policy:          string(record.PolicySkip),
		KnownErrorTypes: append([]string(nil), record.DefaultErrorTypes...),
		Timezone:        "UTC",
		Shards:          1,
		LogMode:         "development",
		Locale:          "en",
		CostDimension:   record.DimPlatform,
		Input:           InputConfig{Table: ingest.DefaultTable},
		Costs: CostConfig{
			AnnotationUnitCost: rates.AnnotationUnitCost,
			ReworkUnitCost:     rates.ReworkUnitCost,
		},
		Server: ServerConfig{Addr: ":8080"},
	}}
}

// Load applies defaults, then the YAML file at path, then ANNOSTAT_*
// variables, and validates the result. An empty path falls back to
// ANNOSTAT_CONFIG; with neither set no file is read.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg.Settings, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field, reporting all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := record.ParsePolicy(c.Policy); err != nil {
		errs = append(errs, err)
	}
	if len(c.KnownErrorTypes) == 0 {
		errs = append(errs, errors.New("known_error_types is empty"))
	}
	for _, t := range c.KnownErrorTypes {
		if strings.TrimSpace(t) == "" || t == record.ErrorTypeNone {
			errs = append(errs, fmt.Errorf("known_error_types: %q is not a usable error type", t))
		}
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Shards < 1 {
		errs = append(errs, fmt.Errorf("shards must be at least 1, got %d", c.Shards))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency))
	}
	switch strings.ToLower(c.LogMode) {
	case "", "dev", "development", "prod", "production", "quiet":
	default:
		errs = append(errs, fmt.Errorf("unknown log_mode %q", c.LogMode))
	}
	if err := c.Rates().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("costs: %w", err))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is empty"))
	}
	if c.CostDimension == "" {
		errs = append(errs, errors.New("cost_dimension is empty"))
	}
	for _, s := range c.Reports {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("reports: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Location resolves Timezone. Empty means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

// Rates returns the configured unit costs.
func (c *Config) Rates() cost.Rates {
	return cost.Rates{
		AnnotationUnitCost: c.Costs.AnnotationUnitCost,
		ReworkUnitCost:     c.Costs.ReworkUnitCost,
	}
}

// BuildOptions returns the record store options this config implies.
func (c *Config) BuildOptions() ([]record.Option, error) {
	policy, err := record.ParsePolicy(c.Policy)
	if err != nil {
		return nil, err
	}
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	return []record.Option{
		record.WithPolicy(policy),
		record.WithKnownErrorTypes(c.KnownErrorTypes...),
		record.WithLocation(loc),
	}, nil
}

// IngestOptions returns the adapter options this config implies.
func (c *Config) IngestOptions() (ingest.Options, error) {
	loc, err := c.Location()
	if err != nil {
		return ingest.Options{}, err
	}
	return ingest.Options{Location: loc, DefaultGuideline: c.Input.DefaultGuideline}, nil
}

// Catalog returns the built-in reports extended by Reports.
func (c *Config) Catalog() (*report.Catalog, error) {
	catalog := report.Builtin()
	for _, s := range c.Reports {
		if err := catalog.Add(s); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	return catalog, nil
}
