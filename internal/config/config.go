package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/surveyscore/internal/engine"
	"github.com/TobiSchelling/surveyscore/internal/snapshot"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Root    string  `yaml:"root"`
	Paths   Paths   `yaml:"paths"`
	Scoring Scoring `yaml:"scoring"`
	Report  Report  `yaml:"report"`
	Logging Logging `yaml:"logging"`
}

type Paths struct {
	DataDir      string `yaml:"data_dir"`
	ReportDir    string `yaml:"report_dir"`
	Codebook     string `yaml:"codebook"`
	ICARKey      string `yaml:"icar_key"`
	ICAR16Sample string `yaml:"icar16_sample"`
	ICAR60Sample string `yaml:"icar60_sample"`
	ICAR16Output string `yaml:"icar16_output"`
	ICAROutput   string `yaml:"icar_output"`
}

type Scoring struct {
	Timezone        string            `yaml:"timezone"`
	HeaderOffset    int               `yaml:"header_offset"`
	DuplicatePolicy string            `yaml:"duplicate_policy"`
	Identity        engine.ColumnRefs `yaml:"identity"`
}

type Report struct {
	Workers   int    `yaml:"workers"`
	TableName string `yaml:"table_name"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for surveyscore.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "surveyscore")
}

// DataDir returns the XDG data directory for surveyscore.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "surveyscore")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/surveyscore/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'surveyscore init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Paths: Paths{
			DataDir:      "Data",
			ReportDir:    "Reports",
			Codebook:     filepath.Join("IPIP", "Personality Item Key.xlsx"),
			ICARKey:      filepath.Join("ICAR", "ICAR Item Key.xlsx"),
			ICAR16Sample: filepath.Join("ICAR", "ICAR16", "ICAR 16 norm data", "sapaICARData18aug2010thru20may2013.csv"),
			ICAR60Sample: filepath.Join("ICAR", "ICAR60", "ICAR 60 norm data", "sapaData20may2013thru10jun2014.csv"),
			ICAR16Output: filepath.Join("ICAR", "ICAR16_Norm_Data.csv"),
			ICAROutput:   filepath.Join("ICAR", "ICAR_Norm_Data.csv"),
		},
		Scoring: Scoring{
			Timezone:        engine.DefaultTimezone,
			HeaderOffset:    1,
			DuplicatePolicy: string(snapshot.DropAll),
			Identity:        engine.DefaultColumnRefs(),
		},
		Report:  Report{Workers: 4, TableName: "{export} scores.xlsx"},
		Logging: Logging{Level: "info"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error
	if _, perr := snapshot.ParsePolicy(c.Scoring.DuplicatePolicy); perr != nil {
		err = multierr.Append(err, perr)
	}
	if _, lerr := time.LoadLocation(c.Scoring.Timezone); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("scoring.timezone: %w", lerr))
	}
	if c.Scoring.HeaderOffset < 0 {
		err = multierr.Append(err, fmt.Errorf("scoring.header_offset must not be negative, got %d", c.Scoring.HeaderOffset))
	}
	if c.Report.Workers < 1 {
		err = multierr.Append(err, fmt.Errorf("report.workers must be at least 1, got %d", c.Report.Workers))
	}
	if !strings.HasSuffix(c.Report.TableName, ".xlsx") {
		err = multierr.Append(err, fmt.Errorf("report.table_name must end in .xlsx, got %q", c.Report.TableName))
	}
	return err
}

// GetRoot returns the effective root directory from config or XDG default.
func (c *Config) GetRoot() string {
	if c.Root != "" {
		return c.Root
	}
	return DataDir()
}

// Resolve returns p relative to the root directory unless it is absolute.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.GetRoot(), p)
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Scoring.Timezone)
}

// Policy returns the configured duplicate policy.
func (c *Config) Policy() (snapshot.DuplicatePolicy, error) {
	return snapshot.ParsePolicy(c.Scoring.DuplicatePolicy)
}

// TableFile returns the score table file name for an export.
func (c *Config) TableFile(exportPath string) string {
	export := strings.TrimSuffix(filepath.Base(exportPath), filepath.Ext(exportPath))
	return strings.ReplaceAll(c.Report.TableName, "{export}", export)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
