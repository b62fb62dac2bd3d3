// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < env < flags
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config holds all gedixr configuration.
type Config struct {
	Version int `yaml:"version"`

	Extract   ExtractConfig   `yaml:"extract"`
	Output    OutputConfig    `yaml:"output"`
	Log       LogConfig       `yaml:"log"`
	Publish   PublishConfig   `yaml:"publish"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ExtractConfig controls the extraction run.
type ExtractConfig struct {
	Product       string   `yaml:"product"` // L2A | L2B
	Beams         string   `yaml:"beams"`   // all | power | coverage | BEAM0101,...
	MonthMin      int      `yaml:"month_min"`
	MonthMax      int      `yaml:"month_max"`
	QualityFilter bool     `yaml:"quality_filter"`
	Variables     []string `yaml:"variables"` // column=path pairs
	Regions       []string `yaml:"regions"`   // vector files
	UnpackZip     bool     `yaml:"unpack_zip"`
	TempDir       string   `yaml:"temp_dir"`
	Workers       int      `yaml:"workers"`
}

// OutputConfig controls output files.
type OutputConfig struct {
	Format       string `yaml:"format"`      // parquet | gpkg
	Compression  string `yaml:"compression"` // snappy | zstd | gzip | lz4 | none
	BatchSize    int    `yaml:"batch_size"`
	RowGroupSize int64  `yaml:"row_group_size"`
}

// LogConfig controls console logging. The run log file always records debug.
type LogConfig struct {
	Level string `yaml:"level"`
	Quiet bool   `yaml:"quiet"`
}

// PublishConfig uploads outputs after a successful run.
type PublishConfig struct {
	Dir string   `yaml:"dir"` // copy outputs to this directory when set
	S3  S3Config `yaml:"s3"`
}

// S3Config for S3-compatible object storage.
type S3Config struct {
	Enabled   bool   `yaml:"enabled"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// TelemetryConfig for optional tracing.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	Insecure    bool    `yaml:"insecure"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// MetricsConfig for the run metrics textfile.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Extract: ExtractConfig{
			Product:       "L2B",
			Beams:         "all",
			MonthMin:      1,
			MonthMax:      12,
			QualityFilter: true,
			Workers:       1,
		},
		Output: OutputConfig{
			Format:       "parquet",
			Compression:  "snappy",
			BatchSize:    65536,
			RowGroupSize: 1 << 20,
		},
		Log: LogConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			ServiceName: "gedixr",
			Insecure:    true,
			SampleRate:  1.0,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks value ranges that YAML cannot express.
func (c *Config) Validate() error {
	e := c.Extract
	if e.MonthMin < 1 || e.MonthMin > 12 || e.MonthMax < 1 || e.MonthMax > 12 {
		return fmt.Errorf("month range must lie within 1..12, got %d..%d", e.MonthMin, e.MonthMax)
	}
	if e.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", e.Workers)
	}
	if c.Publish.S3.Enabled && c.Publish.S3.Bucket == "" {
		return fmt.Errorf("publish.s3.bucket is required when S3 publishing is enabled")
	}
	return nil
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string // Paths that were loaded
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{
		config: Default(),
	}
}

// Load loads configuration from all sources in priority order. extra files
// (for example from a --config flag) are applied after the standard paths
// and must exist.
func (m *Manager) Load(extra ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Start with defaults
	m.config = Default()
	m.paths = nil

	// Load from paths in order (later overrides earlier)
	for _, path := range m.getConfigPaths() {
		if err := m.loadFile(path); err != nil {
			// Ignore missing files, but report errors for existing files
			if !os.IsNotExist(err) {
				return fmt.Errorf("%s: %w", path, err)
			}
		} else {
			m.paths = append(m.paths, path)
		}
	}
	for _, path := range extra {
		if err := m.loadFile(path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		m.paths = append(m.paths, path)
	}

	// Override with environment variables
	return m.loadEnv()
}

// getConfigPaths returns config file paths in priority order.
func (m *Manager) getConfigPaths() []string {
	var paths []string

	// System config
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/gedixr/config.yaml")
	}

	// User config
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".gedixr", "config.yaml"))
	}

	// Project config (current directory)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".gedixr.yaml"))
	}

	return paths
}

// loadFile decodes a config file over the current values. Keys absent from
// the file keep their current value.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	next := *m.config
	if err := yaml.Unmarshal(data, &next); err != nil {
		return err
	}
	m.config = &next
	return nil
}

// loadEnv loads configuration from GEDIXR_* environment variables.
func (m *Manager) loadEnv() error {
	c := m.config
	str := map[string]*string{
		"GEDIXR_PRODUCT":       &c.Extract.Product,
		"GEDIXR_BEAMS":         &c.Extract.Beams,
		"GEDIXR_TEMP_DIR":      &c.Extract.TempDir,
		"GEDIXR_FORMAT":        &c.Output.Format,
		"GEDIXR_COMPRESSION":   &c.Output.Compression,
		"GEDIXR_LOG_LEVEL":     &c.Log.Level,
		"GEDIXR_S3_BUCKET":     &c.Publish.S3.Bucket,
		"GEDIXR_S3_PREFIX":     &c.Publish.S3.Prefix,
		"GEDIXR_S3_ENDPOINT":   &c.Publish.S3.Endpoint,
		"GEDIXR_OTLP_ENDPOINT": &c.Telemetry.Endpoint,
		"GEDIXR_PUBLISH_DIR":   &c.Publish.Dir,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"GEDIXR_WORKERS":   &c.Extract.Workers,
		"GEDIXR_MONTH_MIN": &c.Extract.MonthMin,
		"GEDIXR_MONTH_MAX": &c.Extract.MonthMax,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: invalid integer %q", key, v)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"GEDIXR_QUALITY_FILTER": &c.Extract.QualityFilter,
		"GEDIXR_UNPACK_ZIP":     &c.Extract.UnpackZip,
		"GEDIXR_TELEMETRY":      &c.Telemetry.Enabled,
		"GEDIXR_METRICS":        &c.Metrics.Enabled,
		"GEDIXR_S3_ENABLED":     &c.Publish.S3.Enabled,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: invalid boolean %q", key, v)
			}
			*dst = b
		}
	}

	if v := os.Getenv("GEDIXR_VARIABLES"); v != "" {
		c.Extract.Variables = strings.Split(v, ",")
	}
	return nil
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetPaths returns the paths that were loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.paths...)
}

// Save writes the current config to the user config file.
func (m *Manager) Save() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	configDir := filepath.Join(home, ".gedixr")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return "", err
	}

	path := filepath.Join(configDir, "config.yaml")
	return path, os.WriteFile(path, data, 0644)
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
