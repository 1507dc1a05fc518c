package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Version    string            `yaml:"version"`
	Sources    []SourceConfig    `yaml:"sources"`
	Output     OutputConfig      `yaml:"output"`
	Cache      CacheConfig       `yaml:"cache,omitempty"`
	Scheme     SchemeConfig      `yaml:"scheme,omitempty"`
	Build      BuildConfig       `yaml:"build,omitempty"`
	Daemon     *DaemonConfig     `yaml:"daemon,omitempty"`
	History    *HistoryConfig    `yaml:"history,omitempty"`
	Monitoring *MonitoringConfig `yaml:"monitoring,omitempty"`
}

// SourceConfig names one file or directory tree to include.
type SourceConfig struct {
	Path  string            `yaml:"path"`            // File or directory to include
	Rank  int               `yaml:"rank,omitempty"`  // Export ordering; lower renders first
	Attrs map[string]string `yaml:"attrs,omitempty"` // Attributes stamped on included resources
}

// OutputConfig represents output configuration.
type OutputConfig struct {
	Directory string `yaml:"directory"`          // Root for written outputs
	BaseURL   string `yaml:"base_url,omitempty"` // Prefix for derived output URIs
	Clean     bool   `yaml:"clean"`              // Clean output directory before export
}

// CacheConfig controls the build-skip marker store.
type CacheConfig struct {
	Directory string   `yaml:"directory,omitempty"` // Marker store root; defaults under the user cache dir
	Checks    []string `yaml:"checks,omitempty"`    // Enabled checks: age, digest, content
}

// BuildConfig carries direct-mode export options.
type BuildConfig struct {
	Only         string `yaml:"only,omitempty"`          // Restrict the export to one type: css or js
	SkipExisting bool   `yaml:"skip_existing,omitempty"` // Reuse non-empty outputs without rebuilding
}

// DaemonConfig represents daemon-specific configuration.
type DaemonConfig struct {
	HTTP  HTTPConfig  `yaml:"http"`
	Watch WatchConfig `yaml:"watch"`
	Sync  SyncConfig  `yaml:"sync"`
	NATS  *NATSConfig `yaml:"nats,omitempty"`
}

// HTTPConfig represents the daemon's HTTP server configuration.
type HTTPConfig struct {
	Listen      string `yaml:"listen"`       // Admin/status listen address
	ServeOutput bool   `yaml:"serve_output"` // Serve the output directory for local preview
}

// WatchConfig controls source tree watching.
type WatchConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Debounce string `yaml:"debounce,omitempty"` // Quiet period before a rebuild, e.g. 500ms
}

// SyncConfig controls scheduled exports.
type SyncConfig struct {
	Schedule string `yaml:"schedule,omitempty"` // Cron expression for periodic exports
}

// NATSConfig announces completed exports on a message bus.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject,omitempty"` // Export completion announcements
	Bucket  string `yaml:"bucket,omitempty"`  // JetStream KV bucket holding the latest report
}

// HistoryConfig controls the export history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"` // SQLite database; defaults under the cache directory
	Keep    int    `yaml:"keep,omitempty"` // Export records retained; 0 keeps everything
}

// MonitoringConfig represents monitoring and observability configuration.
type MonitoringConfig struct {
	Metrics MonitoringMetrics `yaml:"metrics"`
	Health  MonitoringHealth  `yaml:"health"`
	Logging LoggingConfig     `yaml:"logging"`
}

// MonitoringMetrics represents metrics configuration.
type MonitoringMetrics struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MonitoringHealth represents health check configuration.
type MonitoringHealth struct {
	Path string `yaml:"path"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load loads a configuration file.
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	if err := loadEnvFile(); err != nil {
		// Don't fail if .env doesn't exist, just log it
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Version != "" && !strings.HasPrefix(config.Version, "1.") {
		return nil, fmt.Errorf("unsupported configuration version: %s (expected 1.x)", config.Version)
	}

	// Normalization pass (case-fold enumerations) before defaults so
	// canonical values drive them.
	normalizeConfig(&config)

	if err := applyDefaults(&config); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	exampleConfig := Config{
		Version: "1.0",
		Sources: []SourceConfig{
			{Path: "assets/css"},
			{Path: "assets/js"},
			{Path: "vendor/print.css", Attrs: map[string]string{"media": "print"}},
		},
		Output: OutputConfig{
			Directory: "./public",
			BaseURL:   "/static",
			Clean:     true,
		},
		Cache: CacheConfig{
			Checks: []string{"digest", "age"},
		},
		Scheme: SchemeConfig{
			OutputPath: RuleList{
				{Match: "default", Fields: map[string]string{"path": "assets/{type}/bundle.{digest}.{ext}"}},
			},
			Filters: RuleList{
				{Match: "css", Fields: map[string]string{"use": "concat, cssmin"}},
				{Match: "js", Fields: map[string]string{"use": "concat, jsmin"}},
			},
		},
		Daemon: &DaemonConfig{
			HTTP: HTTPConfig{
				Listen:      ":8080",
				ServeOutput: true,
			},
			Watch: WatchConfig{
				Enabled:  true,
				Debounce: "500ms",
			},
			Sync: SyncConfig{
				Schedule: "0 * * * *",
			},
		},
		History: &HistoryConfig{
			Enabled: true,
			Keep:    100,
		},
		Monitoring: &MonitoringConfig{
			Metrics: MonitoringMetrics{
				Enabled: true,
				Path:    "/metrics",
			},
			Health: MonitoringHealth{
				Path: "/healthz",
			},
			Logging: LoggingConfig{
				Level:  LogLevelInfo,
				Format: LogFormatText,
			},
		},
	}

	data, err := yaml.Marshal(&exampleConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
