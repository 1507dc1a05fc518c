package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const appDirName = "file-assets"

// applyDefaults fills omitted fields with their documented defaults. It runs
// after normalization so canonical values drive the decisions.
func applyDefaults(cfg *Config) error {
	if cfg.Version == "" {
		cfg.Version = "1.0"
	}

	if cfg.Output.Directory == "" {
		cfg.Output.Directory = "./public"
	}

	if cfg.Cache.Directory == "" {
		cfg.Cache.Directory = filepath.Join(xdg.CacheHome, appDirName)
	}
	if cfg.Cache.Checks == nil {
		cfg.Cache.Checks = []string{"digest", "age"}
	}

	// A scheme without a path rule could never resolve an output location,
	// and one without a filter attachment would export sources untouched.
	if len(cfg.Scheme.OutputPath) == 0 {
		cfg.Scheme.OutputPath = RuleList{
			{Match: "default", Fields: map[string]string{"path": "assets/{type}/bundle.{digest}.{ext}"}},
		}
	}
	if len(cfg.Scheme.Filters) == 0 {
		cfg.Scheme.Filters = RuleList{
			{Match: "default", Fields: map[string]string{"use": "concat"}},
		}
	}

	if cfg.Daemon != nil {
		if cfg.Daemon.HTTP.Listen == "" {
			cfg.Daemon.HTTP.Listen = ":8080"
		}
		if cfg.Daemon.Watch.Enabled && cfg.Daemon.Watch.Debounce == "" {
			cfg.Daemon.Watch.Debounce = "500ms"
		}
		if cfg.Daemon.NATS != nil && cfg.Daemon.NATS.Subject == "" {
			cfg.Daemon.NATS.Subject = "file-assets.exports"
		}
	}

	if cfg.History != nil && cfg.History.Enabled && cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(cfg.Cache.Directory, "history.db")
	}

	if cfg.Monitoring != nil {
		if cfg.Monitoring.Metrics.Enabled && cfg.Monitoring.Metrics.Path == "" {
			cfg.Monitoring.Metrics.Path = "/metrics"
		}
		if cfg.Monitoring.Health.Path == "" {
			cfg.Monitoring.Health.Path = "/healthz"
		}
		if cfg.Monitoring.Logging.Level == "" {
			cfg.Monitoring.Logging.Level = LogLevelInfo
		}
		if cfg.Monitoring.Logging.Format == "" {
			cfg.Monitoring.Logging.Format = LogFormatText
		}
	}

	return nil
}
