package config

import (
	"github.com/lejeunerenard/file-assets/internal/foundation/normalization"
)

// LogLevel enumerates supported logging levels (mapped onto slog).
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = normalization.NewNormalizer(map[string]LogLevel{
	"debug": LogLevelDebug,
	"info":  LogLevelInfo,
	"warn":  LogLevelWarn,
	"error": LogLevelError,
}, LogLevelInfo)

func NormalizeLogLevel(raw string) LogLevel {
	return logLevelNormalizer.Normalize(raw)
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = normalization.NewNormalizer(map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)

func NormalizeLogFormat(raw string) LogFormat {
	return logFormatNormalizer.Normalize(raw)
}

// normalizeConfig case-folds enumeration fields so defaults and validation
// see canonical values.
func normalizeConfig(cfg *Config) {
	if cfg.Monitoring != nil {
		cfg.Monitoring.Logging.Level = NormalizeLogLevel(string(cfg.Monitoring.Logging.Level))
		cfg.Monitoring.Logging.Format = NormalizeLogFormat(string(cfg.Monitoring.Logging.Format))
	}
	// Unknown check names stay raw so validation can report them.
	for i, check := range cfg.Cache.Checks {
		if v, err := cacheCheckNormalizer.NormalizeWithError(check); err == nil {
			cfg.Cache.Checks[i] = v
		}
	}
}

var cacheCheckNormalizer = normalization.NewNormalizer(map[string]string{
	"age":     "age",
	"digest":  "digest",
	"content": "content",
}, "")
