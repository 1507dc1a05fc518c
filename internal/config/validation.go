package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/lejeunerenard/file-assets/internal/asset"
	"github.com/lejeunerenard/file-assets/internal/buildcache"
)

// validateConfig validates the complete configuration structure. It runs
// after defaults, so required fields with defaults are always present.
func validateConfig(cfg *Config) error {
	if err := validateSources(cfg); err != nil {
		return err
	}
	if err := validateBuild(cfg); err != nil {
		return err
	}
	if err := validateCache(cfg); err != nil {
		return err
	}
	if err := validateScheme(cfg); err != nil {
		return err
	}
	if err := validateDaemon(cfg); err != nil {
		return err
	}
	if err := validateHistory(cfg); err != nil {
		return err
	}
	return nil
}

func validateSources(cfg *Config) error {
	if len(cfg.Sources) == 0 {
		return errors.New("at least one source must be configured")
	}
	for i, src := range cfg.Sources {
		if src.Path == "" {
			return fmt.Errorf("source %d: path cannot be empty", i+1)
		}
	}
	return nil
}

func validateBuild(cfg *Config) error {
	if cfg.Build.Only == "" {
		return nil
	}
	if t := asset.TypeFromName(cfg.Build.Only); t == asset.Stylesheet || t == asset.Script {
		return nil
	}
	return fmt.Errorf("build.only: unknown content type %q (expected css or js)", cfg.Build.Only)
}

func validateCache(cfg *Config) error {
	if _, err := cfg.Cache.Policy(); err != nil {
		return err
	}
	return nil
}

// Policy translates the configured check names into a cache policy.
func (c CacheConfig) Policy() (buildcache.Policy, error) {
	var p buildcache.Policy
	for _, check := range c.Checks {
		switch check {
		case "age":
			p.Age = true
		case "digest":
			p.Digest = true
		case "content":
			p.Content = true
		default:
			return buildcache.Policy{}, fmt.Errorf("cache.checks: unknown check %q (expected age, digest or content)", check)
		}
	}
	return p, nil
}

func validateScheme(cfg *Config) error {
	if _, err := cfg.Scheme.OutputPath.ToScheme(); err != nil {
		return fmt.Errorf("scheme.output_path: %w", err)
	}
	if _, err := cfg.Scheme.OutputAttrs.ToScheme(); err != nil {
		return fmt.Errorf("scheme.output_attrs: %w", err)
	}
	if _, err := cfg.Scheme.Filters.ToScheme(); err != nil {
		return fmt.Errorf("scheme.filters: %w", err)
	}
	for i, rc := range cfg.Scheme.Filters {
		if rc.Fields["use"] == "" {
			return fmt.Errorf("scheme.filters rule %d: missing use field", i+1)
		}
	}
	return nil
}

func validateDaemon(cfg *Config) error {
	if cfg.Daemon == nil {
		return nil
	}
	if cfg.Daemon.Watch.Enabled {
		if _, err := cfg.Daemon.Watch.DebounceDuration(); err != nil {
			return fmt.Errorf("daemon.watch.debounce: %w", err)
		}
	}
	if cfg.Daemon.NATS != nil && cfg.Daemon.NATS.URL == "" {
		return errors.New("daemon.nats.url cannot be empty when nats is configured")
	}
	return nil
}

// DebounceDuration parses the configured debounce window.
func (w WatchConfig) DebounceDuration() (time.Duration, error) {
	if w.Debounce == "" {
		return 500 * time.Millisecond, nil
	}
	d, err := time.ParseDuration(w.Debounce)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("debounce must be positive, got %s", w.Debounce)
	}
	return d, nil
}

func validateHistory(cfg *Config) error {
	if cfg.History == nil || !cfg.History.Enabled {
		return nil
	}
	if cfg.History.Keep < 0 {
		return fmt.Errorf("history.keep cannot be negative, got %d", cfg.History.Keep)
	}
	return nil
}
