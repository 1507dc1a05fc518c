package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func snapshotConfig() *Config {
	return &Config{
		Sources: []SourceConfig{{Path: "assets", Rank: 1, Attrs: map[string]string{"media": "print"}}},
		Output:  OutputConfig{Directory: "./public", BaseURL: "/static"},
		Cache:   CacheConfig{Checks: []string{"digest", "age"}},
		Scheme: SchemeConfig{
			OutputPath: RuleList{{Match: "default", Fields: map[string]string{"path": "bundle.{ext}"}}},
		},
	}
}

func TestSnapshot_StableAcrossCalls(t *testing.T) {
	cfg := snapshotConfig()
	require.Equal(t, cfg.Snapshot(), cfg.Snapshot())
	require.NotEmpty(t, cfg.Snapshot())

	var nilConfig *Config
	require.Empty(t, nilConfig.Snapshot())
}

func TestSnapshot_SensitiveToPipelineFields(t *testing.T) {
	base := snapshotConfig().Snapshot()

	changedSource := snapshotConfig()
	changedSource.Sources[0].Path = "other"
	require.NotEqual(t, base, changedSource.Snapshot())

	changedScheme := snapshotConfig()
	changedScheme.Scheme.OutputPath[0].Fields["path"] = "else.{ext}"
	require.NotEqual(t, base, changedScheme.Snapshot())

	changedBuild := snapshotConfig()
	changedBuild.Build.SkipExisting = true
	require.NotEqual(t, base, changedBuild.Snapshot())
}

func TestSnapshot_CheckOrderDoesNotMatter(t *testing.T) {
	a := snapshotConfig()
	b := snapshotConfig()
	b.Cache.Checks = []string{"age", "digest"}
	require.Equal(t, a.Snapshot(), b.Snapshot())
}

func TestSnapshot_IgnoresMonitoring(t *testing.T) {
	a := snapshotConfig()
	b := snapshotConfig()
	b.Monitoring = &MonitoringConfig{Logging: LoggingConfig{Level: LogLevelDebug}}
	require.Equal(t, a.Snapshot(), b.Snapshot())
}
