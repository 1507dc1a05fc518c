package config

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Snapshot computes a stable hash of export-affecting configuration fields.
// It is intentionally narrower than full serialization so unrelated config
// changes (logging, monitoring paths) do not look like a new pipeline setup.
// The daemon compares snapshots to decide whether a config reload requires a
// rebuild, and the history store records the snapshot each export ran under.
func (c *Config) Snapshot() string {
	if c == nil {
		return ""
	}
	h := sha256.New()
	w := func(parts ...string) {
		h.Write([]byte(strings.Join(parts, "=")))
		h.Write([]byte{0})
	}

	for _, src := range c.Sources {
		w("source.path", src.Path)
		w("source.rank", strconv.Itoa(src.Rank))
		if len(src.Attrs) > 0 {
			keys := make([]string, 0, len(src.Attrs))
			for k := range src.Attrs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				w("source.attr", k, src.Attrs[k])
			}
		}
	}

	w("output.directory", c.Output.Directory)
	w("output.base_url", c.Output.BaseURL)

	checks := append([]string{}, c.Cache.Checks...)
	sort.Strings(checks)
	w("cache.checks", strings.Join(checks, ","))

	writeRules := func(name string, list RuleList) {
		for _, rc := range list {
			w(name+".match", rc.Match)
			keys := make([]string, 0, len(rc.Fields))
			for k := range rc.Fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				w(name+".field", k, rc.Fields[k])
			}
		}
	}
	writeRules("scheme.output_path", c.Scheme.OutputPath)
	writeRules("scheme.output_attrs", c.Scheme.OutputAttrs)
	writeRules("scheme.filters", c.Scheme.Filters)

	w("build.only", c.Build.Only)
	w("build.skip_existing", strconv.FormatBool(c.Build.SkipExisting))

	return hex.EncodeToString(h.Sum(nil))
}
