package config

import (
	"fmt"
	"strings"

	"github.com/lejeunerenard/file-assets/internal/rules"
)

// SchemeConfig holds the rule lists driving output resolution: where a
// combined output is written, which attributes it carries, and which filters
// run over each bucket.
type SchemeConfig struct {
	OutputPath  RuleList `yaml:"output_path,omitempty"`
	OutputAttrs RuleList `yaml:"output_attrs,omitempty"`
	Filters     RuleList `yaml:"filters,omitempty"`
}

// RuleConfig is one condition with its field payload. The match string uses
// the condition syntax: "default", a kind key like "css" or "css/print", or
// kind plus filter signature like "css:concat".
type RuleConfig struct {
	Match  string            `yaml:"match"`
	Fields map[string]string `yaml:",inline"`
}

// RuleList is an ordered rule list as configured.
type RuleList []RuleConfig

// ToScheme parses the configured conditions into an evaluatable scheme.
func (l RuleList) ToScheme() (rules.Scheme, error) {
	scheme := make(rules.Scheme, 0, len(l))
	for i, rc := range l {
		cond, err := rules.ParseCondition(rc.Match)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		fields := make(map[string]string, len(rc.Fields))
		for k, v := range rc.Fields {
			fields[k] = v
		}
		scheme = append(scheme, rules.Rule{Cond: cond, Fields: fields})
	}
	return scheme, nil
}

// SplitFilterNames splits a resolved "use" field into individual filter
// names, trimming whitespace and dropping empties.
func SplitFilterNames(use string) []string {
	var names []string
	for _, part := range strings.Split(use, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
