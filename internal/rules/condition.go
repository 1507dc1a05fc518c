// Package rules implements the best-match rule resolver: ordered schemes of
// condition/action rules evaluated by specificity, used to resolve output
// paths, output attributes, and filter attachment.
package rules

import (
	"strings"

	"github.com/lejeunerenard/file-assets/internal/asset"
	"github.com/lejeunerenard/file-assets/internal/errors"
)

// Outcome is the ternary result of testing a condition against a query.
type Outcome int

const (
	// Skip means the condition does not apply to the query at all.
	Skip Outcome = 0
	// Fallback means the condition applies but is weaker than the best
	// match so far: its fields fill only what is still unset.
	Fallback Outcome = -1
	// Win means the condition is the best match so far: its fields
	// overwrite the accumulated result.
	Win Outcome = 1
)

// Condition is a closed variant over the rule condition forms. Concrete
// types are Exact, Wildcard, Default, and Predicate; the resolver matches on
// them exhaustively.
type Condition interface {
	String() string
	isCondition()
}

// Exact matches a full "<kind>:<signature>" key. When only the signature
// matches, it degrades to a type-level comparison against the query kind.
type Exact struct {
	Kind      asset.Kind
	Signature string
}

func (c Exact) String() string { return c.Kind.Key() + ":" + c.Signature }
func (Exact) isCondition()     {}

// Wildcard matches any signature for resources whose underlying content
// type equals the condition kind's type. Written "<kind>:*" or "<kind>".
type Wildcard struct {
	Kind asset.Kind
}

func (c Wildcard) String() string { return c.Kind.Key() + ":*" }
func (Wildcard) isCondition()     {}

// Default matches every query. It wins only while nothing more specific has
// matched, and never advances the best kind.
type Default struct{}

func (Default) String() string { return "default" }
func (Default) isCondition()   {}

// Predicate is a programmatic condition. It receives the query kind and
// signature plus the best kind matched so far (nil when none) and decides
// the outcome itself. A Win advances the best kind to the query kind.
type Predicate func(kind asset.Kind, signature string, best *asset.Kind) Outcome

func (Predicate) String() string { return "predicate" }
func (Predicate) isCondition()   {}

// ParseCondition parses a condition as written in configuration: "default",
// "<kind>", "<kind>:*", or "<kind>:<signature>". Predicates cannot be
// expressed in configuration.
func ParseCondition(s string) (Condition, error) {
	if s == "" {
		return nil, errors.ValidationFailed("match", "empty rule condition")
	}
	if s == "default" {
		return Default{}, nil
	}
	name := s
	sig := ""
	if i := strings.Index(s, ":"); i >= 0 {
		name = s[:i]
		sig = s[i+1:]
		if name == "" || sig == "" {
			return nil, errors.ValidationFailed("match", "malformed rule condition: "+s)
		}
	}
	kind, err := asset.ParseKindKey(name)
	if err != nil {
		return nil, err
	}
	if sig == "" || sig == "*" {
		return Wildcard{Kind: kind}, nil
	}
	return Exact{Kind: kind, Signature: sig}, nil
}
