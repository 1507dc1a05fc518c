package rules

import (
	"fmt"

	"github.com/lejeunerenard/file-assets/internal/asset"
	"github.com/lejeunerenard/file-assets/internal/errors"
)

// Rule pairs a condition with a partial field mapping to merge into the
// resolved result when the condition applies.
type Rule struct {
	Cond   Condition
	Fields map[string]string
}

// Scheme is an ordered rule list evaluated top to bottom.
type Scheme []Rule

// Resolve evaluates the scheme against a query kind and filter signature and
// returns the merged field mapping. Exact kind+signature rules dominate
// wildcard-signature rules, which dominate type-level rules, which dominate
// the catch-all default; at equal specificity later rules win for the fields
// they define, but a weaker match never erases a field a stronger one set.
func (s Scheme) Resolve(kind asset.Kind, signature string) map[string]string {
	return s.ResolveWith(kind, signature, func(r Rule) map[string]string { return r.Fields })
}

// ResolveWith is Resolve with an explicit field extraction, for callers
// whose rules carry their action in another shape.
func (s Scheme) ResolveWith(kind asset.Kind, signature string, extract func(Rule) map[string]string) map[string]string {
	result := make(map[string]string)
	var best *asset.Kind
	for _, r := range s {
		outcome, advance := apply(r.Cond, kind, signature, best)
		switch outcome {
		case Win:
			for k, v := range extract(r) {
				result[k] = v
			}
			if advance != nil {
				best = advance
			}
		case Fallback:
			for k, v := range extract(r) {
				if _, ok := result[k]; !ok {
					result[k] = v
				}
			}
		}
	}
	return result
}

// apply tests one condition against the query. It returns the outcome and,
// on a Win, the kind the best-match tracker advances to (nil when the win
// does not advance it, as with Default).
func apply(c Condition, query asset.Kind, signature string, best *asset.Kind) (Outcome, *asset.Kind) {
	switch cond := c.(type) {
	case Predicate:
		outcome := cond(query, signature, best)
		if outcome == Win {
			q := query
			return Win, &q
		}
		return outcome, nil
	case Exact:
		if cond.Kind.Key() == query.Key() && cond.Signature == signature {
			q := query
			return Win, &q
		}
		if cond.Signature != signature {
			return Skip, nil
		}
		return typeLevel(cond.Kind, query, best)
	case Wildcard:
		return typeLevel(cond.Kind, query, best)
	case Default:
		if best == nil {
			return Win, nil
		}
		return Fallback, nil
	default:
		return Skip, nil
	}
}

// typeLevel compares a condition kind against the query by underlying
// content type. A match wins while it is more specific than the best match
// so far, and falls back otherwise.
func typeLevel(condKind, query asset.Kind, best *asset.Kind) (Outcome, *asset.Kind) {
	if condKind.Type != query.Type {
		return Skip, nil
	}
	if best == nil || condKind.MoreSpecificThan(*best) {
		ck := condKind
		return Win, &ck
	}
	return Fallback, nil
}

// Field returns a required field from a resolved mapping, failing when no
// rule supplied it.
func Field(fields map[string]string, key string) (string, error) {
	v, ok := fields[key]
	if !ok {
		return "", errors.ConfigurationError(fmt.Sprintf("no rule resolves required field %q", key))
	}
	return v, nil
}
