// Package normalization provides type-safe string-to-enum normalization for
// configuration fields: case-folded lookup with a default for lenient paths
// and an error-reporting variant for validation.
package normalization

import (
	"fmt"
	"sort"
	"strings"
)

// Normalizer maps raw configuration strings onto a typed enum.
type Normalizer[T comparable] struct {
	validValues  map[string]T
	defaultValue T
	validKeys    []string // Cached for error messages
}

// NewNormalizer creates a normalizer with a map of valid string->value
// pairs. Map keys are case-folded and trimmed before lookup.
func NewNormalizer[T comparable](values map[string]T, defaultValue T) *Normalizer[T] {
	normalized := make(map[string]T, len(values))
	validKeys := make([]string, 0, len(values))
	for k, v := range values {
		key := fold(k)
		normalized[key] = v
		validKeys = append(validKeys, key)
	}
	// Sort keys for consistent error messages
	sort.Strings(validKeys)

	return &Normalizer[T]{
		validValues:  normalized,
		defaultValue: defaultValue,
		validKeys:    validKeys,
	}
}

// Normalize converts a raw string to the enum type, returning the default
// value when the string is not recognized.
func (n *Normalizer[T]) Normalize(raw string) T {
	if value, exists := n.validValues[fold(raw)]; exists {
		return value
	}
	return n.defaultValue
}

// NormalizeWithError converts a raw string to the enum type, reporting
// unrecognized input instead of defaulting.
func (n *Normalizer[T]) NormalizeWithError(raw string) (T, error) {
	if value, exists := n.validValues[fold(raw)]; exists {
		return value, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid value %q, valid options: %v", raw, n.validKeys)
}

// ValidKeys returns all valid normalized keys.
func (n *Normalizer[T]) ValidKeys() []string {
	result := make([]string, len(n.validKeys))
	copy(result, n.validKeys)
	return result
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
