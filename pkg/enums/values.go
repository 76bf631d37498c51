package enums

import (
	"fmt"
	"slices"
	"strings"
)

// values is the closed set of one string enum, in display order.
type values[T ~string] []T

func (v values[T]) contains(candidate T) bool {
	return slices.Contains(v, candidate)
}

// parse matches raw case-insensitively after trimming; kind names the enum in the error.
func (v values[T]) parse(kind, raw string) (T, error) {
	candidate := T(strings.ToLower(strings.TrimSpace(raw)))
	if v.contains(candidate) {
		return candidate, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}

func (v values[T]) list() []T {
	return slices.Clone(v)
}
