package enums

import (
	"fmt"
	"slices"
	"strings"
)

// member reports whether v is one of set.
func member[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

// parseUpper matches raw against set after trimming and upper-casing it.
func parseUpper[T ~string](raw, kind string, set []T) (T, error) {
	v := T(strings.ToUpper(strings.TrimSpace(raw)))
	if !member(v, set) {
		var zero T
		return zero, fmt.Errorf("invalid %s %q", kind, raw)
	}
	return v, nil
}
