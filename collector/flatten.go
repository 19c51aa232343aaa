package collector

import (
	"errors"
	"fmt"
)

// ErrNotAMap reports that a payload expected to be a key-value structure
// held something else entirely.
var ErrNotAMap = errors.New("payload is not a key-value structure")

// Flat is a single-level view of a nested payload: every key is the
// snake-cased path to a leaf, joined with underscores, and every value is a
// leaf (scalar, string, or list) taken from the source tree unchanged.
type Flat map[string]any

// Flatten walks a nested string-keyed structure and returns its Flat form.
// Keys are normalized per path segment via SnakeCase; nested maps recurse
// with the joined key as prefix; scalars, strings, and lists bind as-is
// (list expansion is the dispatcher's concern, not ours). Only a non-map
// top-level value is an error; heterogeneous leaf types are fine, and an
// empty map flattens to an empty Flat.
func Flatten(v any, prefix string) (Flat, error) {
	tree, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("cannot flatten %T: %w", v, ErrNotAMap)
	}
	out := make(Flat, len(tree))
	flattenInto(out, tree, prefix)
	return out, nil
}

func flattenInto(out Flat, tree map[string]any, prefix string) {
	for k, v := range tree {
		key := SnakeCase(k)
		if prefix != "" {
			key = prefix + "_" + key
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(out, nested, key)
			continue
		}
		out[key] = v
	}
}
