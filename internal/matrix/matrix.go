// Package matrix expands a job's build matrix into the set of independent
// entries the orchestrator executes. Expansion is deterministic: axes are
// ordered by name, values keep their declaration order.
package matrix

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harrison/stagehand/internal/models"
)

// Expand computes the matrix entries for a strategy.
//
// The cartesian product of all axis values is generated first, exclude
// rules remove matching entries, then include entries are appended.
// An empty matrix yields a single entry with no values, so a job without
// a matrix still executes exactly once.
func Expand(strategy models.Strategy) []models.MatrixEntry {
	if len(strategy.Matrix) == 0 && len(strategy.Include) == 0 {
		return []models.MatrixEntry{{Name: "", Values: map[string]string{}}}
	}

	axes := make([]string, 0, len(strategy.Matrix))
	for axis := range strategy.Matrix {
		axes = append(axes, axis)
	}
	sort.Strings(axes)

	combinations := []map[string]string{{}}
	for _, axis := range axes {
		values := strategy.Matrix[axis]
		next := make([]map[string]string, 0, len(combinations)*len(values))
		for _, combo := range combinations {
			for _, value := range values {
				expanded := make(map[string]string, len(combo)+1)
				for k, v := range combo {
					expanded[k] = v
				}
				expanded[axis] = value
				next = append(next, expanded)
			}
		}
		combinations = next
	}

	// Drop the empty placeholder when only includes are declared
	if len(strategy.Matrix) == 0 {
		combinations = nil
	}

	var entries []models.MatrixEntry
	for _, combo := range combinations {
		if matchesAny(combo, strategy.Exclude) {
			continue
		}
		entries = append(entries, models.MatrixEntry{
			Name:   entryName(combo),
			Values: combo,
		})
	}

	for _, include := range strategy.Include {
		values := make(map[string]string, len(include))
		for k, v := range include {
			values[k] = v
		}
		entries = append(entries, models.MatrixEntry{
			Name:   entryName(values),
			Values: values,
		})
	}

	return entries
}

// matchesAny reports whether the combination matches any of the given
// partial specs. A spec matches when every one of its key/value pairs is
// present in the combination.
func matchesAny(combo map[string]string, specs []map[string]string) bool {
	for _, spec := range specs {
		if len(spec) == 0 {
			continue
		}
		matched := true
		for k, v := range spec {
			if combo[k] != v {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// entryName builds the deterministic display name for a combination,
// e.g. "os=linux, runtime=3.9"
func entryName(values map[string]string) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, values[k]))
	}
	return strings.Join(parts, ", ")
}
