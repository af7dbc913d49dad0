package matrix

import (
	"testing"

	"github.com/harrison/stagehand/internal/models"
)

// TestExpandEmptyMatrix verifies an empty matrix yields one unnamed entry
func TestExpandEmptyMatrix(t *testing.T) {
	entries := Expand(models.Strategy{})
	if len(entries) != 1 {
		t.Fatalf("Expand() returned %d entries, want 1", len(entries))
	}
	if entries[0].Name != "" {
		t.Errorf("entry name = %q, want empty", entries[0].Name)
	}
	if len(entries[0].Values) != 0 {
		t.Errorf("entry values = %v, want empty", entries[0].Values)
	}
}

// TestExpandSingleAxis verifies one entry per declared value
func TestExpandSingleAxis(t *testing.T) {
	strategy := models.Strategy{
		Matrix: map[string][]string{
			"runtime": {"3.8", "3.9"},
		},
	}

	entries := Expand(strategy)
	if len(entries) != 2 {
		t.Fatalf("Expand() returned %d entries, want 2", len(entries))
	}
	if entries[0].Name != "runtime=3.8" {
		t.Errorf("entries[0].Name = %q, want %q", entries[0].Name, "runtime=3.8")
	}
	if entries[1].Values["runtime"] != "3.9" {
		t.Errorf("entries[1] runtime = %q, want %q", entries[1].Values["runtime"], "3.9")
	}
}

// TestExpandCartesianProduct verifies full cross-product expansion
func TestExpandCartesianProduct(t *testing.T) {
	strategy := models.Strategy{
		Matrix: map[string][]string{
			"runtime": {"3.8", "3.9"},
			"os":      {"linux", "macos"},
		},
	}

	entries := Expand(strategy)
	if len(entries) != 4 {
		t.Fatalf("Expand() returned %d entries, want 4", len(entries))
	}

	// Axes are sorted by name: os before runtime
	want := "os=linux, runtime=3.8"
	if entries[0].Name != want {
		t.Errorf("entries[0].Name = %q, want %q", entries[0].Name, want)
	}
}

// TestExpandDeterministicOrder verifies repeated expansion yields the same order
func TestExpandDeterministicOrder(t *testing.T) {
	strategy := models.Strategy{
		Matrix: map[string][]string{
			"a": {"1", "2"},
			"b": {"x", "y"},
			"c": {"p"},
		},
	}

	first := Expand(strategy)
	for i := 0; i < 10; i++ {
		again := Expand(strategy)
		if len(again) != len(first) {
			t.Fatalf("expansion size changed: %d vs %d", len(again), len(first))
		}
		for j := range first {
			if again[j].Name != first[j].Name {
				t.Fatalf("expansion order changed at %d: %q vs %q", j, again[j].Name, first[j].Name)
			}
		}
	}
}

// TestExpandExclude verifies exclude rules remove matching combinations
func TestExpandExclude(t *testing.T) {
	strategy := models.Strategy{
		Matrix: map[string][]string{
			"runtime": {"3.8", "3.9"},
			"os":      {"linux", "macos"},
		},
		Exclude: []map[string]string{
			{"runtime": "3.8", "os": "macos"},
		},
	}

	entries := Expand(strategy)
	if len(entries) != 3 {
		t.Fatalf("Expand() returned %d entries, want 3", len(entries))
	}
	for _, entry := range entries {
		if entry.Values["runtime"] == "3.8" && entry.Values["os"] == "macos" {
			t.Errorf("excluded combination %q still present", entry.Name)
		}
	}
}

// TestExpandExcludePartialSpec verifies a partial exclude matches all entries
// sharing its values
func TestExpandExcludePartialSpec(t *testing.T) {
	strategy := models.Strategy{
		Matrix: map[string][]string{
			"runtime": {"3.8", "3.9"},
			"os":      {"linux", "macos"},
		},
		Exclude: []map[string]string{
			{"os": "macos"},
		},
	}

	entries := Expand(strategy)
	if len(entries) != 2 {
		t.Fatalf("Expand() returned %d entries, want 2", len(entries))
	}
}

// TestExpandInclude verifies include entries are appended after the product
func TestExpandInclude(t *testing.T) {
	strategy := models.Strategy{
		Matrix: map[string][]string{
			"runtime": {"3.8"},
		},
		Include: []map[string]string{
			{"runtime": "3.10", "experimental": "true"},
		},
	}

	entries := Expand(strategy)
	if len(entries) != 2 {
		t.Fatalf("Expand() returned %d entries, want 2", len(entries))
	}
	last := entries[len(entries)-1]
	if last.Values["runtime"] != "3.10" || last.Values["experimental"] != "true" {
		t.Errorf("include entry values = %v", last.Values)
	}
}

// TestExpandIncludeOnly verifies a strategy with only includes yields exactly those
func TestExpandIncludeOnly(t *testing.T) {
	strategy := models.Strategy{
		Include: []map[string]string{
			{"runtime": "3.9"},
		},
	}

	entries := Expand(strategy)
	if len(entries) != 1 {
		t.Fatalf("Expand() returned %d entries, want 1", len(entries))
	}
	if entries[0].Values["runtime"] != "3.9" {
		t.Errorf("entry runtime = %q, want %q", entries[0].Values["runtime"], "3.9")
	}
}
