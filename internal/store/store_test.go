package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/harrison/stagehand/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRunResult(runID string, startedAt time.Time) *models.RunResult {
	return &models.RunResult{
		RunID:    runID,
		Workflow: "unit-test",
		Event:    models.Event{Kind: models.EventPush, Branch: "main", Commit: "abc1234"},
		Jobs: []models.JobResult{
			{
				Job:     models.Job{Name: "test"},
				Entry:   models.MatrixEntry{Name: "runtime=3.8", Values: map[string]string{"runtime": "3.8"}},
				EnvName: "test-runtime-3.8",
				Runtime: "3.8",
				Status:  models.StatusPassed,
				Coverage: &models.CoverageReport{
					LineRate:     0.85,
					LinesValid:   100,
					LinesCovered: 85,
				},
				Duration: 3 * time.Second,
			},
			{
				Job:      models.Job{Name: "test"},
				Entry:    models.MatrixEntry{Name: "runtime=3.9", Values: map[string]string{"runtime": "3.9"}},
				EnvName:  "test-runtime-3.9",
				Runtime:  "3.9",
				Status:   models.StatusFailed,
				Error:    fmt.Errorf("step %q failed", "pytest"),
				Duration: 2 * time.Second,
			},
		},
		TotalJobs: 2,
		Passed:    1,
		Failed:    1,
		StartedAt: startedAt,
		Duration:  5 * time.Second,
	}
}

func TestStoreSaveAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	result := sampleRunResult("run-1", time.Now())
	if err := s.SaveRun(ctx, result); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	run, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}

	if run.Workflow != "unit-test" {
		t.Errorf("Workflow = %q, want %q", run.Workflow, "unit-test")
	}
	if run.EventKind != "push" {
		t.Errorf("EventKind = %q, want %q", run.EventKind, "push")
	}
	if run.Branch != "main" {
		t.Errorf("Branch = %q, want %q", run.Branch, "main")
	}
	if run.TotalJobs != 2 || run.Passed != 1 || run.Failed != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1", run.TotalJobs, run.Passed, run.Failed)
	}
	if run.Status != string(models.StatusFailed) {
		t.Errorf("Status = %q, want %q", run.Status, models.StatusFailed)
	}
	if run.Duration != 5*time.Second {
		t.Errorf("Duration = %v, want 5s", run.Duration)
	}

	if len(run.Jobs) != 2 {
		t.Fatalf("len(Jobs) = %d, want 2", len(run.Jobs))
	}
	first := run.Jobs[0]
	if first.EntryName != "runtime=3.8" {
		t.Errorf("EntryName = %q, want %q", first.EntryName, "runtime=3.8")
	}
	if !first.HasCoverage || first.LineRate != 0.85 {
		t.Errorf("coverage = %v/%v, want true/0.85", first.HasCoverage, first.LineRate)
	}
	second := run.Jobs[1]
	if second.HasCoverage {
		t.Error("second job should have no coverage")
	}
	if second.ErrorMessage == "" {
		t.Error("failed job should record an error message")
	}
}

func TestStoreGetRunNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetRun() error = %v, want sql.ErrNoRows", err)
	}
}

func TestStoreListRunsOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		result := sampleRunResult(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Minute))
		if err := s.SaveRun(ctx, result); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len(runs) = %d, want 3", len(runs))
	}
	// Newest first
	if runs[0].RunID != "run-2" || runs[2].RunID != "run-0" {
		t.Errorf("order = [%s %s %s], want newest first", runs[0].RunID, runs[1].RunID, runs[2].RunID)
	}
	// List does not hydrate job records
	if len(runs[0].Jobs) != 0 {
		t.Errorf("ListRuns should not load job records, got %d", len(runs[0].Jobs))
	}

	limited, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns(limit) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len(limited) = %d, want 2", len(limited))
	}
}

func TestStoreSaveRunNil(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveRun(context.Background(), nil); err == nil {
		t.Error("SaveRun(nil) = nil, want error")
	}
}

func TestStoreDuplicateRunID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	result := sampleRunResult("run-1", time.Now())
	if err := s.SaveRun(ctx, result); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if err := s.SaveRun(ctx, result); err == nil {
		t.Error("SaveRun() with duplicate run_id = nil, want error")
	}
}

func TestStorePrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := sampleRunResult("run-old", time.Now().Add(-48*time.Hour))
	recent := sampleRunResult("run-recent", time.Now())
	if err := s.SaveRun(ctx, old); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if err := s.SaveRun(ctx, recent); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	removed, err := s.Prune(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Prune() = %d, want 1", removed)
	}

	if _, err := s.GetRun(ctx, "run-old"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("pruned run still present, err = %v", err)
	}
	if _, err := s.GetRun(ctx, "run-recent"); err != nil {
		t.Errorf("recent run missing after prune: %v", err)
	}
}

func TestStoreMigrationIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	s1, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := s1.SaveRun(context.Background(), sampleRunResult("run-1", time.Now())); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	s1.Close()

	// Reopening applies no new migrations and keeps existing data
	s2, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore() reopen error = %v", err)
	}
	defer s2.Close()

	version, err := s2.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != 1 {
		t.Errorf("SchemaVersion() = %d, want 1", version)
	}

	runs, err := s2.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("len(runs) = %d, want 1", len(runs))
	}
}

func TestStoreCreatesParentDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "history.db")

	s, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	s.Close()
}
