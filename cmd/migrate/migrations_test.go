package main

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/pressly/goose/v3"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file lives in cmd/migrate/, so repo root is ../..
	return filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", ".."))
}

func TestCollectMigrations_ParsesEveryDialect(t *testing.T) {
	root := repoRoot(t)
	var counts []int
	for _, dialect := range []string{"postgres", "sqlite"} {
		dir := filepath.Join(root, "db", "migrations", dialect)
		ms, err := goose.CollectMigrations(dir, 0, goose.MaxVersion)
		if err != nil {
			t.Fatalf("expected %s migrations to parse, got error: %v", dialect, err)
		}
		counts = append(counts, len(ms))
	}
	if counts[0] != counts[1] {
		t.Fatalf("dialects out of step: postgres=%d sqlite=%d", counts[0], counts[1])
	}
}
