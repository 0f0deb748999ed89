package history_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pdcdesk/internal/history"
	"pdcdesk/internal/testsupport"
)

func TestRecordAndReadLatestRun(t *testing.T) {
	store := testsupport.MustOpenHistory(t, filepath.Join(t.TempDir(), history.FileName))
	ctx := context.Background()

	latest, err := store.LatestRunID(ctx)
	if err != nil {
		t.Fatalf("LatestRunID on empty store: %v", err)
	}
	if latest != "" {
		t.Fatalf("expected empty journal, got run %q", latest)
	}

	events := []history.Event{
		{RunID: "run-a", Service: "inference", State: "not_live"},
		{RunID: "run-a", Service: "inference", State: "spawned", PID: 101},
		{RunID: "run-b", Service: "backend", State: "live"},
		{RunID: "run-b", Service: "inference", State: "spawned", PID: 202, Detail: "/opt/pdc/ollama"},
	}
	for _, ev := range events {
		if err := store.Record(ctx, ev); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	latest, err = store.LatestRunID(ctx)
	if err != nil {
		t.Fatalf("LatestRunID: %v", err)
	}
	if latest != "run-b" {
		t.Fatalf("expected run-b, got %q", latest)
	}

	got, err := store.RunEvents(ctx, "run-b")
	if err != nil {
		t.Fatalf("RunEvents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[1].PID != 202 || got[1].Detail != "/opt/pdc/ollama" || got[1].At.IsZero() {
		t.Fatalf("unexpected event: %+v", got[1])
	}
}

func TestRecordRejectsIncompleteEvent(t *testing.T) {
	store := testsupport.MustOpenHistory(t, filepath.Join(t.TempDir(), history.FileName))
	if err := store.Record(context.Background(), history.Event{RunID: "r"}); err == nil {
		t.Fatal("expected error for event without service/state")
	}
}

func TestPruneKeepsNewestRuns(t *testing.T) {
	store := testsupport.MustOpenHistory(t, filepath.Join(t.TempDir(), history.FileName))
	ctx := context.Background()
	for _, run := range []string{"r1", "r2", "r3"} {
		for _, state := range []string{"not_live", "spawned", "terminated"} {
			if err := store.Record(ctx, history.Event{RunID: run, Service: "backend", State: state}); err != nil {
				t.Fatalf("Record: %v", err)
			}
		}
	}

	removed, err := store.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 rows removed, got %d", removed)
	}
	old, err := store.RunEvents(ctx, "r1")
	if err != nil {
		t.Fatalf("RunEvents: %v", err)
	}
	if len(old) != 0 {
		t.Fatalf("expected r1 pruned, got %d events", len(old))
	}
	kept, err := store.RunEvents(ctx, "r2")
	if err != nil {
		t.Fatalf("RunEvents: %v", err)
	}
	if len(kept) != 3 {
		t.Fatalf("expected r2 kept, got %d events", len(kept))
	}
}

func TestReopenKeepsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), history.FileName)
	first, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.Record(context.Background(), history.Event{RunID: "r", Service: "backend", State: "live"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := testsupport.MustOpenHistory(t, path)
	events, err := second.RunEvents(context.Background(), "r")
	if err != nil {
		t.Fatalf("RunEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected event to survive reopen, got %d", len(events))
	}
}

func TestOpenReadOnlyReadsWithoutWriting(t *testing.T) {
	path := filepath.Join(t.TempDir(), history.FileName)
	writer, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	if err := writer.Record(ctx, history.Event{RunID: "run-a", Service: "backend", State: "spawned", PID: 7}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reader, err := history.OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly: %v", err)
	}
	defer reader.Close()
	latest, err := reader.LatestRunID(ctx)
	if err != nil || latest != "run-a" {
		t.Fatalf("expected run-a, got %q err=%v", latest, err)
	}
	if err := reader.Record(ctx, history.Event{RunID: "run-b", Service: "backend", State: "live"}); err == nil {
		t.Fatal("expected read-only store to reject writes")
	}
}

func TestOpenReadOnlyNeverCreatesOrMigrates(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.db")
	if _, err := history.OpenReadOnly(missing); err == nil {
		t.Fatal("expected error for missing journal")
	}
	if _, err := os.Stat(missing); !os.IsNotExist(err) {
		t.Fatalf("expected missing journal to stay absent, stat err=%v", err)
	}

	empty := filepath.Join(dir, "empty.db")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := history.OpenReadOnly(empty)
	if err != nil {
		t.Fatalf("OpenReadOnly: %v", err)
	}
	defer store.Close()
	if _, err := store.LatestRunID(context.Background()); err == nil {
		t.Fatal("expected query to fail on an unmigrated journal")
	}
	info, err := os.Stat(empty)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Fatalf("expected unmigrated journal left untouched, size=%d", info.Size())
	}
}
