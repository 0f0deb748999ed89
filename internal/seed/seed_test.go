package seed_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"pdcdesk/internal/seed"
	"pdcdesk/internal/testsupport"
)

const marker = ".pdc_seeded"

func bundle(t *testing.T) (string, map[string]string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "ollama_models")
	files := map[string]string{
		filepath.Join("manifests", "registry.ollama.ai", "library", "qwen", "latest"): "manifest",
		filepath.Join("blobs", "sha256-1"): "weights",
	}
	testsupport.WriteTree(t, dir, files)
	return dir, files
}

func options(bundleDir, target string) seed.Options {
	return seed.Options{
		BundleDir:  bundleDir,
		TargetDir:  target,
		MarkerName: marker,
		LockPath:   filepath.Join(filepath.Dir(target), "seed.lock"),
	}
}

func TestRunSeedsEmptyTargetAndIsIdempotent(t *testing.T) {
	bundleDir, files := bundle(t)
	target := filepath.Join(t.TempDir(), "models")

	res, err := seed.Run(context.Background(), options(bundleDir, target))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Seeded || res.Reason != seed.ReasonSeeded || res.Files != len(files) {
		t.Fatalf("unexpected result: %+v", res)
	}

	got := testsupport.ReadTree(t, target)
	if got[marker] != "seeded" {
		t.Fatalf("expected marker content, got %q", got[marker])
	}
	for rel, content := range files {
		if got[rel] != content {
			t.Fatalf("%s: got %q want %q", rel, got[rel], content)
		}
	}

	// Change the bundle; a second run must not touch the target.
	testsupport.WriteTree(t, bundleDir, map[string]string{"extra": "new"})
	again, err := seed.Run(context.Background(), options(bundleDir, target))
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again.Seeded || again.Reason != seed.ReasonAlreadySeeded {
		t.Fatalf("expected second run to be a no-op, got %+v", again)
	}
	if _, err := os.Stat(filepath.Join(target, "extra")); !os.IsNotExist(err) {
		t.Fatalf("expected no new files after second run, stat err=%v", err)
	}
}

func TestRunLeavesNonEmptyTargetUntouched(t *testing.T) {
	for _, withMarker := range []bool{false, true} {
		name := "without marker"
		if withMarker {
			name = "with marker"
		}
		t.Run(name, func(t *testing.T) {
			bundleDir, _ := bundle(t)
			target := filepath.Join(t.TempDir(), "models")
			existing := map[string]string{filepath.Join("blobs", "sha256-1"): "user weights"}
			if withMarker {
				existing[marker] = "seeded"
			}
			testsupport.WriteTree(t, target, existing)

			res, err := seed.Run(context.Background(), options(bundleDir, target))
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if res.Seeded {
				t.Fatalf("expected no seeding, got %+v", res)
			}
			got := testsupport.ReadTree(t, target)
			if len(got) != len(existing) {
				t.Fatalf("expected target contents unchanged, got %v", got)
			}
			for rel, content := range existing {
				if got[rel] != content {
					t.Fatalf("%s modified: got %q want %q", rel, got[rel], content)
				}
			}
		})
	}
}

func TestRunWithoutBundleSkips(t *testing.T) {
	target := filepath.Join(t.TempDir(), "models")
	res, err := seed.Run(context.Background(), options(filepath.Join(t.TempDir(), "missing"), target))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Seeded || res.Reason != seed.ReasonNoBundle {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("expected target to stay absent, stat err=%v", err)
	}
}

func TestRunRequiresTarget(t *testing.T) {
	if _, err := seed.Run(context.Background(), seed.Options{MarkerName: marker}); err == nil {
		t.Fatal("expected error without target dir")
	}
}

func TestRunCancelledWritesNoMarker(t *testing.T) {
	bundleDir, _ := bundle(t)
	target := filepath.Join(t.TempDir(), "models")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := seed.Run(ctx, options(bundleDir, target))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Seeded {
		t.Fatalf("expected no seeding, got %+v", res)
	}
	if _, err := os.Stat(seed.MarkerPath(target, marker)); !os.IsNotExist(err) {
		t.Fatalf("expected no marker after cancellation, stat err=%v", err)
	}

	// The next launch retries and completes.
	again, err := seed.Run(context.Background(), options(bundleDir, target))
	if err != nil {
		t.Fatalf("retry Run: %v", err)
	}
	if !again.Seeded {
		t.Fatalf("expected retry to seed, got %+v", again)
	}
}

func TestRunFailedCopyLeavesTargetEmpty(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("needs a file the current user cannot read")
	}
	bundleDir, _ := bundle(t)
	unreadable := filepath.Join(bundleDir, "zz-unreadable")
	testsupport.WriteTree(t, bundleDir, map[string]string{"zz-unreadable": "x"})
	if err := os.Chmod(unreadable, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(unreadable, 0o644) })

	target := filepath.Join(t.TempDir(), "models")
	if _, err := seed.Run(context.Background(), options(bundleDir, target)); err == nil {
		t.Fatal("expected copy error")
	}
	if got := testsupport.ReadTree(t, target); len(got) != 0 {
		t.Fatalf("expected partial copy removed, got %v", got)
	}
}
