package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"pdcdesk/internal/config"
	"pdcdesk/internal/testsupport"
)

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func setupConfigFile(t *testing.T, opts ...testsupport.ConfigOption) (*config.Config, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, path, cfg)
	return cfg, path
}

func runCLI(t *testing.T, args []string, configPath string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func TestStatusJSONOnFreshInstall(t *testing.T) {
	backend := testsupport.Listen(t)
	cfg, path := setupConfigFile(t)
	cfg.Backend.Address = backend.Addr().String()
	writeTestConfig(t, path, cfg)

	out, err := runCLI(t, []string{"status", "--json"}, path)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var report statusReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode status json: %v\n%s", err, out)
	}
	if !report.ConfigExists || report.ConfigPath != path {
		t.Fatalf("unexpected config path in report: %+v", report)
	}
	if report.ShellRunning {
		t.Fatal("no shell should be running")
	}
	checks := map[string]checkView{}
	for _, c := range report.Checks {
		checks[c.Name] = c
	}
	if !checks["Backend API"].Passed {
		t.Fatalf("expected backend check to pass: %+v", checks["Backend API"])
	}
	if checks["Inference daemon"].Passed {
		t.Fatal("expected inference check to fail on a free port")
	}
	if len(report.Dependencies) != 2 {
		t.Fatalf("expected two dependency rows, got %d", len(report.Dependencies))
	}
	if report.LastRunID != "" {
		t.Fatalf("expected no history, got run %q", report.LastRunID)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, "supervisor.db")); !os.IsNotExist(err) {
		t.Fatalf("status must not create the journal, stat err=%v", err)
	}
}

func TestStatusTextShowsSections(t *testing.T) {
	_, path := setupConfigFile(t)
	out, err := runCLI(t, []string{"status"}, path)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"== Shell ==", "== Services ==", "== Executables ==", "== Last run ==", "no runs recorded"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestSeedCommand(t *testing.T) {
	cfg, path := setupConfigFile(t, testsupport.WithBundle(map[string]string{
		filepath.Join("blobs", "sha256-1"): "weights",
	}))

	out, err := runCLI(t, []string{"seed"}, path)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out, "Seeded") {
		t.Fatalf("unexpected seed output: %s", out)
	}
	if _, err := os.Stat(filepath.Join(cfg.Inference.ModelsDir, cfg.Inference.SeedMarker)); err != nil {
		t.Fatalf("expected marker: %v", err)
	}

	out, err = runCLI(t, []string{"seed"}, path)
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if !strings.Contains(out, "already seeded") {
		t.Fatalf("expected already seeded message, got: %s", out)
	}
}

func TestConfigInitShowAndPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "pdcdesk.toml")

	if _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, err := runCLI(t, []string{"config", "show"}, target)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	var shown config.Config
	if err := toml.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("decode shown config: %v\n%s", err, out)
	}
	if shown.Inference.Address != "127.0.0.1:11434" || shown.Backend.Address != "127.0.0.1:8000" {
		t.Fatalf("unexpected addresses in shown config: %+v", shown)
	}

	out, err = runCLI(t, []string{"config", "path"}, target)
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if !strings.Contains(out, target) || !strings.Contains(out, "exists: yes") {
		t.Fatalf("unexpected config path output: %s", out)
	}
}

func TestInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[backend]\naddress = \"nope\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, []string{"status"}, path); err == nil {
		t.Fatal("expected invalid config to fail")
	}
}

func TestStopWithoutShell(t *testing.T) {
	_, path := setupConfigFile(t)
	out, err := runCLI(t, []string{"stop"}, path)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !strings.Contains(out, "not running") {
		t.Fatalf("unexpected stop output: %s", out)
	}
}
