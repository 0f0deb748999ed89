package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pdcdesk/internal/config"
	"pdcdesk/internal/deps"
	"pdcdesk/internal/fileutil"
	"pdcdesk/internal/history"
	"pdcdesk/internal/preflight"
	"pdcdesk/internal/supervisorrun"
)

type statusReport struct {
	ConfigPath   string          `json:"config_path"`
	ConfigExists bool            `json:"config_exists"`
	ShellPID     int             `json:"shell_pid,omitempty"`
	ShellRunning bool            `json:"shell_running"`
	Checks       []checkView     `json:"checks"`
	Dependencies []dependencyRow `json:"dependencies"`
	LastRunID    string          `json:"last_run_id,omitempty"`
	LastRun      []eventView     `json:"last_run,omitempty"`

	checkResults []preflight.Result
	depStatuses  []deps.Status
	events       []history.Event
}

type checkView struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

type dependencyRow struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Available bool   `json:"available"`
	Source    string `json:"source,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

type eventView struct {
	At      time.Time `json:"at"`
	Service string    `json:"service"`
	State   string    `json:"state"`
	PID     int       `json:"pid,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sidecar endpoints, executables, and the last run's lifecycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := buildStatusReport(cmd.Context(), ctx, cfg)
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printStatusReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func buildStatusReport(ctx context.Context, cmdCtx *commandContext, cfg *config.Config) statusReport {
	report := statusReport{
		ConfigPath:   cmdCtx.configPath,
		ConfigExists: cmdCtx.configExists,
		checkResults: preflight.RunAll(ctx, cfg),
		depStatuses:  preflight.CheckSystemDeps(cfg),
	}
	for _, r := range report.checkResults {
		report.Checks = append(report.Checks, checkView{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	for _, s := range report.depStatuses {
		report.Dependencies = append(report.Dependencies, dependencyRow{
			Name:      s.Name,
			Command:   s.Command,
			Available: s.Available,
			Source:    s.Source,
			Detail:    s.Detail,
		})
	}

	dataDir, err := cfg.DataDirPath()
	if err != nil {
		return report
	}
	if pid, alive, err := supervisorrun.RunningPID(dataDir); err == nil {
		report.ShellPID = pid
		report.ShellRunning = alive
	}

	// Never create or migrate the journal from a read-only command.
	dbPath := filepath.Join(dataDir, history.FileName)
	if !fileutil.Exists(dbPath) {
		return report
	}
	store, err := history.OpenReadOnly(dbPath)
	if err != nil {
		return report
	}
	defer store.Close()
	runID, err := store.LatestRunID(ctx)
	if err != nil || runID == "" {
		return report
	}
	events, err := store.RunEvents(ctx, runID)
	if err != nil {
		return report
	}
	report.LastRunID = runID
	report.events = events
	for _, ev := range events {
		report.LastRun = append(report.LastRun, eventView{
			At:      ev.At,
			Service: ev.Service,
			State:   ev.State,
			PID:     ev.PID,
			Detail:  ev.Detail,
		})
	}
	return report
}

func printStatusReport(cmd *cobra.Command, report statusReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	lines := renderSectionHeader("Shell", colorize)
	configDetail := report.ConfigPath
	if !report.ConfigExists {
		configDetail += " (not found, defaults in use)"
	}
	lines = append(lines, renderStatusLine("Config", statusInfo, configDetail, colorize))
	switch {
	case report.ShellRunning:
		lines = append(lines, renderStatusLine("Shell", statusOK, fmt.Sprintf("running (pid %d)", report.ShellPID), colorize))
	case report.ShellPID > 0:
		lines = append(lines, renderStatusLine("Shell", statusWarn, fmt.Sprintf("stale pid file (pid %d)", report.ShellPID), colorize))
	default:
		lines = append(lines, renderStatusLine("Shell", statusInfo, "not running", colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Services", colorize)...)
	for _, result := range report.checkResults {
		failKind := statusError
		if strings.HasSuffix(result.Detail, "(not listening)") {
			failKind = statusWarn
		}
		lines = append(lines, checkLine(result, failKind, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Executables", colorize)...)
	if len(report.depStatuses) == 0 {
		lines = append(lines, renderStatusLine("Sidecars", statusInfo, "all services disabled", colorize))
	}
	for _, status := range report.depStatuses {
		lines = append(lines, dependencyLine(status, colorize))
	}

	for _, line := range lines {
		fmt.Fprintln(out, line)
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Last run", colorize) {
		fmt.Fprintln(out, line)
	}
	if report.LastRunID == "" {
		fmt.Fprintln(out, renderStatusLine("History", statusInfo, "no runs recorded", colorize))
		return
	}
	fmt.Fprintln(out, renderStatusLine("Run", statusInfo, report.LastRunID, colorize))
	fmt.Fprintln(out, renderHistoryTable(report.events))
}
