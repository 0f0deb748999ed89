package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pdcdesk/internal/history"
)

var historyHeaders = table.Row{"Time", "Service", "State", "PID", "Detail"}

// displayLabel turns an identifier such as "not_live" into "Not Live".
func displayLabel(value string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(value, "_", " "))
}

// renderHistoryTable lays out one run's lifecycle events, oldest first.
func renderHistoryTable(events []history.Event) string {
	if len(events) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(historyHeaders)

	for _, ev := range events {
		pid := ""
		if ev.PID > 0 {
			pid = strconv.Itoa(ev.PID)
		}
		tw.AppendRow(table.Row{
			ev.At.Local().Format(time.DateTime),
			displayLabel(ev.Service),
			displayLabel(ev.State),
			pid,
			ev.Detail,
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, WidthMax: 60},
	})
	return tw.Render()
}
