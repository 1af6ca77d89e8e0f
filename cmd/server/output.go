package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/kiranshivaraju/logsink/internal/stats"
	"github.com/kiranshivaraju/logsink/pkg/models"
)

var (
	headerColor = color.New(color.Bold)
	goodColor   = color.New(color.FgGreen)
	fairColor   = color.New(color.FgYellow)
	poorColor   = color.New(color.FgRed)
)

func printDaily(w io.Writer, cliType string, rows []models.DailyCount) {
	headerColor.Fprintf(w, "%s\n", cliType)
	if len(rows) == 0 {
		fmt.Fprintln(w, "  no reports")
		return
	}
	var total int64
	for _, r := range rows {
		fmt.Fprintf(w, "  %-12s %8d\n", r.Date, r.Count)
		total += r.Count
	}
	headerColor.Fprintf(w, "  %-12s %8d\n", "total", total)
}

func printSupport(w io.Writer, s *stats.SupportSummary) {
	fmt.Fprintf(w, "%d reports\n", s.Reports)
	printSupportGroup(w, s.Overall)
	for _, g := range s.ByCliType {
		printSupportGroup(w, g)
	}
}

func printSupportGroup(w io.Writer, g stats.SupportGroup) {
	headerColor.Fprintf(w, "\n%s (%d devices)\n", g.CliType, g.Devices)
	for _, f := range g.Features {
		pct := f.Percent(g.Devices)
		percentColor(pct).Fprintf(w, "  %-32s %6d %6.1f%%\n", f.Feature, f.Supported, pct)
	}
}

func percentColor(pct float64) *color.Color {
	switch {
	case pct >= 90:
		return goodColor
	case pct >= 50:
		return fairColor
	default:
		return poorColor
	}
}
