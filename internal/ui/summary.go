package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/usefulness/keeper/internal/diagnostics"
)

// Summary describes one finished inference run.
type Summary struct {
	Output        string
	Rules         int
	Members       int
	RootClasses   int
	TargetClasses int
	References    int
	Resolved      int
	Report        *diagnostics.Report
	Elapsed       time.Duration
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Width(18)
)

// RenderSummary returns a styled, human-readable account of a run.
func RenderSummary(s Summary) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Keep rule inference"))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", 19))
	b.WriteString("\n\n")

	rows := [][2]string{
		{"Root classes", humanize.Comma(int64(s.RootClasses))},
		{"Target classes", humanize.Comma(int64(s.TargetClasses))},
		{"References", humanize.Comma(int64(s.References))},
		{"Resolved", humanize.Comma(int64(s.Resolved))},
		{"Rules", fmt.Sprintf("%d (%d members)", s.Rules, s.Members)},
	}
	if s.Elapsed > 0 {
		rows = append(rows, [2]string{"Elapsed", s.Elapsed.Round(time.Millisecond).String()})
	}
	for _, row := range rows {
		b.WriteString(labelStyle.Render(row[0] + ":"))
		b.WriteString(row[1])
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if s.Report != nil && len(s.Report.Entries) > 0 {
		style := warnStyle
		if s.Report.Failed() {
			style = errStyle
		}
		b.WriteString(style.Render(strings.TrimSuffix(s.Report.Text(), "\n")))
		b.WriteString("\n\n")
	}

	switch {
	case s.Report != nil && s.Report.Failed():
		b.WriteString(errStyle.Render("✗ No rules written"))
	case s.Output != "":
		b.WriteString(okStyle.Render("✓ Rules written to " + s.Output))
	default:
		b.WriteString(okStyle.Render("✓ Done"))
	}
	b.WriteString("\n")
	return b.String()
}
