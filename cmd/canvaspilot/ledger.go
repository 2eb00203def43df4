package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexisbeaulieu97/canvaspilot/internal/model"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	summaryStyle = lipgloss.NewStyle().MarginTop(1)
)

// renderLedger formats the run's per-step ledger for the terminal.
func renderLedger(summary *model.RunSummary) string {
	if summary == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Run %s", summary.RunID)))
	b.WriteString("\n")

	for _, r := range summary.Results {
		line := fmt.Sprintf("%-10s %-20s %s", statusGlyph(r.Status), r.StepID, r.Kind)
		if r.Retries > 0 {
			line += fmt.Sprintf(" (retries: %d)", r.Retries)
		}
		if r.Message != "" {
			line += ": " + r.Message
		}
		b.WriteString(styleFor(r.Status).Render(line))
		b.WriteString("\n")
	}

	succeeded, skipped, failed := summary.Counts()
	tail := fmt.Sprintf("%d succeeded, %d skipped, %d failed", succeeded, skipped, failed)
	if summary.Aborted {
		tail += ": aborted: " + summary.AbortCause
	}
	b.WriteString(summaryStyle.Render(tail))

	return b.String()
}

func statusGlyph(status string) string {
	switch status {
	case model.StatusSuccess:
		return "ok"
	case model.StatusSkipped:
		return "skipped"
	case model.StatusFailed:
		return "failed"
	default:
		return status
	}
}

func styleFor(status string) lipgloss.Style {
	switch status {
	case model.StatusSuccess:
		return successStyle
	case model.StatusFailed:
		return failureStyle
	default:
		return skippedStyle
	}
}
