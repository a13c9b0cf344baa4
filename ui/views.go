package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hsato/seisan/pkg/job"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("78"))

	busyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// View renders the active screen.
func (a *App) View() string {
	if a.quitting {
		return "bye\n"
	}
	switch a.screen {
	case screenEdit:
		return a.viewEdit()
	case screenSettings:
		return a.viewSettings()
	default:
		return a.viewJobs()
	}
}

func (a *App) viewJobs() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("seisan · receipts"))
	b.WriteString("\n\n")

	if len(a.jobs) == 0 {
		b.WriteString(dimStyle.Render("no receipts in the source folder (r to reload)"))
		b.WriteString("\n")
	}
	for i, j := range a.jobs {
		line := fmt.Sprintf("%-28s %-12s %10s  %-10s %s",
			truncate(j.Name, 28), j.Fields.Date, j.Fields.Amount, truncate(j.Fields.Category, 10), statusLabel(j))
		if i == a.selected {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(paneStyle.Render(a.viewLog()))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("r reload · enter edit · c commit · s settings · q quit"))
	return b.String()
}

func (a *App) viewEdit() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("edit " + a.jobName(a.editJobID)))
	b.WriteString("\n\n")
	for i, f := range editFields {
		marker := "  "
		value := a.fieldValue(a.editJobID, f.field)
		if i == a.editIdx {
			marker = selectedStyle.Render("> ")
			value = a.input.View()
		}
		b.WriteString(fmt.Sprintf("%s%-20s %s\n", marker, f.label, value))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("enter apply · tab next field · esc back"))
	return b.String()
}

func (a *App) viewSettings() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("settings"))
	b.WriteString("\n\n")
	for i, f := range settingsFields {
		marker := "  "
		value := f.get(a.draftCfg)
		if i == a.settingsIdx {
			marker = selectedStyle.Render("> ")
			value = a.input.View()
		}
		b.WriteString(fmt.Sprintf("%s%-16s %s\n", marker, f.label, value))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("enter next/save · esc discard"))
	return b.String()
}

func (a *App) viewLog() string {
	if len(a.logLines) == 0 {
		return dimStyle.Render("(no activity)")
	}
	return strings.Join(a.logLines, "\n")
}

func statusLabel(j job.Job) string {
	switch {
	case j.Status == job.StatusDone:
		return doneStyle.Render("done")
	case j.Status.Busy():
		return busyStyle.Render(string(j.Status))
	case j.Status == job.StatusWaitingUserFix:
		return errStyle.Render("fix: " + truncate(j.Err, 40))
	default:
		return dimStyle.Render("queued")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
