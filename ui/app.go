// Package ui is the interactive driver: a bubbletea program that mirrors
// the engine's job set and translates key presses into commands.
//
// The model never talks to storage itself. It holds a read-only copy of the
// jobs, updated exclusively by engine events, so a slow network call can
// never freeze the terminal.
package ui

import (
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/hsato/seisan/pkg/config"
	"github.com/hsato/seisan/pkg/job"
	"github.com/hsato/seisan/pkg/protocol"
)

// screen represents which view is on top.
type screen int

const (
	screenJobs screen = iota
	screenEdit
	screenSettings
)

const logPaneLines = 6

// eventMsg wraps one engine event for the bubbletea update loop.
type eventMsg struct {
	ev protocol.Event
}

// editField pairs a job field with its editor label.
type editField struct {
	field job.Field
	label string
}

var editFields = []editField{
	{job.FieldDate, "Date (YYYY-MM-DD)"},
	{job.FieldReason, "Reason"},
	{job.FieldAmount, "Amount"},
	{job.FieldCategory, "Category"},
	{job.FieldNote, "Note"},
}

// settingsField names one editable settings entry.
type settingsField struct {
	label string
	get   func(*config.Snapshot) string
	set   func(*config.Snapshot, string)
}

var settingsFields = []settingsField{
	{"Full name", func(c *config.Snapshot) string { return c.User.FullName },
		func(c *config.Snapshot, v string) { c.User.FullName = v }},
	{"Input folder", func(c *config.Snapshot) string { return c.Google.InputFolderID },
		func(c *config.Snapshot, v string) { c.Google.InputFolderID = v }},
	{"Output folder", func(c *config.Snapshot) string { return c.Google.OutputFolderID },
		func(c *config.Snapshot, v string) { c.Google.OutputFolderID = v }},
	{"Template sheet", func(c *config.Snapshot) string { return c.Google.TemplateSheetID },
		func(c *config.Snapshot, v string) { c.Google.TemplateSheetID = v }},
}

// App is the bubbletea model.
type App struct {
	commands chan<- protocol.Command
	events   <-chan protocol.Event
	cfg      *config.Snapshot
	logger   *slog.Logger

	screen   screen
	jobs     []job.Job
	selected int

	editJobID uuid.UUID
	editIdx   int
	input     textinput.Model

	draftCfg    *config.Snapshot
	settingsIdx int

	logLines []string
	busy     bool
	fatal    error
	quitting bool

	width  int
	height int
}

// NewApp creates the driver over the engine's channels.
func NewApp(commands chan<- protocol.Command, events <-chan protocol.Event, cfg *config.Snapshot, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	input := textinput.New()
	input.CharLimit = 120
	return &App{
		commands: commands,
		events:   events,
		cfg:      cfg.Clone(),
		logger:   logger,
		input:    input,
	}
}

// Init starts the event pump.
func (a *App) Init() tea.Cmd {
	return a.waitEvent()
}

// waitEvent blocks on the engine's event channel inside a tea.Cmd, keeping
// the update loop itself non-blocking.
func (a *App) waitEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-a.events
		if !ok {
			return nil
		}
		return eventMsg{ev: ev}
	}
}

// Update handles one message.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case eventMsg:
		a.applyEvent(msg.ev)
		if a.fatal != nil {
			return a, tea.Quit
		}
		return a, a.waitEvent()

	case tea.KeyMsg:
		switch a.screen {
		case screenEdit:
			return a.updateEdit(msg)
		case screenSettings:
			return a.updateSettings(msg)
		default:
			return a.updateJobs(msg)
		}
	}
	return a, nil
}

// applyEvent folds one engine event into the mirror.
func (a *App) applyEvent(ev protocol.Event) {
	switch ev := ev.(type) {
	case *protocol.JobsLoaded:
		a.jobs = ev.Jobs
		if a.selected >= len(a.jobs) {
			a.selected = max(0, len(a.jobs)-1)
		}
		a.log(fmt.Sprintf("loaded %d receipts", len(a.jobs)))

	case *protocol.JobProgress:
		a.setJobStatus(ev.JobID, ev.Status, "")
		a.busy = ev.Status.Busy()
		a.log(fmt.Sprintf("%s: %s", a.jobName(ev.JobID), ev.Status))

	case *protocol.JobFailed:
		a.setJobStatus(ev.JobID, job.StatusWaitingUserFix, ev.Err.Error())
		a.busy = false
		a.log(fmt.Sprintf("%s: failed: %v", a.jobName(ev.JobID), ev.Err))

	case *protocol.JobDone:
		a.setJobStatus(ev.JobID, job.StatusDone, "")
		a.busy = false
		a.log(fmt.Sprintf("%s: uploaded %s", a.jobName(ev.JobID), ev.Artifact.Name))

	case *protocol.EditRejected:
		a.log(fmt.Sprintf("edit rejected: %v", ev.Err))

	case *protocol.SettingsSaved:
		a.log("settings saved")

	case *protocol.Fatal:
		a.fatal = ev.Err
		a.log(fmt.Sprintf("fatal: %v", ev.Err))
	}
}

func (a *App) setJobStatus(id uuid.UUID, st job.Status, errMsg string) {
	for i := range a.jobs {
		if a.jobs[i].ID == id {
			a.jobs[i].Status = st
			a.jobs[i].Err = errMsg
			return
		}
	}
}

func (a *App) jobName(id uuid.UUID) string {
	for i := range a.jobs {
		if a.jobs[i].ID == id {
			return a.jobs[i].Name
		}
	}
	return id.String()[:8]
}

func (a *App) log(line string) {
	a.logLines = append(a.logLines, line)
	if len(a.logLines) > logPaneLines {
		a.logLines = a.logLines[len(a.logLines)-logPaneLines:]
	}
	a.logger.Info(line)
}

func (a *App) updateJobs(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		a.quitting = true
		a.commands <- protocol.Shutdown{}
		return a, tea.Quit

	case "up", "k":
		if a.selected > 0 {
			a.selected--
		}

	case "down", "j":
		if a.selected < len(a.jobs)-1 {
			a.selected++
		}

	case "r":
		a.commands <- protocol.Reload{}

	case "c":
		if j, ok := a.selectedJob(); ok {
			a.commands <- protocol.Commit{JobID: j.ID}
		}

	case "enter", "e":
		if j, ok := a.selectedJob(); ok {
			a.screen = screenEdit
			a.editJobID = j.ID
			a.editIdx = 0
			a.resetInput(j.Fields.Get(editFields[0].field))
		}

	case "s":
		a.screen = screenSettings
		a.draftCfg = a.cfg.Clone()
		a.settingsIdx = 0
		a.resetInput(settingsFields[0].get(a.draftCfg))
	}
	return a, nil
}

func (a *App) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.screen = screenJobs
		return a, nil

	case "enter":
		a.commands <- protocol.EditJob{
			JobID: a.editJobID,
			Field: editFields[a.editIdx].field,
			Value: a.input.Value(),
		}
		a.editIdx++
		if a.editIdx >= len(editFields) {
			a.screen = screenJobs
			return a, nil
		}
		a.resetInput(a.fieldValue(a.editJobID, editFields[a.editIdx].field))
		return a, nil

	case "tab":
		a.editIdx = (a.editIdx + 1) % len(editFields)
		a.resetInput(a.fieldValue(a.editJobID, editFields[a.editIdx].field))
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.screen = screenJobs
		a.draftCfg = nil
		return a, nil

	case "enter", "tab":
		settingsFields[a.settingsIdx].set(a.draftCfg, a.input.Value())
		if msg.String() == "enter" && a.settingsIdx == len(settingsFields)-1 {
			a.cfg = a.draftCfg.Clone()
			a.commands <- protocol.SaveSettings{Config: a.draftCfg}
			a.screen = screenJobs
			a.draftCfg = nil
			return a, nil
		}
		a.settingsIdx = (a.settingsIdx + 1) % len(settingsFields)
		a.resetInput(settingsFields[a.settingsIdx].get(a.draftCfg))
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) selectedJob() (job.Job, bool) {
	if a.selected < 0 || a.selected >= len(a.jobs) {
		return job.Job{}, false
	}
	return a.jobs[a.selected], true
}

func (a *App) fieldValue(id uuid.UUID, field job.Field) string {
	for i := range a.jobs {
		if a.jobs[i].ID == id {
			return a.jobs[i].Fields.Get(field)
		}
	}
	return ""
}

func (a *App) resetInput(value string) {
	a.input.SetValue(value)
	a.input.CursorEnd()
	a.input.Focus()
}
