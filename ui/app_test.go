package ui

import (
	"io"
	"log/slog"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsato/seisan/pkg/config"
	"github.com/hsato/seisan/pkg/job"
	"github.com/hsato/seisan/pkg/protocol"
	"github.com/hsato/seisan/pkg/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp(t *testing.T) (*App, chan protocol.Command, chan protocol.Event) {
	t.Helper()
	commands := make(chan protocol.Command, 16)
	events := make(chan protocol.Event, 16)
	app := NewApp(commands, events, config.Default(), discardLogger())
	return app, commands, events
}

func key(s string) tea.KeyMsg {
	if len(s) == 1 {
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{}
}

func loadJobs(app *App, jobs ...job.Job) {
	app.applyEvent(&protocol.JobsLoaded{Jobs: jobs, Timestamp: time.Now()})
}

func expectCommand(t *testing.T, commands chan protocol.Command) protocol.Command {
	t.Helper()
	select {
	case cmd := <-commands:
		return cmd
	default:
		t.Fatal("expected a command")
		return nil
	}
}

func TestApp_ReloadKeySendsReload(t *testing.T) {
	app, commands, _ := newTestApp(t)

	app.Update(key("r"))

	_, ok := expectCommand(t, commands).(protocol.Reload)
	assert.True(t, ok)
}

func TestApp_CommitKeySendsCommitForSelection(t *testing.T) {
	app, commands, _ := newTestApp(t)
	a, b := *job.New("r1", "taxi.jpg"), *job.New("r2", "lunch.png")
	loadJobs(app, a, b)

	app.Update(key("down"))
	app.Update(key("c"))

	cmd, ok := expectCommand(t, commands).(protocol.Commit)
	require.True(t, ok)
	assert.Equal(t, b.ID, cmd.JobID)
}

func TestApp_CommitWithoutJobsSendsNothing(t *testing.T) {
	app, commands, _ := newTestApp(t)

	app.Update(key("c"))

	select {
	case cmd := <-commands:
		t.Fatalf("unexpected command %T", cmd)
	default:
	}
}

func TestApp_EditFlowSendsEditJobPerField(t *testing.T) {
	app, commands, _ := newTestApp(t)
	j := *job.New("r1", "taxi.jpg")
	loadJobs(app, j)

	app.Update(key("enter"))
	require.Equal(t, screenEdit, app.screen)

	app.input.SetValue("2024-06-15")
	app.Update(key("enter"))

	cmd, ok := expectCommand(t, commands).(protocol.EditJob)
	require.True(t, ok)
	assert.Equal(t, j.ID, cmd.JobID)
	assert.Equal(t, job.FieldDate, cmd.Field)
	assert.Equal(t, "2024-06-15", cmd.Value)
}

func TestApp_EditEscReturnsToJobs(t *testing.T) {
	app, _, _ := newTestApp(t)
	loadJobs(app, *job.New("r1", "taxi.jpg"))

	app.Update(key("enter"))
	app.Update(key("esc"))

	assert.Equal(t, screenJobs, app.screen)
}

func TestApp_EventsUpdateMirror(t *testing.T) {
	app, _, _ := newTestApp(t)
	j := *job.New("r1", "taxi.jpg")
	loadJobs(app, j)

	app.applyEvent(&protocol.JobProgress{JobID: j.ID, Status: job.StatusWritingSheet})
	assert.Equal(t, job.StatusWritingSheet, app.jobs[0].Status)
	assert.True(t, app.busy)

	app.applyEvent(&protocol.JobDone{JobID: j.ID, Artifact: storage.ArtifactRef{Name: "out.pdf"}})
	assert.Equal(t, job.StatusDone, app.jobs[0].Status)
	assert.False(t, app.busy)
}

func TestApp_JobFailedShowsErr(t *testing.T) {
	app, _, _ := newTestApp(t)
	j := *job.New("r1", "taxi.jpg")
	loadJobs(app, j)

	app.applyEvent(&protocol.JobFailed{JobID: j.ID, Err: assert.AnError})

	assert.Equal(t, job.StatusWaitingUserFix, app.jobs[0].Status)
	assert.NotEmpty(t, app.jobs[0].Err)
	assert.Contains(t, app.View(), "fix:")
}

func TestApp_FatalQuits(t *testing.T) {
	app, _, _ := newTestApp(t)

	_, cmd := app.Update(eventMsg{ev: &protocol.Fatal{Err: assert.AnError}})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestApp_QuitSendsShutdown(t *testing.T) {
	app, commands, _ := newTestApp(t)

	_, cmd := app.Update(key("q"))

	_, ok := expectCommand(t, commands).(protocol.Shutdown)
	assert.True(t, ok)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestApp_SettingsSaveSendsSnapshot(t *testing.T) {
	app, commands, _ := newTestApp(t)

	app.Update(key("s"))
	require.Equal(t, screenSettings, app.screen)

	// Walk every field, changing only the first one.
	app.input.SetValue("山田 太郎")
	for i := 0; i < len(settingsFields); i++ {
		app.Update(key("enter"))
	}

	cmd, ok := expectCommand(t, commands).(protocol.SaveSettings)
	require.True(t, ok)
	assert.Equal(t, "山田 太郎", cmd.Config.User.FullName)
	assert.Equal(t, screenJobs, app.screen)
}
