package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_MatchesTemplateLayout(t *testing.T) {
	cfg := Default()

	assert.Equal(t, AdapterDrive, cfg.Adapter)
	assert.Equal(t, "F3", cfg.Template.NameCell)
	assert.Equal(t, "B3", cfg.Template.TargetMonthCell)
	assert.Equal(t, 44, cfg.Expense.StartRow)
	assert.Equal(t, "B", cfg.Expense.DateCol)
	assert.Equal(t, "F", cfg.Expense.NoteCol)
}

func TestLoad_CreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.FileExists(t, path)
}

func TestLoad_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Adapter = AdapterLocal
	cfg.Local = LocalConfig{
		InputDir:     "/receipts/in",
		OutputDir:    "/receipts/out",
		TemplatePath: "/receipts/template.xlsx",
		WorkDir:      "/receipts/work",
	}
	cfg.User.FullName = "Hiroshi Sato"
	cfg.Expense.StartRow = 20
	cfg.Reload.Every = 5 * time.Minute
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("user:\n  full_name: Aiko Tanaka\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Aiko Tanaka", cfg.User.FullName)
	assert.Equal(t, 44, cfg.Expense.StartRow)
	assert.Equal(t, "F3", cfg.Template.NameCell)
}

func TestSnapshot_RefsFollowAdapterMode(t *testing.T) {
	cfg := Default()
	cfg.Google = GoogleConfig{
		InputFolderID:   "in-id",
		OutputFolderID:  "out-id",
		TemplateSheetID: "tmpl-id",
	}
	cfg.Local = LocalConfig{
		InputDir:     "/in",
		OutputDir:    "/out",
		TemplatePath: "/tmpl.xlsx",
	}

	cfg.Adapter = AdapterDrive
	assert.Equal(t, "in-id", cfg.InputRef())
	assert.Equal(t, "out-id", cfg.OutputRef())
	assert.Equal(t, "tmpl-id", cfg.TemplateRef())

	cfg.Adapter = AdapterLocal
	assert.Equal(t, "/in", cfg.InputRef())
	assert.Equal(t, "/out", cfg.OutputRef())
	assert.Equal(t, "/tmpl.xlsx", cfg.TemplateRef())
}

func TestValidateForCommit(t *testing.T) {
	cfg := Default()
	cfg.User.FullName = "Hiroshi Sato"
	assert.Error(t, cfg.ValidateForCommit())

	cfg.Google.TemplateSheetID = "tmpl-id"
	cfg.Google.OutputFolderID = "out-id"
	assert.NoError(t, cfg.ValidateForCommit())

	cfg.User.FullName = ""
	assert.Error(t, cfg.ValidateForCommit())
}

func TestClone_IsIndependent(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.User.FullName = "Someone Else"

	assert.Equal(t, "Your Name", cfg.User.FullName)
}
