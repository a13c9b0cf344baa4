// Package config models the on-disk configuration and the immutable
// snapshot the engine reads it through.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// AdapterMode selects the storage backend.
type AdapterMode string

const (
	AdapterDrive AdapterMode = "drive"
	AdapterLocal AdapterMode = "local"
)

// GoogleConfig holds the Drive/Sheets identifiers used in drive mode.
type GoogleConfig struct {
	// InputFolderID is the Drive folder holding receipt images.
	InputFolderID string `yaml:"input_folder_id"`
	// OutputFolderID is the Drive folder exported PDFs are uploaded to.
	OutputFolderID string `yaml:"output_folder_id"`
	// TemplateSheetID is the template spreadsheet id (or a shortcut to it).
	TemplateSheetID string `yaml:"template_sheet_id"`
	// CredentialsFile is the OAuth client secret JSON path.
	CredentialsFile string `yaml:"credentials_file"`
}

// LocalConfig holds the directory layout used in local mode.
type LocalConfig struct {
	InputDir     string `yaml:"input_dir"`
	OutputDir    string `yaml:"output_dir"`
	TemplatePath string `yaml:"template_path"`
	WorkDir      string `yaml:"work_dir"`
}

// UserConfig holds profile values written into the template.
type UserConfig struct {
	FullName string `yaml:"full_name"`
}

// TemplateConfig names the fixed cells inside the template sheet.
type TemplateConfig struct {
	NameCell        string `yaml:"name_cell"`
	TargetMonthCell string `yaml:"target_month_cell"`
}

// ExpenseConfig describes the repeating expense-line region.
type ExpenseConfig struct {
	StartRow    int    `yaml:"start_row"`
	DateCol     string `yaml:"date_col"`
	ReasonCol   string `yaml:"reason_col"`
	AmountCol   string `yaml:"amount_col"`
	CategoryCol string `yaml:"category_col"`
	NoteCol     string `yaml:"note_col"`
}

// ReloadConfig enables periodic re-scans of the source folder. Every takes
// precedence when both are set.
type ReloadConfig struct {
	Every time.Duration `yaml:"every,omitempty"`
	Cron  string        `yaml:"cron,omitempty"`
}

// LogConfig controls the engine log output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Snapshot is the full configuration. The engine treats a Snapshot as
// immutable; settings changes arrive as a replacement Snapshot between
// commits, never as a mutation mid-pipeline.
type Snapshot struct {
	Adapter  AdapterMode    `yaml:"adapter"`
	Google   GoogleConfig   `yaml:"google"`
	Local    LocalConfig    `yaml:"local"`
	User     UserConfig     `yaml:"user"`
	Template TemplateConfig `yaml:"template"`
	Expense  ExpenseConfig  `yaml:"expense"`
	Reload   ReloadConfig   `yaml:"reload"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns a Snapshot aligned with the expense template layout.
func Default() *Snapshot {
	return &Snapshot{
		Adapter: AdapterDrive,
		User:    UserConfig{FullName: "Your Name"},
		Template: TemplateConfig{
			NameCell:        "F3",
			TargetMonthCell: "B3",
		},
		Expense: ExpenseConfig{
			StartRow:    44,
			DateCol:     "B",
			ReasonCol:   "C",
			AmountCol:   "D",
			CategoryCol: "E",
			NoteCol:     "F",
		},
		Log: LogConfig{Level: "info", Format: "console", File: "seisan.log"},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "seisan", "config.yaml"), nil
}

// Load reads the config file, creating it with defaults when missing.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the snapshot as YAML, atomically replacing the previous file.
func (s *Snapshot) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: ensure config dir: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("config: replace %s: %w", path, err)
	}
	return nil
}

// Clone returns an independent copy; the engine hands clones to goroutines
// so a SaveSettings swap can never race a running pipeline.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	return &c
}

// InputRef returns the source folder reference for the active adapter mode.
func (s *Snapshot) InputRef() string {
	if s.Adapter == AdapterLocal {
		return s.Local.InputDir
	}
	return s.Google.InputFolderID
}

// OutputRef returns the destination folder reference.
func (s *Snapshot) OutputRef() string {
	if s.Adapter == AdapterLocal {
		return s.Local.OutputDir
	}
	return s.Google.OutputFolderID
}

// TemplateRef returns the template resource reference.
func (s *Snapshot) TemplateRef() string {
	if s.Adapter == AdapterLocal {
		return s.Local.TemplatePath
	}
	return s.Google.TemplateSheetID
}

// ValidateForCommit checks that everything the commit pipeline dereferences
// is present. Listing only needs InputRef, so this is checked per commit,
// not at load time.
func (s *Snapshot) ValidateForCommit() error {
	if s.TemplateRef() == "" {
		return fmt.Errorf("config: template reference is not set")
	}
	if s.OutputRef() == "" {
		return fmt.Errorf("config: output folder is not set")
	}
	if s.User.FullName == "" {
		return fmt.Errorf("config: user full name is not set")
	}
	return nil
}
