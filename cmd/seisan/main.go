// Command seisan reviews receipt images in a source folder and commits each
// one into a copy of the expense-report template: fill the sheet, export a
// document, upload it to the destination folder.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hsato/seisan/pkg/auth"
	"github.com/hsato/seisan/pkg/config"
	"github.com/hsato/seisan/pkg/engine"
	"github.com/hsato/seisan/pkg/ledger"
	"github.com/hsato/seisan/pkg/logging"
	"github.com/hsato/seisan/pkg/schedule"
	"github.com/hsato/seisan/pkg/storage"
	"github.com/hsato/seisan/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "seisan:", err)
		os.Exit(1)
	}
}

func run() error {
	defaultCfg, err := config.DefaultPath()
	if err != nil {
		return err
	}
	cfgPath := flag.String("config", defaultCfg, "config file path")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}

	// The TUI owns the terminal, so logs go to a file.
	logger, closeLog, err := logging.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	if err != nil {
		return err
	}
	defer closeLog.Close()

	stateDir := filepath.Dir(*cfgPath)

	db, err := gorm.Open(sqlite.Open(filepath.Join(stateDir, "ledger.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	led := ledger.New(db)
	if err := led.Migrate(context.Background()); err != nil {
		return fmt.Errorf("migrate ledger: %w", err)
	}

	adapter, err := buildAdapter(cfg, stateDir, logger)
	if err != nil {
		return err
	}

	opts := []engine.Option{
		engine.WithLogger(logger.With("component", "engine")),
		engine.WithLedger(led),
		engine.WithPersist(func(c *config.Snapshot) error { return c.Save(*cfgPath) }),
	}
	if sched, err := reloadSchedule(cfg); err != nil {
		return err
	} else if sched != nil {
		opts = append(opts, engine.WithReloadSchedule(sched))
	}

	eng := engine.New(adapter, cfg, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engDone := make(chan error, 1)
	go func() { engDone <- eng.Run(ctx) }()

	app := ui.NewApp(eng.Commands(), eng.Events(), cfg, logger.With("component", "ui"))
	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		cancel()
		<-engDone
		return err
	}

	// The quit key already sent Shutdown; give the engine a moment to finish
	// an in-flight stage before tearing the process down.
	select {
	case err := <-engDone:
		return err
	case <-time.After(10 * time.Second):
		cancel()
		return <-engDone
	}
}

// buildAdapter selects the storage backend from the config. Drive mode
// wires the OAuth session provider; local mode works against plain
// directories of XLSX files.
func buildAdapter(cfg *config.Snapshot, stateDir string, logger *slog.Logger) (storage.Adapter, error) {
	switch cfg.Adapter {
	case config.AdapterLocal:
		workDir := cfg.Local.WorkDir
		if workDir == "" {
			workDir = filepath.Join(stateDir, "work")
		}
		return storage.NewLocalAdapter(workDir,
			storage.WithLocalLogger(logger.With("component", "storage")),
		), nil

	case config.AdapterDrive:
		credentials := cfg.Google.CredentialsFile
		if credentials == "" {
			credentials = filepath.Join(stateDir, "credentials.json")
		}
		provider, err := auth.NewProvider(credentials, filepath.Join(stateDir, "token.json"),
			logger.With("component", "auth"))
		if err != nil {
			return nil, err
		}
		return storage.NewDriveAdapter(provider,
			storage.WithDriveLogger(logger.With("component", "storage")),
		), nil

	default:
		return nil, fmt.Errorf("unknown adapter mode %q", cfg.Adapter)
	}
}

func reloadSchedule(cfg *config.Snapshot) (schedule.Schedule, error) {
	switch {
	case cfg.Reload.Every > 0:
		return schedule.Every(cfg.Reload.Every), nil
	case cfg.Reload.Cron != "":
		return schedule.Cron(cfg.Reload.Cron)
	default:
		return nil, nil
	}
}
