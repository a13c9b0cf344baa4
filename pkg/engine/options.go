package engine

import (
	"log/slog"

	"github.com/hsato/seisan/pkg/config"
	"github.com/hsato/seisan/pkg/ledger"
	"github.com/hsato/seisan/pkg/schedule"
)

// Option configures an Engine.
type Option interface {
	Apply(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) Apply(c *Config) { f(c) }

// Config holds engine configuration.
type Config struct {
	Logger         *slog.Logger
	Ledger         *ledger.Ledger
	Persist        func(*config.Snapshot) error
	ReloadSchedule schedule.Schedule
	CommandBuffer  int
	EventBuffer    int
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *Config) {
		c.Logger = l
	})
}

// WithLedger enables best-effort recording of completed commits.
func WithLedger(l *ledger.Ledger) Option {
	return optionFunc(func(c *Config) {
		c.Ledger = l
	})
}

// WithPersist sets the function used to write an accepted settings
// snapshot to disk.
func WithPersist(fn func(*config.Snapshot) error) Option {
	return optionFunc(func(c *Config) {
		c.Persist = fn
	})
}

// WithReloadSchedule enables periodic source-folder re-scans.
func WithReloadSchedule(s schedule.Schedule) Option {
	return optionFunc(func(c *Config) {
		c.ReloadSchedule = s
	})
}

// CommandBuffer sets the command channel capacity.
func CommandBuffer(n int) Option {
	return optionFunc(func(c *Config) {
		if n > 0 {
			c.CommandBuffer = n
		}
	})
}

// EventBuffer sets the event channel capacity.
func EventBuffer(n int) Option {
	return optionFunc(func(c *Config) {
		if n > 0 {
			c.EventBuffer = n
		}
	})
}
