package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hsato/seisan/pkg/config"
	"github.com/hsato/seisan/pkg/job"
	"github.com/hsato/seisan/pkg/ledger"
	"github.com/hsato/seisan/pkg/protocol"
	"github.com/hsato/seisan/pkg/schedule"
	"github.com/hsato/seisan/pkg/storage"
)

// ErrUnknownJob is returned in events referencing a job id the engine does
// not own, typically after a reload dropped the job.
var ErrUnknownJob = errors.New("engine: unknown job id")

// Engine owns the job set. All state lives on the Run goroutine; the driver
// talks to it only through the command and event channels.
type Engine struct {
	adapter storage.Adapter
	cfg     *config.Snapshot
	logger  *slog.Logger
	ledger  *ledger.Ledger
	persist func(*config.Snapshot) error
	reload  schedule.Schedule
	now     func() time.Time

	commands chan protocol.Command
	events   chan protocol.Event

	// stages and done carry pipeline progress back onto the Run goroutine,
	// which is the only place job status is mutated.
	stages chan job.Status
	done   chan pipelineResult

	jobs    map[uuid.UUID]*job.Job
	order   []uuid.UUID
	pending []uuid.UUID
	active  *job.Job

	stagedSettings *config.Snapshot
	cancelPipeline context.CancelFunc
}

// New creates an engine over the given adapter and configuration snapshot.
func New(adapter storage.Adapter, cfg *config.Snapshot, opts ...Option) *Engine {
	c := Config{
		Logger:        slog.Default(),
		CommandBuffer: 16,
		EventBuffer:   64,
	}
	for _, opt := range opts {
		opt.Apply(&c)
	}

	return &Engine{
		adapter:  adapter,
		cfg:      cfg.Clone(),
		logger:   c.Logger,
		ledger:   c.Ledger,
		persist:  c.Persist,
		reload:   c.ReloadSchedule,
		now:      time.Now,
		commands: make(chan protocol.Command, c.CommandBuffer),
		events:   make(chan protocol.Event, c.EventBuffer),
		stages:   make(chan job.Status),
		done:     make(chan pipelineResult, 1),
		jobs:     make(map[uuid.UUID]*job.Job),
	}
}

// Commands is the channel the driver sends commands on.
func (e *Engine) Commands() chan<- protocol.Command { return e.commands }

// Events is the channel the engine emits events on.
func (e *Engine) Events() <-chan protocol.Event { return e.events }

// Run executes the engine loop until Shutdown is received or the context is
// cancelled. An adapter that fails its startup handshake ends the session
// with a Fatal event.
func (e *Engine) Run(ctx context.Context) error {
	if init, ok := e.adapter.(storage.Initializer); ok {
		if err := init.Init(ctx); err != nil {
			e.logger.Error("adapter startup failed", "error", err)
			e.emit(ctx, &protocol.Fatal{Err: err, Timestamp: e.now()})
			return err
		}
	}

	e.reloadJobs(ctx)

	var reloadC <-chan time.Time
	var reloadTimer *time.Timer
	if e.reload != nil {
		reloadTimer = time.NewTimer(time.Until(e.reload.Next(e.now())))
		defer reloadTimer.Stop()
		reloadC = reloadTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			e.drainPipeline(ctx)
			return ctx.Err()

		case cmd := <-e.commands:
			if shutdown := e.handleCommand(ctx, cmd); shutdown {
				e.drainPipeline(ctx)
				return nil
			}

		case st := <-e.stages:
			e.applyStage(ctx, st)

		case res := <-e.done:
			e.finishCommit(ctx, res)

		case <-reloadC:
			e.reloadJobs(ctx)
			reloadTimer.Reset(time.Until(e.reload.Next(e.now())))
		}
	}
}

// handleCommand dispatches one command. It returns true for Shutdown.
func (e *Engine) handleCommand(ctx context.Context, cmd protocol.Command) bool {
	switch c := cmd.(type) {
	case protocol.Reload:
		e.reloadJobs(ctx)
	case protocol.Commit:
		e.handleCommit(ctx, c)
	case protocol.EditJob:
		e.handleEdit(ctx, c)
	case protocol.SaveSettings:
		e.handleSettings(ctx, c)
	case protocol.Shutdown:
		e.logger.Info("shutdown requested")
		return true
	default:
		e.logger.Warn("unknown command", "command", cmd)
	}
	return false
}

// reloadJobs re-scans the source folder and rebuilds the job set. Jobs whose
// resource is still present keep their object, and with it their edits and
// status; the active job survives even if its resource vanished from the
// listing. On a listing failure the current set is kept and re-announced.
func (e *Engine) reloadJobs(ctx context.Context) {
	items, err := e.adapter.ListSourceItems(ctx, e.cfg.InputRef())
	if err != nil {
		e.logger.Warn("source listing failed, keeping current jobs", "error", err)
		e.emitJobs(ctx)
		return
	}

	byResource := make(map[string]*job.Job, len(e.jobs))
	for _, j := range e.jobs {
		byResource[j.ResourceID] = j
	}

	jobs := make(map[uuid.UUID]*job.Job, len(items))
	order := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		j, ok := byResource[item.ID]
		if !ok {
			j = job.New(item.ID, item.Name)
		} else {
			j.Name = item.Name
		}
		jobs[j.ID] = j
		order = append(order, j.ID)
	}

	if e.active != nil {
		if _, ok := jobs[e.active.ID]; !ok {
			jobs[e.active.ID] = e.active
			order = append(order, e.active.ID)
		}
	}

	e.jobs = jobs
	e.order = order

	kept := e.pending[:0]
	for _, id := range e.pending {
		if _, ok := e.jobs[id]; ok {
			kept = append(kept, id)
		}
	}
	e.pending = kept

	e.logger.Info("jobs reloaded", "count", len(order))
	e.emitJobs(ctx)
}

func (e *Engine) handleCommit(ctx context.Context, cmd protocol.Commit) {
	j, ok := e.jobs[cmd.JobID]
	if !ok {
		e.emit(ctx, &protocol.JobFailed{JobID: cmd.JobID, Err: ErrUnknownJob, Timestamp: e.now()})
		return
	}
	if e.active != nil {
		if e.active.ID == j.ID || e.isPending(j.ID) {
			return
		}
		e.pending = append(e.pending, j.ID)
		e.logger.Info("commit queued", "job_id", j.ID, "queue_len", len(e.pending))
		return
	}
	e.startCommit(ctx, j)
}

func (e *Engine) isPending(id uuid.UUID) bool {
	for _, p := range e.pending {
		if p == id {
			return true
		}
	}
	return false
}

// startCommit re-validates the job, then launches the pipeline goroutine.
// Validation failure produces JobFailed without touching the adapter.
func (e *Engine) startCommit(ctx context.Context, j *job.Job) {
	if !j.Status.Editable() {
		e.emit(ctx, &protocol.JobFailed{JobID: j.ID, Err: job.ErrInvalidState, Timestamp: e.now()})
		return
	}
	if err := e.cfg.ValidateForCommit(); err != nil {
		e.failJob(ctx, j, err)
		return
	}
	if !j.ReadyToCommit() {
		e.failJob(ctx, j, job.ErrInvalidFields)
		return
	}

	if err := j.Transition(job.StatusWritingSheet); err != nil {
		e.emit(ctx, &protocol.JobFailed{JobID: j.ID, Err: err, Timestamp: e.now()})
		return
	}
	e.active = j
	e.emit(ctx, &protocol.JobProgress{JobID: j.ID, Status: j.Status, Timestamp: e.now()})
	e.logger.Info("commit start", "job_id", j.ID, "receipt", j.Name, "month", j.Fields.Month())

	pctx, cancel := context.WithCancel(ctx)
	e.cancelPipeline = cancel
	go e.runPipeline(pctx, e.cfg.Clone(), j.ID, j.Name, j.Fields)
}

// failJob moves a job to WaitingUserFix and reports the failure. A job that
// is already waiting stays where it is.
func (e *Engine) failJob(ctx context.Context, j *job.Job, err error) {
	if j.Status == job.StatusQueued {
		if terr := j.Transition(job.StatusWaitingUserFix); terr != nil {
			e.logger.Error("illegal failure transition", "job_id", j.ID, "error", terr)
		}
	}
	j.Err = err.Error()
	e.logger.Warn("commit failed", "job_id", j.ID, "status", j.Status, "error", err)
	e.emit(ctx, &protocol.JobFailed{JobID: j.ID, Err: err, Timestamp: e.now()})
}

// applyStage advances the active job on a pipeline stage boundary.
func (e *Engine) applyStage(ctx context.Context, st job.Status) {
	if e.active == nil {
		return
	}
	if err := e.active.Transition(st); err != nil {
		e.logger.Error("illegal stage transition", "job_id", e.active.ID, "error", err)
		return
	}
	e.emit(ctx, &protocol.JobProgress{JobID: e.active.ID, Status: st, Timestamp: e.now()})
}

// finishCommit settles the active job, applies staged settings and starts
// the next queued commit.
func (e *Engine) finishCommit(ctx context.Context, res pipelineResult) {
	j := e.active
	e.active = nil
	if e.cancelPipeline != nil {
		e.cancelPipeline()
		e.cancelPipeline = nil
	}
	if j == nil || j.ID != res.jobID {
		e.logger.Error("pipeline result for unexpected job", "job_id", res.jobID)
		return
	}

	if res.err != nil {
		if terr := j.Transition(job.StatusWaitingUserFix); terr != nil {
			e.logger.Error("illegal failure transition", "job_id", j.ID, "error", terr)
		}
		j.Err = res.err.Error()
		e.logger.Warn("commit failed", "job_id", j.ID, "error", res.err)
		e.emit(ctx, &protocol.JobFailed{JobID: j.ID, Err: res.err, Timestamp: e.now()})
	} else {
		if terr := j.Transition(job.StatusDone); terr != nil {
			e.logger.Error("illegal done transition", "job_id", j.ID, "error", terr)
		}
		e.logger.Info("commit done", "job_id", j.ID, "artifact", res.artifact.Name)
		e.recordCommit(ctx, j, res)
		e.emit(ctx, &protocol.JobDone{JobID: j.ID, Artifact: res.artifact, Timestamp: e.now()})
	}

	if e.stagedSettings != nil {
		e.applySettings(ctx, e.stagedSettings)
		e.stagedSettings = nil
	}

	e.startNextPending(ctx)
}

func (e *Engine) startNextPending(ctx context.Context) {
	for e.active == nil && len(e.pending) > 0 {
		id := e.pending[0]
		e.pending = e.pending[1:]
		j, ok := e.jobs[id]
		if !ok {
			e.emit(ctx, &protocol.JobFailed{JobID: id, Err: ErrUnknownJob, Timestamp: e.now()})
			continue
		}
		e.startCommit(ctx, j)
	}
}

// recordCommit appends the commit to the ledger. Best effort: a ledger
// failure is logged, never surfaced to the driver.
func (e *Engine) recordCommit(ctx context.Context, j *job.Job, res pipelineResult) {
	if e.ledger == nil {
		return
	}
	err := e.ledger.Record(ctx, &ledger.CommitRecord{
		ResourceID:   j.ResourceID,
		ReceiptName:  j.Name,
		Month:        j.Fields.Month(),
		Amount:       j.Fields.Amount,
		Category:     j.Fields.Category,
		SheetID:      res.sheet.ID,
		ArtifactID:   res.artifact.ID,
		ArtifactName: res.artifact.Name,
	})
	if err != nil {
		e.logger.Warn("ledger record failed", "job_id", j.ID, "error", err)
	}
}

func (e *Engine) handleEdit(ctx context.Context, cmd protocol.EditJob) {
	j, ok := e.jobs[cmd.JobID]
	if !ok {
		e.emit(ctx, &protocol.EditRejected{JobID: cmd.JobID, Err: ErrUnknownJob, Timestamp: e.now()})
		return
	}
	if err := j.EditField(cmd.Field, cmd.Value); err != nil {
		e.emit(ctx, &protocol.EditRejected{JobID: j.ID, Err: err, Timestamp: e.now()})
		return
	}
	// The driver holds a read-only mirror, so an accepted edit is announced
	// through a fresh snapshot.
	e.emitJobs(ctx)
}

// handleSettings applies a settings snapshot now, or stages it until the
// in-flight commit finishes. Only the latest staged snapshot survives.
func (e *Engine) handleSettings(ctx context.Context, cmd protocol.SaveSettings) {
	if cmd.Config == nil {
		return
	}
	if e.active != nil {
		e.stagedSettings = cmd.Config.Clone()
		e.logger.Info("settings staged until commit finishes")
		return
	}
	e.applySettings(ctx, cmd.Config)
}

func (e *Engine) applySettings(ctx context.Context, cfg *config.Snapshot) {
	e.cfg = cfg.Clone()
	if e.persist != nil {
		if err := e.persist(e.cfg); err != nil {
			e.logger.Error("settings persist failed, keeping in-memory snapshot", "error", err)
		}
	}
	e.logger.Info("settings applied", "adapter", e.cfg.Adapter)
	e.emit(ctx, &protocol.SettingsSaved{Timestamp: e.now()})
}

// drainPipeline waits out an in-flight pipeline so its goroutine never
// outlives Run. Progress during the drain is not announced.
func (e *Engine) drainPipeline(ctx context.Context) {
	if e.active == nil {
		return
	}
	if e.cancelPipeline != nil {
		e.cancelPipeline()
		e.cancelPipeline = nil
	}
	for {
		select {
		case <-e.stages:
		case <-e.done:
			e.active = nil
			return
		}
	}
}

func (e *Engine) emit(ctx context.Context, ev protocol.Event) {
	select {
	case e.events <- ev:
	case <-ctx.Done():
	}
}

// emitJobs sends a copy of the job set in listing order.
func (e *Engine) emitJobs(ctx context.Context) {
	snapshot := make([]job.Job, 0, len(e.order))
	for _, id := range e.order {
		if j, ok := e.jobs[id]; ok {
			snapshot = append(snapshot, *j)
		}
	}
	e.emit(ctx, &protocol.JobsLoaded{Jobs: snapshot, Timestamp: e.now()})
}
