// Package protocol defines the command and event vocabulary exchanged
// between the interactive driver and the execution engine.
//
// Commands flow driver -> engine on one channel, events flow engine ->
// driver on another. Events for a given job are emitted in the exact order
// its status transitions occur; distinct states are never coalesced.
package protocol

import (
	"time"

	"github.com/google/uuid"

	"github.com/hsato/seisan/pkg/config"
	"github.com/hsato/seisan/pkg/job"
	"github.com/hsato/seisan/pkg/storage"
)

// Command is the interface for all driver-to-engine messages. The engine
// processes commands one at a time, in receipt order.
type Command interface {
	commandMarker()
}

// Reload re-scans the source folder and rebuilds the job set. Received
// mid-commit it refreshes only jobs that are not currently active.
type Reload struct{}

func (Reload) commandMarker() {}

// Commit requests the commit pipeline for one job. While another commit is
// in flight the request is queued FIFO, never rejected.
type Commit struct {
	JobID uuid.UUID
}

func (Commit) commandMarker() {}

// EditJob applies one field edit to a job the engine owns. Rejected with
// EditRejected when the job is mid-commit.
type EditJob struct {
	JobID uuid.UUID
	Field job.Field
	Value string
}

func (EditJob) commandMarker() {}

// SaveSettings replaces the engine's configuration snapshot. Applied
// atomically between commits, never mid-pipeline.
type SaveSettings struct {
	Config *config.Snapshot
}

func (SaveSettings) commandMarker() {}

// Shutdown finishes or abandons the in-flight pipeline stage and stops the
// engine; no further commands are accepted.
type Shutdown struct{}

func (Shutdown) commandMarker() {}

// Event is the interface for all engine-to-driver messages.
type Event interface {
	eventMarker()
}

// JobsLoaded carries the full job set after a reload. Jobs are copies; the
// driver's mirror is read-only.
type JobsLoaded struct {
	Jobs      []job.Job
	Timestamp time.Time
}

func (*JobsLoaded) eventMarker() {}

// JobProgress is emitted on every status transition of a commit.
type JobProgress struct {
	JobID     uuid.UUID
	Status    job.Status
	Timestamp time.Time
}

func (*JobProgress) eventMarker() {}

// JobFailed is emitted when a commit attempt ends in WaitingUserFix.
type JobFailed struct {
	JobID     uuid.UUID
	Err       error
	Timestamp time.Time
}

func (*JobFailed) eventMarker() {}

// JobDone is emitted when the uploaded artifact reference is available.
type JobDone struct {
	JobID     uuid.UUID
	Artifact  storage.ArtifactRef
	Timestamp time.Time
}

func (*JobDone) eventMarker() {}

// EditRejected reports an EditJob that was refused (invalid state) or whose
// value failed validation. It has no status side effects.
type EditRejected struct {
	JobID     uuid.UUID
	Err       error
	Timestamp time.Time
}

func (*EditRejected) eventMarker() {}

// SettingsSaved confirms a SaveSettings command took effect.
type SettingsSaved struct {
	Timestamp time.Time
}

func (*SettingsSaved) eventMarker() {}

// Fatal reports an unrecoverable engine failure; the engine loop has ended
// and the driver must treat the session as over.
type Fatal struct {
	Err       error
	Timestamp time.Time
}

func (*Fatal) eventMarker() {}
