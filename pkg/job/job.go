package job

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Status represents the current lifecycle state of a job.
type Status string

const (
	StatusQueued         Status = "queued"
	StatusWaitingUserFix Status = "waiting_user_fix"
	StatusWritingSheet   Status = "writing_sheet"
	StatusExportingPdf   Status = "exporting_pdf"
	StatusUploadingPdf   Status = "uploading_pdf"
	StatusDone           Status = "done"
)

// Busy reports whether the job is mid-commit. At most one job per engine
// may be busy at any time.
func (s Status) Busy() bool {
	switch s {
	case StatusWritingSheet, StatusExportingPdf, StatusUploadingPdf:
		return true
	}
	return false
}

// Editable reports whether the user may change the job's fields.
func (s Status) Editable() bool {
	return s == StatusQueued || s == StatusWaitingUserFix
}

// transitions holds the only legal status edges. Anything else is a bug in
// the caller, not a user error.
var transitions = map[Status][]Status{
	StatusQueued:         {StatusWritingSheet, StatusWaitingUserFix},
	StatusWaitingUserFix: {StatusWritingSheet},
	StatusWritingSheet:   {StatusExportingPdf, StatusWaitingUserFix},
	StatusExportingPdf:   {StatusUploadingPdf, StatusWaitingUserFix},
	StatusUploadingPdf:   {StatusDone, StatusWaitingUserFix},
	StatusDone:           nil,
}

var (
	// ErrInvalidState is returned when a field edit targets a job that is
	// mid-commit or already done.
	ErrInvalidState = errors.New("job: not editable in current status")

	// ErrInvalidTransition is returned for a status edge outside the
	// lifecycle table.
	ErrInvalidTransition = errors.New("job: status transition not allowed")

	// ErrInvalidFields is returned when a commit is requested but date,
	// amount or category are missing or malformed.
	ErrInvalidFields = errors.New("job: date, amount and category are required before commit")
)

// Job is a single source receipt and its processing state.
type Job struct {
	// ID is a stable handle used in commands and events.
	ID uuid.UUID
	// ResourceID identifies the source receipt in the storage backend.
	ResourceID string
	// Name is the display name of the source file.
	Name string
	// Status is mutated only by the engine while a commit is in flight.
	Status Status
	// Fields holds the user-edited receipt values.
	Fields Fields
	// Err carries the last failure description, cleared on re-edit.
	Err string
}

// New creates a queued job for a source receipt with empty fields.
func New(resourceID, name string) *Job {
	return &Job{
		ID:         uuid.New(),
		ResourceID: resourceID,
		Name:       name,
		Status:     StatusQueued,
	}
}

// Transition moves the job to the given status if the edge is legal.
func (j *Job) Transition(to Status) error {
	for _, allowed := range transitions[j.Status] {
		if allowed == to {
			j.Status = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
}

// EditField validates and applies one field edit. Edits are permitted only
// while the job is queued or waiting for a user fix; a successful edit
// clears any previous failure message.
func (j *Job) EditField(field Field, value string) error {
	if !j.Status.Editable() {
		return ErrInvalidState
	}
	if err := j.Fields.Set(field, value); err != nil {
		return err
	}
	j.Err = ""
	return nil
}

// ReadyToCommit reports whether the job carries everything the commit
// pipeline needs: a date, a category, and a positive decimal amount.
func (j *Job) ReadyToCommit() bool {
	f := j.Fields
	return f.Date != "" && f.Category != "" && IsPositiveDecimal(f.Amount)
}
