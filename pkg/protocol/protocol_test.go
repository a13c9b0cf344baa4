package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/hsato/seisan/pkg/job"
	"github.com/hsato/seisan/pkg/storage"
)

func TestCommands_ImplementCommand(t *testing.T) {
	for _, c := range []Command{
		Reload{},
		Commit{JobID: uuid.New()},
		EditJob{JobID: uuid.New(), Field: job.FieldAmount, Value: "1200.50"},
		SaveSettings{},
		Shutdown{},
	} {
		assert.NotNil(t, c)
	}
}

func TestEvents_ImplementEvent(t *testing.T) {
	id := uuid.New()
	for _, e := range []Event{
		&JobsLoaded{Jobs: []job.Job{}, Timestamp: time.Now()},
		&JobProgress{JobID: id, Status: job.StatusWritingSheet, Timestamp: time.Now()},
		&JobFailed{JobID: id, Err: errors.New("write failed"), Timestamp: time.Now()},
		&JobDone{JobID: id, Artifact: storage.ArtifactRef{ID: "art-1"}, Timestamp: time.Now()},
		&EditRejected{JobID: id, Err: job.ErrInvalidState, Timestamp: time.Now()},
		&SettingsSaved{Timestamp: time.Now()},
		&Fatal{Err: errors.New("adapter init failed"), Timestamp: time.Now()},
	} {
		assert.NotNil(t, e)
	}
}
