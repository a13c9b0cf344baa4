package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_StartsQueuedWithEmptyFields(t *testing.T) {
	j := New("file-123", "receipt_0412.jpg")

	assert.NotEqual(t, "", j.ID.String())
	assert.Equal(t, "file-123", j.ResourceID)
	assert.Equal(t, "receipt_0412.jpg", j.Name)
	assert.Equal(t, StatusQueued, j.Status)
	assert.Equal(t, Fields{}, j.Fields)
	assert.Empty(t, j.Err)
}

func TestTransition_AllowsLifecycleEdges(t *testing.T) {
	j := New("f", "r.jpg")

	require.NoError(t, j.Transition(StatusWritingSheet))
	require.NoError(t, j.Transition(StatusExportingPdf))
	require.NoError(t, j.Transition(StatusUploadingPdf))
	require.NoError(t, j.Transition(StatusDone))
	assert.Equal(t, StatusDone, j.Status)
}

func TestTransition_FailureEdgesLeadToWaitingUserFix(t *testing.T) {
	for _, from := range []Status{StatusWritingSheet, StatusExportingPdf, StatusUploadingPdf} {
		j := New("f", "r.jpg")
		j.Status = from
		require.NoError(t, j.Transition(StatusWaitingUserFix))
		require.NoError(t, j.Transition(StatusWritingSheet))
	}
}

func TestTransition_RejectsEdgesOutsideTable(t *testing.T) {
	cases := []struct {
		from, to Status
	}{
		{StatusQueued, StatusExportingPdf},
		{StatusQueued, StatusDone},
		{StatusWritingSheet, StatusUploadingPdf},
		{StatusWritingSheet, StatusQueued},
		{StatusExportingPdf, StatusDone},
		{StatusDone, StatusQueued},
		{StatusDone, StatusWritingSheet},
		{StatusWaitingUserFix, StatusDone},
		{StatusWaitingUserFix, StatusQueued},
	}
	for _, tc := range cases {
		j := New("f", "r.jpg")
		j.Status = tc.from
		err := j.Transition(tc.to)
		assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", tc.from, tc.to)
		assert.Equal(t, tc.from, j.Status)
	}
}

func TestEditField_AllowedWhileQueuedOrWaiting(t *testing.T) {
	j := New("f", "r.jpg")

	require.NoError(t, j.EditField(FieldDate, "2024-04-01"))
	require.NoError(t, j.EditField(FieldAmount, "1200.50"))
	require.NoError(t, j.EditField(FieldCategory, "travel"))

	j.Status = StatusWaitingUserFix
	require.NoError(t, j.EditField(FieldReason, "taxi to client"))
	assert.Equal(t, "taxi to client", j.Fields.Reason)
}

func TestEditField_RejectedMidCommit(t *testing.T) {
	for _, s := range []Status{StatusWritingSheet, StatusExportingPdf, StatusUploadingPdf, StatusDone} {
		j := New("f", "r.jpg")
		j.Status = s
		err := j.EditField(FieldNote, "late edit")
		assert.ErrorIs(t, err, ErrInvalidState, "status %s", s)
		assert.Empty(t, j.Fields.Note)
	}
}

func TestEditField_ClearsPreviousError(t *testing.T) {
	j := New("f", "r.jpg")
	j.Status = StatusWaitingUserFix
	j.Err = "upload failed: 503"

	require.NoError(t, j.EditField(FieldAmount, "980"))
	assert.Empty(t, j.Err)
}

func TestEditField_ValidationFailureKeepsError(t *testing.T) {
	j := New("f", "r.jpg")
	j.Status = StatusWaitingUserFix
	j.Err = "upload failed: 503"

	err := j.EditField(FieldDate, "April 1st")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldDate, verr.Field)
	assert.Equal(t, "upload failed: 503", j.Err)
}

func TestReadyToCommit(t *testing.T) {
	cases := []struct {
		name   string
		fields Fields
		want   bool
	}{
		{"all required set", Fields{Date: "2024-04-01", Amount: "1200.50", Category: "travel"}, true},
		{"missing amount", Fields{Date: "2024-04-01", Category: "travel"}, false},
		{"missing date", Fields{Amount: "1200.50", Category: "travel"}, false},
		{"missing category", Fields{Date: "2024-04-01", Amount: "1200.50"}, false},
		{"zero amount", Fields{Date: "2024-04-01", Amount: "0", Category: "travel"}, false},
		{"garbage amount", Fields{Date: "2024-04-01", Amount: "12x", Category: "travel"}, false},
		{"note and reason optional", Fields{Date: "2024-04-01", Amount: "1", Category: "meals"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			j := New("f", "r.jpg")
			j.Fields = tc.fields
			assert.Equal(t, tc.want, j.ReadyToCommit())
		})
	}
}
