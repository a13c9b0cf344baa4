package storage

import (
	"context"
	"fmt"
	"strconv"
)

// ResourceRef identifies a file or spreadsheet in the backend.
type ResourceRef struct {
	ID   string
	Name string
}

// ArtifactRef identifies an uploaded document artifact.
type ArtifactRef struct {
	ID   string
	Name string
}

// Adapter is the capability interface for one storage backend. Folder,
// template and sheet references are opaque strings whose meaning belongs to
// the implementation (Drive file ids, filesystem paths, ...).
//
// Every call may fail with a *AdapterError; callers must not assume any
// partial operation was rolled back.
type Adapter interface {
	// ListSourceItems returns the receipt files in the source folder.
	ListSourceItems(ctx context.Context, folderRef string) ([]ResourceRef, error)

	// DuplicateTemplate copies the template into a new spreadsheet with the
	// given name. A name collision with an existing copy is not an error; a
	// new copy is still created.
	DuplicateTemplate(ctx context.Context, templateRef, name string) (ResourceRef, error)

	// WriteCells writes values into cells of the first sheet. Keys are A1
	// references such as "F3" or "D44".
	WriteCells(ctx context.Context, sheetRef string, cells map[string]string) error

	// FindFirstEmptyRow scans the given column downward from startRow and
	// returns the index of the first row whose cell is empty.
	FindFirstEmptyRow(ctx context.Context, sheetRef, column string, startRow int) (int, error)

	// ExportDocument renders the spreadsheet as a document artifact.
	ExportDocument(ctx context.Context, sheetRef string) ([]byte, error)

	// UploadArtifact stores the artifact bytes in the destination folder.
	UploadArtifact(ctx context.Context, folderRef string, data []byte, name string) (ArtifactRef, error)

	// ArtifactExt is the file extension ExportDocument produces, dot
	// included (".pdf", ".xlsx").
	ArtifactExt() string
}

// Initializer is implemented by adapters that need a startup handshake
// (session acquisition, directory checks). The engine calls Init once before
// serving commands and treats failure as fatal for the session.
type Initializer interface {
	Init(ctx context.Context) error
}

// Cell renders a column letter and a 1-based row index as an A1 reference.
func Cell(column string, row int) string {
	return column + strconv.Itoa(row)
}

// ErrorKind classifies adapter failures for logging and display.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindAuth      ErrorKind = "auth"
	KindNotFound  ErrorKind = "not_found"
)

// AdapterError is the error type for all adapter failures. The engine does
// not branch on Kind; every kind aborts the current stage the same way.
type AdapterError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("storage: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewError builds an AdapterError for the given operation.
func NewError(kind ErrorKind, op string, err error) *AdapterError {
	return &AdapterError{Kind: kind, Op: op, Err: err}
}
