package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// imageExts are the receipt file extensions picked up from the source
// directory.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".heic": true,
	".webp": true,
}

// LocalAdapter implements Adapter against a local directory tree. Folder
// references are directory paths, template and sheet references are XLSX
// file paths. The exported document is the workbook itself; there is no
// local PDF renderer.
type LocalAdapter struct {
	workDir string
	logger  *slog.Logger
}

// LocalOption configures a LocalAdapter.
type LocalOption func(*LocalAdapter)

// WithLocalLogger sets the adapter logger.
func WithLocalLogger(logger *slog.Logger) LocalOption {
	return func(a *LocalAdapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewLocalAdapter creates an adapter that places duplicated workbooks in
// workDir.
func NewLocalAdapter(workDir string, opts ...LocalOption) *LocalAdapter {
	a := &LocalAdapter{workDir: workDir, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init ensures the working directory exists.
func (a *LocalAdapter) Init(ctx context.Context) error {
	if err := os.MkdirAll(a.workDir, 0o755); err != nil {
		return NewError(KindTransport, "init", err)
	}
	return nil
}

// ArtifactExt returns ".xlsx"; local exports are the workbook bytes.
func (a *LocalAdapter) ArtifactExt() string { return ".xlsx" }

// ListSourceItems returns the receipt images found in the source directory.
func (a *LocalAdapter) ListSourceItems(ctx context.Context, folderRef string) ([]ResourceRef, error) {
	entries, err := os.ReadDir(folderRef)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewError(KindNotFound, "list", err)
		}
		return nil, NewError(KindTransport, "list", err)
	}

	var refs []ResourceRef
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		refs = append(refs, ResourceRef{
			ID:   filepath.Join(folderRef, e.Name()),
			Name: e.Name(),
		})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	a.logger.Info("local.list", "dir", folderRef, "files", len(refs))
	return refs, nil
}

// DuplicateTemplate copies the template workbook into the working directory.
// When the target name already exists a numbered copy is created, keeping the
// "collision still creates a new copy" contract.
func (a *LocalAdapter) DuplicateTemplate(ctx context.Context, templateRef, name string) (ResourceRef, error) {
	data, err := os.ReadFile(templateRef)
	if err != nil {
		if os.IsNotExist(err) {
			return ResourceRef{}, NewError(KindNotFound, "copy", err)
		}
		return ResourceRef{}, NewError(KindTransport, "copy", err)
	}

	base := name + ".xlsx"
	path := filepath.Join(a.workDir, base)
	for n := 2; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		base = fmt.Sprintf("%s (%d).xlsx", name, n)
		path = filepath.Join(a.workDir, base)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ResourceRef{}, NewError(KindTransport, "copy", err)
	}
	a.logger.Info("local.copy", "template", templateRef, "copy", path)
	return ResourceRef{ID: path, Name: base}, nil
}

// WriteCells sets values on the first sheet of the workbook.
func (a *LocalAdapter) WriteCells(ctx context.Context, sheetRef string, cells map[string]string) error {
	f, err := a.open(sheetRef, "write_cells")
	if err != nil {
		return err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	refs := make([]string, 0, len(cells))
	for ref := range cells {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	for _, ref := range refs {
		if err := f.SetCellValue(sheet, ref, cells[ref]); err != nil {
			return NewError(KindTransport, "write_cells", err)
		}
	}
	if err := f.Save(); err != nil {
		return NewError(KindTransport, "write_cells", err)
	}
	a.logger.Info("local.write", "sheet", sheetRef, "cells", len(cells))
	return nil
}

// FindFirstEmptyRow walks the column down from startRow until an empty cell.
func (a *LocalAdapter) FindFirstEmptyRow(ctx context.Context, sheetRef, column string, startRow int) (int, error) {
	f, err := a.open(sheetRef, "scan_rows")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	row := startRow
	for {
		v, err := f.GetCellValue(sheet, Cell(column, row))
		if err != nil {
			return 0, NewError(KindTransport, "scan_rows", err)
		}
		if strings.TrimSpace(v) == "" {
			return row, nil
		}
		row++
	}
}

// ExportDocument returns the workbook bytes.
func (a *LocalAdapter) ExportDocument(ctx context.Context, sheetRef string) ([]byte, error) {
	data, err := os.ReadFile(sheetRef)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewError(KindNotFound, "export", err)
		}
		return nil, NewError(KindTransport, "export", err)
	}
	return data, nil
}

// UploadArtifact writes the artifact into the destination directory.
func (a *LocalAdapter) UploadArtifact(ctx context.Context, folderRef string, data []byte, name string) (ArtifactRef, error) {
	if err := os.MkdirAll(folderRef, 0o755); err != nil {
		return ArtifactRef{}, NewError(KindTransport, "upload", err)
	}
	path := filepath.Join(folderRef, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ArtifactRef{}, NewError(KindTransport, "upload", err)
	}
	a.logger.Info("local.upload", "artifact", path)
	return ArtifactRef{ID: path, Name: name}, nil
}

func (a *LocalAdapter) open(sheetRef, op string) (*excelize.File, error) {
	f, err := excelize.OpenFile(sheetRef)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewError(KindNotFound, op, err)
		}
		return nil, NewError(KindTransport, op, err)
	}
	return f, nil
}
