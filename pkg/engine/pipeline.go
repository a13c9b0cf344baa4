package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hsato/seisan/pkg/config"
	"github.com/hsato/seisan/pkg/job"
	"github.com/hsato/seisan/pkg/storage"
)

// sheetBaseName is the Japanese expense-report title every sheet copy and
// artifact carries.
const sheetBaseName = "立替経費精算書"

type pipelineResult struct {
	jobID    uuid.UUID
	sheet    storage.ResourceRef
	artifact storage.ArtifactRef
	err      error
}

// runPipeline executes the four commit stages against a private config
// clone. It reports stage boundaries on e.stages and exactly one result on
// e.done; the caller goroutine owns all job state.
func (e *Engine) runPipeline(ctx context.Context, cfg *config.Snapshot, jobID uuid.UUID, userName string, fields job.Fields) {
	res := pipelineResult{jobID: jobID}

	res.sheet, res.err = e.writeSheet(ctx, cfg, fields)
	if res.err == nil && e.advance(ctx, job.StatusExportingPdf) {
		var data []byte
		data, res.err = e.adapter.ExportDocument(ctx, res.sheet.ID)
		if res.err == nil && e.advance(ctx, job.StatusUploadingPdf) {
			name := artifactName(cfg.User.FullName, fields.Month(), e.adapter.ArtifactExt())
			res.artifact, res.err = e.adapter.UploadArtifact(ctx, cfg.OutputRef(), data, name)
		}
	}

	if res.err == nil && ctx.Err() != nil {
		res.err = ctx.Err()
	}
	e.done <- res
}

// writeSheet covers stages 1-3: duplicate the template, fill the fixed
// cells, then append the expense row at the first empty slot of the amount
// column.
func (e *Engine) writeSheet(ctx context.Context, cfg *config.Snapshot, fields job.Fields) (storage.ResourceRef, error) {
	month := fields.Month()
	sheet, err := e.adapter.DuplicateTemplate(ctx, cfg.TemplateRef(), sheetName(cfg.User.FullName, month))
	if err != nil {
		return storage.ResourceRef{}, err
	}

	fixed := map[string]string{
		cfg.Template.NameCell:        cfg.User.FullName,
		cfg.Template.TargetMonthCell: month + "-01",
	}
	if err := e.adapter.WriteCells(ctx, sheet.ID, fixed); err != nil {
		return sheet, err
	}

	row, err := e.adapter.FindFirstEmptyRow(ctx, sheet.ID, cfg.Expense.AmountCol, cfg.Expense.StartRow)
	if err != nil {
		return sheet, err
	}

	line := map[string]string{
		storage.Cell(cfg.Expense.DateCol, row):     fields.Date,
		storage.Cell(cfg.Expense.ReasonCol, row):   fields.Reason,
		storage.Cell(cfg.Expense.AmountCol, row):   fields.Amount,
		storage.Cell(cfg.Expense.CategoryCol, row): fields.Category,
		storage.Cell(cfg.Expense.NoteCol, row):     fields.Note,
	}
	if err := e.adapter.WriteCells(ctx, sheet.ID, line); err != nil {
		return sheet, err
	}
	return sheet, nil
}

// advance reports a stage boundary to the engine loop. It returns false when
// the pipeline context ended before the report was delivered.
func (e *Engine) advance(ctx context.Context, st job.Status) bool {
	select {
	case e.stages <- st:
		return true
	case <-ctx.Done():
		return false
	}
}

// sheetName renders the spreadsheet copy title, e.g.
// 立替経費精算書_202406_佐藤花子.
func sheetName(fullName, month string) string {
	return fmt.Sprintf("%s_%s_%s", sheetBaseName, strings.ReplaceAll(month, "-", ""), safeName(fullName))
}

// artifactName renders the uploaded document name, e.g.
// 2024-06_立替経費精算書_佐藤花子.pdf.
func artifactName(fullName, month, ext string) string {
	return fmt.Sprintf("%s_%s_%s%s", month, sheetBaseName, safeName(fullName), ext)
}

// safeName strips whitespace, half and full width, from a user name.
func safeName(name string) string {
	return strings.Join(strings.Fields(name), "")
}
