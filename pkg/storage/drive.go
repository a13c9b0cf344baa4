package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
)

const (
	defaultDriveURL  = "https://www.googleapis.com/drive/v3"
	defaultUploadURL = "https://www.googleapis.com/upload/drive/v3"
	defaultSheetsURL = "https://sheets.googleapis.com/v4"

	sheetMIME    = "application/vnd.google-apps.spreadsheet"
	shortcutMIME = "application/vnd.google-apps.shortcut"
	pdfMIME      = "application/pdf"
)

// SessionProvider supplies an authenticated HTTP client for the lifetime of
// one adapter. Token refresh is the provider's concern.
type SessionProvider interface {
	Client(ctx context.Context) (*http.Client, error)
}

// DriveAdapter implements Adapter against the Google Drive and Sheets REST
// APIs. All methods require Init to have succeeded.
type DriveAdapter struct {
	sessions SessionProvider
	http     *http.Client
	logger   *slog.Logger

	driveURL  string
	uploadURL string
	sheetsURL string
}

// DriveOption configures a DriveAdapter.
type DriveOption func(*DriveAdapter)

// WithDriveLogger sets the adapter logger.
func WithDriveLogger(logger *slog.Logger) DriveOption {
	return func(a *DriveAdapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithEndpoints overrides the API base URLs. Used by tests.
func WithEndpoints(drive, upload, sheets string) DriveOption {
	return func(a *DriveAdapter) {
		a.driveURL = drive
		a.uploadURL = upload
		a.sheetsURL = sheets
	}
}

// NewDriveAdapter creates an adapter backed by the given session provider.
func NewDriveAdapter(sessions SessionProvider, opts ...DriveOption) *DriveAdapter {
	a := &DriveAdapter{
		sessions:  sessions,
		logger:    slog.Default(),
		driveURL:  defaultDriveURL,
		uploadURL: defaultUploadURL,
		sheetsURL: defaultSheetsURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init acquires the authenticated session. Called once by the engine at
// startup; failure ends the session.
func (a *DriveAdapter) Init(ctx context.Context) error {
	client, err := a.sessions.Client(ctx)
	if err != nil {
		return NewError(KindAuth, "init", err)
	}
	a.http = client
	a.logger.Info("drive.session.ready")
	return nil
}

// ArtifactExt returns ".pdf"; the Drive export endpoint renders PDF.
func (a *DriveAdapter) ArtifactExt() string { return ".pdf" }

type driveFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListSourceItems lists non-trashed images in the source folder.
func (a *DriveAdapter) ListSourceItems(ctx context.Context, folderRef string) ([]ResourceRef, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("'%s' in parents and trashed=false and mimeType contains 'image/'", folderRef))
	q.Set("fields", "files(id,name)")

	var resp struct {
		Files []driveFile `json:"files"`
	}
	if err := a.getJSON(ctx, "list", a.driveURL+"/files?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	refs := make([]ResourceRef, 0, len(resp.Files))
	for _, f := range resp.Files {
		refs = append(refs, ResourceRef{ID: f.ID, Name: f.Name})
	}
	a.logger.Info("drive.list", "folder", folderRef, "files", len(refs))
	return refs, nil
}

// DuplicateTemplate resolves the template (following one level of shortcut)
// and copies it under the given name.
func (a *DriveAdapter) DuplicateTemplate(ctx context.Context, templateRef, name string) (ResourceRef, error) {
	sheetID, err := a.resolveTemplate(ctx, templateRef)
	if err != nil {
		return ResourceRef{}, err
	}

	body := map[string]any{"name": name}
	var copied driveFile
	u := fmt.Sprintf("%s/files/%s/copy?fields=id,name", a.driveURL, url.PathEscape(sheetID))
	if err := a.postJSON(ctx, "copy", u, body, &copied); err != nil {
		return ResourceRef{}, err
	}
	a.logger.Info("drive.copy", "template", sheetID, "copy", copied.ID, "name", name)
	return ResourceRef{ID: copied.ID, Name: copied.Name}, nil
}

// resolveTemplate returns the real spreadsheet id behind a template
// reference that may be a Drive shortcut.
func (a *DriveAdapter) resolveTemplate(ctx context.Context, templateRef string) (string, error) {
	var meta struct {
		MimeType        string `json:"mimeType"`
		ShortcutDetails *struct {
			TargetID       string `json:"targetId"`
			TargetMimeType string `json:"targetMimeType"`
		} `json:"shortcutDetails"`
	}
	u := fmt.Sprintf("%s/files/%s?fields=mimeType,shortcutDetails(targetId,targetMimeType)",
		a.driveURL, url.PathEscape(templateRef))
	if err := a.getJSON(ctx, "resolve_template", u, &meta); err != nil {
		return "", err
	}

	switch meta.MimeType {
	case sheetMIME:
		return templateRef, nil
	case shortcutMIME:
		if meta.ShortcutDetails == nil || meta.ShortcutDetails.TargetMimeType != sheetMIME {
			return "", NewError(KindNotFound, "resolve_template",
				fmt.Errorf("template shortcut does not point at a spreadsheet"))
		}
		return meta.ShortcutDetails.TargetID, nil
	default:
		return "", NewError(KindNotFound, "resolve_template",
			fmt.Errorf("template must be a spreadsheet, got %s", meta.MimeType))
	}
}

// WriteCells applies the cell values in one values:batchUpdate call with
// USER_ENTERED semantics, so the sheet parses dates and numbers the way a
// typing user would produce them.
func (a *DriveAdapter) WriteCells(ctx context.Context, sheetRef string, cells map[string]string) error {
	title, err := a.firstSheetTitle(ctx, sheetRef)
	if err != nil {
		return err
	}

	// Stable range order keeps requests reproducible.
	refs := make([]string, 0, len(cells))
	for ref := range cells {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	type valueRange struct {
		Range  string     `json:"range"`
		Values [][]string `json:"values"`
	}
	data := make([]valueRange, 0, len(refs))
	for _, ref := range refs {
		data = append(data, valueRange{
			Range:  fmt.Sprintf("%s!%s", title, ref),
			Values: [][]string{{cells[ref]}},
		})
	}
	body := map[string]any{
		"valueInputOption": "USER_ENTERED",
		"data":             data,
	}

	u := fmt.Sprintf("%s/spreadsheets/%s/values:batchUpdate", a.sheetsURL, url.PathEscape(sheetRef))
	if err := a.postJSON(ctx, "write_cells", u, body, nil); err != nil {
		return err
	}
	a.logger.Info("sheets.write", "sheet", sheetRef, "cells", len(cells))
	return nil
}

// FindFirstEmptyRow reads the column from startRow down and returns the row
// of the first empty cell.
func (a *DriveAdapter) FindFirstEmptyRow(ctx context.Context, sheetRef, column string, startRow int) (int, error) {
	title, err := a.firstSheetTitle(ctx, sheetRef)
	if err != nil {
		return 0, err
	}

	rng := fmt.Sprintf("%s!%s%d:%s", title, column, startRow, column)
	var resp struct {
		Values [][]string `json:"values"`
	}
	u := fmt.Sprintf("%s/spreadsheets/%s/values/%s", a.sheetsURL, url.PathEscape(sheetRef), url.PathEscape(rng))
	if err := a.getJSON(ctx, "scan_rows", u, &resp); err != nil {
		return 0, err
	}

	filled := 0
	for _, row := range resp.Values {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			break
		}
		filled++
	}
	return startRow + filled, nil
}

// ExportDocument exports the spreadsheet as PDF.
func (a *DriveAdapter) ExportDocument(ctx context.Context, sheetRef string) ([]byte, error) {
	u := fmt.Sprintf("%s/files/%s/export?mimeType=%s", a.driveURL, url.PathEscape(sheetRef), url.QueryEscape(pdfMIME))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, NewError(KindTransport, "export", err)
	}
	resp, err := a.do("export", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(KindTransport, "export", err)
	}
	a.logger.Info("drive.export", "sheet", sheetRef, "bytes", len(data))
	return data, nil
}

// UploadArtifact uploads the document into the destination folder via the
// multipart upload endpoint.
func (a *DriveAdapter) UploadArtifact(ctx context.Context, folderRef string, data []byte, name string) (ArtifactRef, error) {
	meta := map[string]any{
		"name":     name,
		"parents":  []string{folderRef},
		"mimeType": pdfMIME,
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return ArtifactRef{}, NewError(KindTransport, "upload", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return ArtifactRef{}, NewError(KindTransport, "upload", err)
	}
	if _, err := part.Write(metaJSON); err != nil {
		return ArtifactRef{}, NewError(KindTransport, "upload", err)
	}

	part, err = mw.CreatePart(textproto.MIMEHeader{"Content-Type": {pdfMIME}})
	if err != nil {
		return ArtifactRef{}, NewError(KindTransport, "upload", err)
	}
	if _, err := part.Write(data); err != nil {
		return ArtifactRef{}, NewError(KindTransport, "upload", err)
	}
	if err := mw.Close(); err != nil {
		return ArtifactRef{}, NewError(KindTransport, "upload", err)
	}

	u := a.uploadURL + "/files?uploadType=multipart&fields=id,name"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return ArtifactRef{}, NewError(KindTransport, "upload", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	resp, err := a.do("upload", req)
	if err != nil {
		return ArtifactRef{}, err
	}
	defer resp.Body.Close()

	var uploaded driveFile
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return ArtifactRef{}, NewError(KindTransport, "upload", err)
	}
	a.logger.Info("drive.upload", "folder", folderRef, "artifact", uploaded.ID, "name", name)
	return ArtifactRef{ID: uploaded.ID, Name: uploaded.Name}, nil
}

// firstSheetTitle fetches the title of the first sheet for range building.
func (a *DriveAdapter) firstSheetTitle(ctx context.Context, sheetRef string) (string, error) {
	var resp struct {
		Sheets []struct {
			Properties struct {
				Title string `json:"title"`
			} `json:"properties"`
		} `json:"sheets"`
	}
	u := fmt.Sprintf("%s/spreadsheets/%s?fields=sheets(properties(title))", a.sheetsURL, url.PathEscape(sheetRef))
	if err := a.getJSON(ctx, "sheet_title", u, &resp); err != nil {
		return "", err
	}
	if len(resp.Sheets) == 0 {
		return "", NewError(KindNotFound, "sheet_title", fmt.Errorf("spreadsheet %s has no sheets", sheetRef))
	}
	return resp.Sheets[0].Properties.Title, nil
}

func (a *DriveAdapter) getJSON(ctx context.Context, op, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return NewError(KindTransport, op, err)
	}
	return a.doJSON(op, req, out)
}

func (a *DriveAdapter) postJSON(ctx context.Context, op, url string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return NewError(KindTransport, op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return NewError(KindTransport, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return a.doJSON(op, req, out)
}

func (a *DriveAdapter) doJSON(op string, req *http.Request, out any) error {
	resp, err := a.do(op, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewError(KindTransport, op, err)
	}
	return nil
}

// do executes the request and converts non-2xx responses into the adapter
// error taxonomy. The caller owns the body on success.
func (a *DriveAdapter) do(op string, req *http.Request) (*http.Response, error) {
	if a.http == nil {
		return nil, NewError(KindTransport, op, fmt.Errorf("adapter not initialized"))
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, NewError(KindTransport, op, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	resp.Body.Close()
	err = fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, NewError(KindAuth, op, err)
	case http.StatusNotFound:
		return nil, NewError(KindNotFound, op, err)
	default:
		return nil, NewError(KindTransport, op, err)
	}
}
