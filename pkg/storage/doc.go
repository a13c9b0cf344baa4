// Package storage defines the adapter boundary behind which all spreadsheet
// and file operations happen.
//
// This package includes:
//   - Adapter: the capability interface consumed by the engine
//   - AdapterError: the transport/auth/not-found error taxonomy
//   - DriveAdapter: Google Drive + Sheets over REST
//   - LocalAdapter: an XLSX-on-disk backend for offline use and tests
//
// The engine treats every adapter failure identically as a stage failure;
// the error kind exists for logging and user-facing messages only.
package storage
