// Package job provides the receipt job model and its status state machine.
//
// This package contains:
//   - Job: one receipt awaiting data entry and commit
//   - Fields: the user-editable receipt values
//   - Status: the lifecycle state machine driven by the engine
//
// The package is pure data and transition rules; it performs no I/O.
package job
