// Package engine runs the execution side of the tool: it owns the
// authoritative job set, consumes commands, emits events and drives the
// four-stage commit pipeline one job at a time.
package engine
