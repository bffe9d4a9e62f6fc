// Package progress implements the progress-state engine: a concurrently
// mutated session that tracks one long-running operation in indeterminate,
// normal, or stepped mode, aggregates per-step and per-task contributions
// into one overall percentage, and publishes de-duplicated snapshots to
// observers through a non-blocking notification hub.
package progress
