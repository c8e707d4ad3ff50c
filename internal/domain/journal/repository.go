package journal

import "context"

// Repository defines journal persistence: append new entries and replay an
// instance's history on recovery (spec §4.7).
type Repository interface {
	// Append persists entries for instanceID, in order, assigning Seq if
	// zero. Entries already carrying a Seq are written as-is (used for
	// re-appending after a crash mid-write is ruled out by callers).
	Append(ctx context.Context, instanceID string, entries []Entry) error

	// Load returns every entry for instanceID in Seq order.
	Load(ctx context.Context, instanceID string) ([]Entry, error)

	// ListUnfinished returns the ids of instances whose last Terminated
	// entry (if any) does not carry a terminal state — candidates for
	// startup replay (spec §4.7 "on restart").
	ListUnfinished(ctx context.Context) ([]string, error)
}
