// Package history records canvas snapshots and provides linear undo/redo
// for one editor session.
//
// The editor surface decides when a change is committed and calls
// SaveState with the full graph. The Manager decides whether to keep it:
//
//	result := mgr.SaveState(nodes, edges)
//	if !result.Accepted {
//		// restoring, invalid_position, invalid_data or duplicate
//	}
//
// # Restoring
//
// Undo and Redo move the cursor and return a *Restore holding a deep copy
// of the target snapshot. While a restore is in flight the Manager ignores
// SaveState, so the surface re-rendering the restored graph does not get
// recorded as a new step. The caller releases the flag once the graph has
// been applied:
//
//	r, err := mgr.Undo()
//	if errors.Is(err, history.ErrNothingToUndo) {
//		return
//	}
//	defer r.Complete()
//	apply(r.Snapshot)
//
// Complete only releases the restore it belongs to; a stale handle from an
// earlier undo cannot end a newer one. MarkRestoringComplete releases
// unconditionally. A restore that is never completed expires after the
// configured RestoreTimeout.
//
// # Bounds
//
// The history keeps at most Limit entries (50 by default). Saving past the
// limit evicts the oldest entry. Saving after an undo discards the redo
// branch.
package history
