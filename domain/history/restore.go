package history

import (
	"sync"

	"canvashistory/domain/canvas"
)

// Direction tells which way a restore moved the cursor
type Direction string

const (
	DirectionUndo Direction = "undo"
	DirectionRedo Direction = "redo"
)

// Restore is an in-flight undo or redo. The caller applies Snapshot to the
// live graph and then calls Complete.
type Restore struct {
	Snapshot  canvas.Snapshot
	Index     int
	Direction Direction

	token   uint64
	manager *Manager
	once    sync.Once
}

// Token identifies this restore for CompleteRestore
func (r *Restore) Token() uint64 {
	return r.token
}

// Complete releases the restoring flag if this is still the latest restore.
// Only the first call has an effect.
func (r *Restore) Complete() {
	r.once.Do(func() {
		r.manager.CompleteRestore(r.token)
	})
}
