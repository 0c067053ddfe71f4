package commands

import (
	"canvashistory/domain/canvas"
	"canvashistory/domain/history"
	"canvashistory/pkg/utils"
)

// SessionRef addresses the session a history command acts on
type SessionRef struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
	UserID    string `json:"-" validate:"required"`
}

// SaveSnapshotCommand asks the session history to record the current graph
type SaveSnapshotCommand struct {
	SessionRef
	Nodes []canvas.Node `json:"nodes" validate:"max=10000,dive"`
	Edges []canvas.Edge `json:"edges" validate:"max=50000,dive"`
}

// Validate implements bus.Command. Node positions are not checked here;
// the history rejects them without failing the request.
func (c *SaveSnapshotCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// UndoCommand moves the session history one step back
type UndoCommand struct {
	SessionRef
}

// Validate implements bus.Command
func (c *UndoCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// RedoCommand moves the session history one step forward
type RedoCommand struct {
	SessionRef
}

// Validate implements bus.Command
func (c *RedoCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// CompleteRestoreCommand tells the history that the editor finished applying
// a restored snapshot. A zero Token ends whatever restore is in flight.
type CompleteRestoreCommand struct {
	SessionRef
	Token uint64 `json:"token"`
}

// Validate implements bus.Command
func (c *CompleteRestoreCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// ClearHistoryCommand discards every entry of the session history
type ClearHistoryCommand struct {
	SessionRef
}

// Validate implements bus.Command
func (c *ClearHistoryCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// SaveSnapshotResult is returned by SaveSnapshotCommand
type SaveSnapshotResult struct {
	history.SaveResult
	State history.State `json:"state"`
}

// RestoreResult is returned by UndoCommand and RedoCommand. The snapshot
// must be applied by the caller, who then completes the restore with Token.
type RestoreResult struct {
	Token     uint64            `json:"token"`
	Direction history.Direction `json:"direction"`
	Index     int               `json:"index"`
	Snapshot  canvas.Snapshot   `json:"snapshot"`
	State     history.State     `json:"state"`
}

// CompleteRestoreResult is returned by CompleteRestoreCommand
type CompleteRestoreResult struct {
	Released bool          `json:"released"`
	State    history.State `json:"state"`
}

// StateResult is returned by commands that only change the cursor
type StateResult struct {
	State history.State `json:"state"`
}
