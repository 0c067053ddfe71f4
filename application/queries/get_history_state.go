package queries

import (
	"canvashistory/domain/canvas"
	"canvashistory/domain/history"
	"canvashistory/pkg/utils"
)

// GetHistoryStateQuery reads the cursor of a session history
type GetHistoryStateQuery struct {
	SessionID string `validate:"required,uuid"`
	UserID    string `validate:"required"`
	// IncludeSnapshot adds a copy of the current entry to the view.
	IncludeSnapshot bool
}

// Validate implements bus.Query
func (q *GetHistoryStateQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// HistoryView is the read model returned by GetHistoryStateQuery
type HistoryView struct {
	SessionID string           `json:"session_id"`
	BoardID   string           `json:"board_id"`
	State     history.State    `json:"state"`
	Current   *canvas.Snapshot `json:"current_snapshot,omitempty"`
}
