package commands

import (
	"canvashistory/domain/history"
	"canvashistory/pkg/utils"
)

// OpenSessionCommand starts a new editor session for a board
type OpenSessionCommand struct {
	BoardID string `json:"board_id" validate:"required,max=128"`
	UserID  string `json:"-" validate:"required"`
}

// Validate implements bus.Command
func (c *OpenSessionCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// CloseSessionCommand ends a session and drops its history
type CloseSessionCommand struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
	UserID    string `json:"-" validate:"required"`
}

// Validate implements bus.Command
func (c *CloseSessionCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// OpenSessionResult is returned by OpenSessionCommand
type OpenSessionResult struct {
	SessionID string        `json:"session_id"`
	BoardID   string        `json:"board_id"`
	State     history.State `json:"state"`
}
