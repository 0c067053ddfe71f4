package events

import (
	"time"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Event type names. The aggregate of every event is the editing session.
const (
	TypeSnapshotRecorded = "history.snapshot_recorded"
	TypeSnapshotRejected = "history.snapshot_rejected"
	TypeHistoryRestored  = "history.restored"
	TypeHistoryCleared   = "history.cleared"
	TypeSessionOpened    = "session.opened"
	TypeSessionClosed    = "session.closed"
)

func newBase(sessionID, eventType string, timestamp time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: sessionID,
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     1,
	}
}

// Session Events

// SessionOpened is raised when an editor session is created for a board
type SessionOpened struct {
	BaseEvent
	BoardID string `json:"board_id"`
	UserID  string `json:"user_id"`
	Limit   int    `json:"limit"`
}

// NewSessionOpened creates a SessionOpened event
func NewSessionOpened(sessionID, boardID, userID string, limit int, timestamp time.Time) SessionOpened {
	return SessionOpened{
		BaseEvent: newBase(sessionID, TypeSessionOpened, timestamp),
		BoardID:   boardID,
		UserID:    userID,
		Limit:     limit,
	}
}

// SessionClosed is raised when a session is closed explicitly or evicted for idleness
type SessionClosed struct {
	BaseEvent
	BoardID string `json:"board_id"`
	UserID  string `json:"user_id"`
	Reason  string `json:"reason"`
}

// NewSessionClosed creates a SessionClosed event
func NewSessionClosed(sessionID, boardID, userID, reason string, timestamp time.Time) SessionClosed {
	return SessionClosed{
		BaseEvent: newBase(sessionID, TypeSessionClosed, timestamp),
		BoardID:   boardID,
		UserID:    userID,
		Reason:    reason,
	}
}

// History Events

// SnapshotRecorded is raised when a snapshot becomes the current history entry
type SnapshotRecorded struct {
	BaseEvent
	Fingerprint  string `json:"fingerprint"`
	NodeCount    int    `json:"node_count"`
	EdgeCount    int    `json:"edge_count"`
	Length       int    `json:"length"`
	CurrentIndex int    `json:"current_index"`
}

// NewSnapshotRecorded creates a SnapshotRecorded event
func NewSnapshotRecorded(sessionID, fingerprint string, nodeCount, edgeCount, length, currentIndex int, timestamp time.Time) SnapshotRecorded {
	return SnapshotRecorded{
		BaseEvent:    newBase(sessionID, TypeSnapshotRecorded, timestamp),
		Fingerprint:  fingerprint,
		NodeCount:    nodeCount,
		EdgeCount:    edgeCount,
		Length:       length,
		CurrentIndex: currentIndex,
	}
}

// SnapshotRejected is raised when a save request was ignored
type SnapshotRejected struct {
	BaseEvent
	Reason string `json:"reason"`
}

// NewSnapshotRejected creates a SnapshotRejected event
func NewSnapshotRejected(sessionID, reason string, timestamp time.Time) SnapshotRejected {
	return SnapshotRejected{
		BaseEvent: newBase(sessionID, TypeSnapshotRejected, timestamp),
		Reason:    reason,
	}
}

// HistoryRestored is raised when undo or redo moves the cursor
type HistoryRestored struct {
	BaseEvent
	Direction    string `json:"direction"`
	CurrentIndex int    `json:"current_index"`
	Fingerprint  string `json:"fingerprint"`
}

// NewHistoryRestored creates a HistoryRestored event
func NewHistoryRestored(sessionID, direction string, currentIndex int, fingerprint string, timestamp time.Time) HistoryRestored {
	return HistoryRestored{
		BaseEvent:    newBase(sessionID, TypeHistoryRestored, timestamp),
		Direction:    direction,
		CurrentIndex: currentIndex,
		Fingerprint:  fingerprint,
	}
}

// HistoryCleared is raised when all entries of a session are discarded
type HistoryCleared struct {
	BaseEvent
	Discarded int `json:"discarded"`
}

// NewHistoryCleared creates a HistoryCleared event
func NewHistoryCleared(sessionID string, discarded int, timestamp time.Time) HistoryCleared {
	return HistoryCleared{
		BaseEvent: newBase(sessionID, TypeHistoryCleared, timestamp),
		Discarded: discarded,
	}
}
