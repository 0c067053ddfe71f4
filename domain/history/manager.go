package history

import (
	"errors"
	"sync"
	"time"

	"canvashistory/domain/canvas"

	"go.uber.org/zap"
)

const (
	// DefaultLimit is the number of snapshots kept per session
	DefaultLimit = 50
	// DefaultRestoreTimeout bounds how long an uncompleted restore blocks SaveState
	DefaultRestoreTimeout = 5 * time.Second
)

// Common errors for history navigation.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// RejectReason explains why SaveState did not record a snapshot
type RejectReason string

const (
	ReasonRestoring       RejectReason = "restoring"
	ReasonInvalidPosition RejectReason = "invalid_position"
	ReasonInvalidData     RejectReason = "invalid_data"
	ReasonDuplicate       RejectReason = "duplicate"
)

// SaveResult reports the outcome of SaveState. A rejection is not an error.
type SaveResult struct {
	Accepted    bool               `json:"accepted"`
	Reason      RejectReason       `json:"reason,omitempty"`
	Fingerprint canvas.Fingerprint `json:"fingerprint"`
}

// State is a point-in-time view of the history cursor
type State struct {
	Length       int                `json:"length"`
	CurrentIndex int                `json:"current_index"`
	Limit        int                `json:"limit"`
	Restoring    bool               `json:"restoring"`
	CanUndo      bool               `json:"can_undo"`
	CanRedo      bool               `json:"can_redo"`
	Current      canvas.Fingerprint `json:"current"`
	// Version increases with every change. A higher Version is newer.
	Version uint64 `json:"version"`
}

// Options configures a Manager
type Options struct {
	// Limit is the maximum number of entries; <= 0 means DefaultLimit.
	Limit int
	// RestoreTimeout is how long a restore may stay uncompleted.
	// Zero means DefaultRestoreTimeout, negative disables expiry.
	RestoreTimeout time.Duration
	Logger         *zap.Logger
	// Now is the clock used for timestamps and restore expiry.
	Now func() time.Time
}

// Manager is the undo/redo history of one editor session.
// It is safe for concurrent use.
type Manager struct {
	mu sync.Mutex

	entries []canvas.Snapshot
	current int

	restoring      bool
	restoreGen     uint64
	restoreStarted time.Time

	limit          int
	restoreTimeout time.Duration
	logger         *zap.Logger
	now            func() time.Time

	version     uint64
	subscribers map[uint64]*subscription
	nextSubID   uint64
}

// subscription serializes deliveries to one callback and drops any state
// older than the last one it delivered.
type subscription struct {
	mu   sync.Mutex
	seen uint64
	fn   func(State)
}

func (s *subscription) deliver(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state.Version <= s.seen {
		return
	}
	s.seen = state.Version
	s.fn(state)
}

// NewManager creates an empty history
func NewManager(opts Options) *Manager {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.RestoreTimeout == 0 {
		opts.RestoreTimeout = DefaultRestoreTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Manager{
		current:        -1,
		limit:          opts.Limit,
		restoreTimeout: opts.RestoreTimeout,
		logger:         opts.Logger,
		now:            opts.Now,
		subscribers:    make(map[uint64]*subscription),
	}
}

// SaveState records the graph as a new history entry unless a restore is in
// flight, a node lacks a numeric position, or the graph equals the current
// entry. The caller's slices are copied and never retained.
func (m *Manager) SaveState(nodes []canvas.Node, edges []canvas.Edge) SaveResult {
	m.mu.Lock()

	var leaseExpired bool
	if m.restoring {
		if !m.restoreExpiredLocked() {
			m.mu.Unlock()
			m.logger.Debug("Snapshot ignored while restoring")
			return SaveResult{Reason: ReasonRestoring}
		}
		m.logger.Warn("Restore was never completed, releasing it",
			zap.Duration("held", m.now().Sub(m.restoreStarted)),
			zap.Duration("timeout", m.restoreTimeout),
		)
		m.restoring = false
		leaseExpired = true
	}

	result := m.recordLocked(nodes, edges)
	if !result.Accepted && !leaseExpired {
		m.mu.Unlock()
		return result
	}
	m.commitAndUnlock()
	return result
}

// recordLocked appends the graph unless it is invalid or duplicates the
// current entry.
func (m *Manager) recordLocked(nodes []canvas.Node, edges []canvas.Edge) SaveResult {
	if err := canvas.ValidatePositions(nodes); err != nil {
		m.logger.Warn("Snapshot rejected", zap.String("reason", string(ReasonInvalidPosition)), zap.Error(err))
		return SaveResult{Reason: ReasonInvalidPosition}
	}

	// Fingerprint the caller's graph so unencodable payloads are rejected
	// before the copy.
	fp, err := canvas.ComputeFingerprint(nodes, edges)
	if err != nil {
		m.logger.Warn("Snapshot rejected", zap.String("reason", string(ReasonInvalidData)), zap.Error(err))
		return SaveResult{Reason: ReasonInvalidData}
	}
	snapshot := canvas.Snapshot{
		Nodes:       canvas.CloneNodes(nodes),
		Edges:       canvas.CloneEdges(edges),
		Timestamp:   m.now(),
		Fingerprint: fp,
	}

	if m.isDuplicateLocked(snapshot) {
		m.logger.Debug("Duplicate snapshot ignored", zap.String("fingerprint", fp.String()))
		return SaveResult{Reason: ReasonDuplicate, Fingerprint: fp}
	}

	// Drop the redo branch, then append.
	for i := m.current + 1; i < len(m.entries); i++ {
		m.entries[i] = canvas.Snapshot{}
	}
	m.entries = append(m.entries[:m.current+1], snapshot)
	m.current = len(m.entries) - 1

	if len(m.entries) > m.limit {
		copy(m.entries, m.entries[1:])
		m.entries[len(m.entries)-1] = canvas.Snapshot{}
		m.entries = m.entries[:len(m.entries)-1]
		m.current--
	}

	return SaveResult{Accepted: true, Fingerprint: fp}
}

// isDuplicateLocked compares the candidate with the current entry.
// Differing counts short-circuit before the content comparison.
func (m *Manager) isDuplicateLocked(candidate canvas.Snapshot) bool {
	if m.current < 0 {
		return false
	}
	top := m.entries[m.current]
	if len(top.Nodes) != len(candidate.Nodes) || len(top.Edges) != len(candidate.Edges) {
		return false
	}
	return top.Fingerprint.Equal(candidate.Fingerprint)
}

// Undo steps back one entry and starts a restore of it.
// Returns ErrNothingToUndo without changing state when at the first entry.
func (m *Manager) Undo() (*Restore, error) {
	m.mu.Lock()
	if m.current <= 0 {
		m.mu.Unlock()
		return nil, ErrNothingToUndo
	}
	m.current--
	r := m.beginRestoreLocked(DirectionUndo)
	m.commitAndUnlock()
	return r, nil
}

// Redo steps forward one entry and starts a restore of it.
// Returns ErrNothingToRedo without changing state when at the last entry.
func (m *Manager) Redo() (*Restore, error) {
	m.mu.Lock()
	if m.current >= len(m.entries)-1 {
		m.mu.Unlock()
		return nil, ErrNothingToRedo
	}
	m.current++
	r := m.beginRestoreLocked(DirectionRedo)
	m.commitAndUnlock()
	return r, nil
}

func (m *Manager) beginRestoreLocked(dir Direction) *Restore {
	m.restoring = true
	m.restoreGen++
	m.restoreStarted = m.now()

	return &Restore{
		Snapshot:  m.entries[m.current].Clone(),
		Index:     m.current,
		Direction: dir,
		token:     m.restoreGen,
		manager:   m,
	}
}

// MarkRestoringComplete ends any restore in flight and reports whether one
// was. Calling it when no restore is in flight has no effect.
func (m *Manager) MarkRestoringComplete() bool {
	return m.release(0)
}

// CompleteRestore ends the restore identified by token. It reports false
// when the token is stale or no restore is in flight.
func (m *Manager) CompleteRestore(token uint64) bool {
	if token == 0 {
		return false
	}
	return m.release(token)
}

// release clears the restoring flag. A zero token matches any restore.
func (m *Manager) release(token uint64) bool {
	m.mu.Lock()
	if !m.restoring || (token != 0 && token != m.restoreGen) {
		m.mu.Unlock()
		return false
	}
	m.restoring = false
	m.commitAndUnlock()
	return true
}

// ClearHistory empties the history and cancels any restore in flight
func (m *Manager) ClearHistory() {
	m.mu.Lock()
	m.entries = nil
	m.current = -1
	m.restoring = false
	m.commitAndUnlock()
}

// CanUndo reports whether there is an entry before the current one
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current > 0
}

// CanRedo reports whether there is an entry after the current one
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current < len(m.entries)-1
}

// IsRestoring reports whether a restore is in flight
func (m *Manager) IsRestoring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restoring
}

// Len returns the number of recorded entries
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// State returns the current cursor view
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Current returns a deep copy of the entry under the cursor
func (m *Manager) Current() (canvas.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current < 0 {
		return canvas.Snapshot{}, false
	}
	return m.entries[m.current].Clone(), true
}

// Subscribe registers fn to be called with the new State after every change.
// Callbacks run on the goroutine that made the change, outside the lock.
// Calls to fn are serialized and their Version only grows, so a slow
// callback delays later changes instead of seeing them out of order.
// fn must not modify the Manager.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	m.nextSubID++
	id := m.nextSubID
	m.subscribers[id] = &subscription{seen: m.version, fn: fn}
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
		})
	}
}

func (m *Manager) stateLocked() State {
	st := State{
		Length:       len(m.entries),
		CurrentIndex: m.current,
		Limit:        m.limit,
		Restoring:    m.restoring,
		CanUndo:      m.current > 0,
		CanRedo:      m.current < len(m.entries)-1,
		Version:      m.version,
	}
	if m.current >= 0 {
		st.Current = m.entries[m.current].Fingerprint
	}
	return st
}

// commitAndUnlock versions the change made under m.mu, releases the lock
// and delivers the new state.
func (m *Manager) commitAndUnlock() {
	m.version++
	state := m.stateLocked()
	subs := make([]*subscription, 0, len(m.subscribers))
	for _, sub := range m.subscribers {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(state)
	}
}

func (m *Manager) restoreExpiredLocked() bool {
	if m.restoreTimeout < 0 {
		return false
	}
	return m.now().Sub(m.restoreStarted) > m.restoreTimeout
}
