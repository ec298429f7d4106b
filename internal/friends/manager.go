// Package friends tracks pending friendship requests. A pair of users can
// have at most one pending request between them, in at most one direction.
package friends

import (
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"wordclash/internal/core/data"
)

var (
	// ErrAlreadySent means the sender already has a request pending
	// toward the receiver.
	ErrAlreadySent = errors.New("friendship request already sent")
	// ErrAlreadyReceived means the receiver already sent a request to the
	// sender; opposite-direction requests are rejected, not merged.
	ErrAlreadyReceived = errors.New("friendship request already received")
)

// Manager is the in-memory index of pending requests, keyed by receiver.
// Requests outlive sessions, so every mutation is written through to the
// database inside the same critical section that updates the index.
type Manager struct {
	mu sync.Mutex
	// receiver -> set of senders with a pending request toward them.
	pending map[string]map[string]struct{}
	db      *gorm.DB
}

// NewManager builds a Manager warmed with the invites persisted by
// previous runs.
func NewManager(db *gorm.DB) (*Manager, error) {
	invites, err := data.AllFriendInvites(db)
	if err != nil {
		return nil, fmt.Errorf("loading pending friendship requests: %w", err)
	}

	m := &Manager{
		pending: make(map[string]map[string]struct{}),
		db:      db,
	}
	for _, invite := range invites {
		m.insert(invite.Sender, invite.Receiver)
	}
	return m, nil
}

// Record registers a pending request from -> to. The duplicate and
// reverse-direction checks and the insertion happen under one lock, so two
// opposite-direction requests can never both succeed.
func (m *Manager) Record(from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.has(from, to) {
		return ErrAlreadySent
	}
	if m.has(to, from) {
		return ErrAlreadyReceived
	}

	if err := data.CreateFriendInvite(m.db, from, to); err != nil {
		return fmt.Errorf("persisting friendship request: %w", err)
	}
	m.insert(from, to)
	return nil
}

// Discard removes the pending request from -> to, reporting whether one
// existed. Discarding an absent request is a no-op, not an error.
func (m *Manager) Discard(from, to string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.has(from, to) {
		return false
	}

	// Best effort; the in-memory index stays authoritative for this run.
	_, _ = data.DeleteFriendInvite(m.db, from, to)

	senders := m.pending[to]
	delete(senders, from)
	if len(senders) == 0 {
		delete(m.pending, to)
	}
	return true
}

// PendingFor returns the senders with a request pending toward receiver.
func (m *Manager) PendingFor(receiver string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	senders := make([]string, 0, len(m.pending[receiver]))
	for sender := range m.pending[receiver] {
		senders = append(senders, sender)
	}
	return senders
}

func (m *Manager) has(from, to string) bool {
	_, ok := m.pending[to][from]
	return ok
}

func (m *Manager) insert(from, to string) {
	if m.pending[to] == nil {
		m.pending[to] = make(map[string]struct{})
	}
	m.pending[to][from] = struct{}{}
}
