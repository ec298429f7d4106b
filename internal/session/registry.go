// Package session binds authenticated identities to live connections and
// holds the per-user notification backlog.
package session

import (
	"encoding/json"
	"errors"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"wordclash/internal/core/data"
	"wordclash/internal/protocol"
)

// ErrAlreadyLoggedIn is returned by Open when a session for the username
// already exists. Second logins are rejected, not queued.
var ErrAlreadyLoggedIn = errors.New("user is already logged in")

// Conn is the handle the registry keeps for a client connection.
type Conn interface {
	RemoteIP() string
}

// Session is the live state of one logged-in user.
type Session struct {
	Username   string
	Conn       Conn
	NotifyAddr *net.UDPAddr

	backlog []*protocol.Message
}

// Registry maps each logged-in username to its single Session. All methods
// are safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	db       *gorm.DB
	notifier *Notifier
	logger   *logrus.Logger
}

func NewRegistry(db *gorm.DB, notifier *Notifier, logger *logrus.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		db:       db,
		notifier: notifier,
		logger:   logger,
	}
}

// Open atomically checks for and creates the session for username. Notices
// stored while the user was offline are replayed into the new backlog.
func (r *Registry) Open(username string, conn Conn, notifyAddr *net.UDPAddr) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[username]; ok {
		return nil, ErrAlreadyLoggedIn
	}

	session := &Session{
		Username:   username,
		Conn:       conn,
		NotifyAddr: notifyAddr,
	}

	stored, err := data.TakeStoredNotices(r.db, username)
	if err != nil {
		return nil, err
	}
	for _, notice := range stored {
		var fields []string
		if err := json.Unmarshal([]byte(notice.Fields), &fields); err != nil {
			r.logger.Warnf("dropping stored notice %d with unreadable fields: %v", notice.ID, err)
			continue
		}
		session.backlog = append(session.backlog, protocol.New(protocol.MessageType(notice.MessageType), fields...))
	}

	r.sessions[username] = session
	return session, nil
}

// Close removes the session. Undelivered relationship notices are written
// back to the database for redelivery at the next login; everything else in
// the backlog is superseded by the disconnect and dropped.
func (r *Registry) Close(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[username]
	if !ok {
		return
	}
	delete(r.sessions, username)

	for _, msg := range session.backlog {
		if !durable(msg.Type) {
			continue
		}
		if err := r.store(username, msg); err != nil {
			r.logger.Warnf("failed to store notice %s for %s: %v", msg.Type, username, err)
		}
	}
}

// Enqueue appends a notification to the target's backlog and, when the
// session registered a notification address, pushes it as a datagram as
// well. Returns false if the target has no session; the caller decides
// whether dropping is acceptable.
func (r *Registry) Enqueue(username string, m *protocol.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[username]
	if !ok {
		return false
	}

	session.backlog = append(session.backlog, m)
	if r.notifier != nil && session.NotifyAddr != nil {
		r.notifier.Push(session.NotifyAddr, m)
	}
	return true
}

// EnqueueDurable behaves like Enqueue but persists the notification against
// the user identity when no session exists, so it survives until the next
// login.
func (r *Registry) EnqueueDurable(username string, m *protocol.Message) {
	if r.Enqueue(username, m) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store(username, m); err != nil {
		r.logger.Warnf("failed to store notice %s for %s: %v", m.Type, username, err)
	}
}

// DrainNext pops the oldest backlog entry, or nil if the backlog is empty
// or the user has no session. Non-blocking.
func (r *Registry) DrainNext(username string) *protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[username]
	if !ok || len(session.backlog) == 0 {
		return nil
	}

	next := session.backlog[0]
	session.backlog = session.backlog[1:]
	return next
}

// IsOnline reports whether username has a live session.
func (r *Registry) IsOnline(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[username]
	return ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) store(username string, m *protocol.Message) error {
	fields, err := json.Marshal(m.Fields)
	if err != nil {
		return err
	}
	return data.CreateStoredNotice(r.db, &data.StoredNotice{
		Username:    username,
		MessageType: int16(m.Type),
		Fields:      string(fields),
	})
}

// durable reports whether a notification must survive a logout. Challenge
// notices are meaningless after disconnection, but relationship updates
// belong to the user identity rather than the session.
func durable(t protocol.MessageType) bool {
	switch t {
	case protocol.FriendshipRequested, protocol.FriendshipConfirmed, protocol.FriendshipDeclined:
		return true
	}
	return false
}
