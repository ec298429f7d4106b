package challenge

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrPreviousSent means the sender already has an outstanding
	// challenge request of their own.
	ErrPreviousSent = errors.New("previous challenge request still pending (sent)")
	// ErrPreviousReceived means the sender has an unanswered challenge
	// request from somebody else.
	ErrPreviousReceived = errors.New("previous challenge request still pending (received)")
	// ErrReceiverBusy means the receiver is already party to another
	// challenge request.
	ErrReceiverBusy = errors.New("receiver is engaged in another challenge request")
)

type request struct {
	from, to string
	timer    *time.Timer
}

// RequestManager tracks at most one outstanding challenge negotiation per
// user, with scheduled expiry. Both parties key into one shared archive so
// the busy checks and the reservation are atomic.
type RequestManager struct {
	mu      sync.Mutex
	archive pairArchive[request]
	timeout time.Duration
	events  chan Event
	logger  *logrus.Logger
}

func NewRequestManager(timeout time.Duration, logger *logrus.Logger) *RequestManager {
	return &RequestManager{
		archive: newPairArchive[request](),
		timeout: timeout,
		events:  make(chan Event, 64),
		logger:  logger,
	}
}

// Events delivers timer-driven expirations. The controller consumes this
// channel and notifies both parties.
func (m *RequestManager) Events() <-chan Event {
	return m.events
}

// Record reserves both parties for a new request from -> to and schedules
// its expiry. Both keys are reserved atomically or not at all.
func (m *RequestManager) Record(from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.archive.lookup(from); ok {
		if r.from == from {
			return ErrPreviousSent
		}
		return ErrPreviousReceived
	}
	if _, ok := m.archive.lookup(to); ok {
		return ErrReceiverBusy
	}

	r := &request{from: from, to: to}
	m.archive.register(from, to, r)
	r.timer = time.AfterFunc(m.timeout, func() { m.expire(r) })
	return nil
}

// Discard removes the pending request from -> to on an explicit accept or
// decline, reporting whether it existed.
func (m *RequestManager) Discard(from, to string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.archive.lookup(from)
	if !ok || r.from != from || r.to != to {
		return false
	}

	r.timer.Stop()
	m.archive.remove(r.from, r.to)
	return true
}

// PendingFor returns the sender of the request the receiver has yet to
// answer, if any.
func (m *RequestManager) PendingFor(receiver string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.archive.lookup(receiver)
	if !ok || r.to != receiver {
		return "", false
	}
	return r.from, true
}

// CancelFor tears down the request user is party to, in either role, and
// returns the counterpart's username so the caller can notify them. Used
// when a user disconnects mid-negotiation.
func (m *RequestManager) CancelFor(user string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.archive.lookup(user)
	if !ok {
		return "", false
	}

	r.timer.Stop()
	m.archive.remove(r.from, r.to)
	if user == r.from {
		return r.to, true
	}
	return r.from, true
}

// expire fires on the timer goroutine. It synchronizes with client-driven
// calls through the manager mutex; losing the race to an accept, decline,
// or cancel leaves nothing to do. The event is sent after the lock is
// released so a slow consumer stalls only this timer goroutine, never the
// manager.
func (m *RequestManager) expire(r *request) {
	m.mu.Lock()

	current, ok := m.archive.lookup(r.from)
	if !ok || current != r {
		m.mu.Unlock()
		return
	}

	m.archive.remove(r.from, r.to)
	m.logger.Debugf("challenge request %s -> %s expired", r.from, r.to)
	m.mu.Unlock()

	m.events <- RequestExpired{From: r.from, To: r.to}
}
