package challenge

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"wordclash/internal/translate"
)

var (
	// ErrPlayerEngaged means one of the participants is already party to
	// a live match.
	ErrPlayerEngaged = errors.New("participant already engaged in another challenge")
	// ErrNoActiveChallenge means the user has no live match.
	ErrNoActiveChallenge = errors.New("no active challenge for this user")
	// ErrOutOfSequence means the request was valid but arrived out of the
	// fetch-then-submit order.
	ErrOutOfSequence = errors.New("challenge operation out of sequence")
	// ErrNoMoreWords means the player has already fetched every word.
	ErrNoMoreWords = errors.New("no more words in this challenge")
)

// WordSource provides the quiz words for new matches.
type WordSource interface {
	Sample(n int) []string
}

// Config carries the tunable match parameters.
type Config struct {
	WordCount   int
	Duration    time.Duration
	Reward      int
	Penalty     int
	WinnerBonus int
}

type matchState int

const (
	stateActive matchState = iota
	stateCompleted
	stateExpired
	stateCanceled
)

// playerState tracks one participant's progress through the word list.
// Invariant: translationsProgress is always wordsProgress or
// wordsProgress-1; a player fetches a word, resolves it, then fetches the
// next.
type playerState struct {
	wordsProgress        int
	translationsProgress int
	score                int
	// awaiting guards the window where SubmitTranslation released the
	// engine lock to wait on a lookup.
	awaiting bool
}

// Match is one live challenge between two players.
type Match struct {
	ID       uuid.UUID
	From, To string

	words   []string
	lookups []*translate.Future
	players map[string]*playerState
	state   matchState
	timer   *time.Timer
}

func (m *Match) counterpart(player string) string {
	if player == m.From {
		return m.To
	}
	return m.From
}

func (m *Match) cancelLookups() {
	for _, lookup := range m.lookups {
		lookup.Cancel()
	}
}

// Report is the per-player summary computed when a match resolves.
type Report struct {
	// Outcome is +1 for a win, 0 for a tie, -1 for a loss.
	Outcome         int
	WordsTranslated int
	ScoreDelta      int
}

// Resolution describes a naturally completed match.
type Resolution struct {
	From, To string
	Reports  map[string]Report
}

// SubmitResult is the outcome of one translation submission.
type SubmitResult struct {
	Correct bool
	// Resolution is non-nil when this submission completed the match.
	Resolution *Resolution
}

// Engine owns every live match. Matches are archived under both player
// usernames; registration is all-or-nothing across the two keys.
type Engine struct {
	mu      sync.Mutex
	archive pairArchive[Match]
	words   WordSource
	pool    *translate.Pool
	cfg     Config
	events  chan Event
	logger  *logrus.Logger
}

func NewEngine(words WordSource, pool *translate.Pool, cfg Config, logger *logrus.Logger) *Engine {
	return &Engine{
		archive: newPairArchive[Match](),
		words:   words,
		pool:    pool,
		cfg:     cfg,
		events:  make(chan Event, 64),
		logger:  logger,
	}
}

// Events delivers expirations and lookup failures detected off the
// request path.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Start activates a match between from and to: draws the words, kicks off
// one asynchronous translation lookup per word, and schedules the match
// timeout.
func (e *Engine) Start(from, to string) (*Match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := &Match{
		ID:    uuid.New(),
		From:  from,
		To:    to,
		words: e.words.Sample(e.cfg.WordCount),
		players: map[string]*playerState{
			from: {},
			to:   {},
		},
		state: stateActive,
	}
	if !e.archive.register(from, to, m) {
		return nil, ErrPlayerEngaged
	}

	for _, word := range m.words {
		m.lookups = append(m.lookups, e.pool.Submit(word))
	}
	m.timer = time.AfterFunc(e.cfg.Duration, func() { e.expire(m) })

	e.logger.Infof("challenge %s started: %s vs %s", m.ID, from, to)
	return m, nil
}

// IsEngaged reports whether user is party to a live match.
func (e *Engine) IsEngaged(user string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.archive.lookup(user)
	return ok
}

// NextWord hands the player their next word. The previous word must have
// been resolved first.
func (e *Engine) NextWord(player string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.archive.lookup(player)
	if !ok {
		return "", ErrNoActiveChallenge
	}
	ps := m.players[player]

	if ps.awaiting || ps.translationsProgress != ps.wordsProgress {
		return "", ErrOutOfSequence
	}
	if ps.wordsProgress == len(m.words) {
		return "", ErrNoMoreWords
	}

	word := m.words[ps.wordsProgress]
	ps.wordsProgress++
	return word, nil
}

// SubmitTranslation validates the player's answer for the word they last
// fetched. It waits for the corresponding lookup if it has not resolved
// yet; the engine lock is released for the wait so timers and the other
// player make progress.
//
// An empty answer is an explicit pass: never correct, no score change.
func (e *Engine) SubmitTranslation(ctx context.Context, player, answer string) (*SubmitResult, error) {
	e.mu.Lock()

	m, ok := e.archive.lookup(player)
	if !ok {
		e.mu.Unlock()
		return nil, ErrNoActiveChallenge
	}
	ps := m.players[player]

	if ps.awaiting || ps.translationsProgress != ps.wordsProgress-1 {
		e.mu.Unlock()
		return nil, ErrOutOfSequence
	}

	lookup := m.lookups[ps.translationsProgress]
	ps.awaiting = true
	e.mu.Unlock()

	translations, lookupErr := lookup.Wait(ctx)

	e.mu.Lock()

	// The match may have expired or been canceled during the wait;
	// whoever got the critical section first won, and this submission
	// no longer belongs to a live match.
	if current, ok := e.archive.lookup(player); !ok || current != m {
		e.mu.Unlock()
		return nil, ErrNoActiveChallenge
	}
	ps.awaiting = false

	if lookupErr != nil {
		if errors.Is(lookupErr, context.Canceled) {
			// The caller abandoned the wait; the match itself is intact.
			e.mu.Unlock()
			return nil, lookupErr
		}
		// A failed lookup makes the match unplayable. Tear it down and
		// let the controller notify both parties. The event is sent
		// outside the lock so a slow consumer cannot wedge the engine.
		e.teardown(m, stateCanceled)
		e.mu.Unlock()
		e.events <- MatchFailed{From: m.From, To: m.To, Err: lookupErr}
		return nil, fmt.Errorf("translation lookup for %q failed: %w", lookup.Word(), lookupErr)
	}

	correct := answer != "" && slices.Contains(translations, answer)
	switch {
	case correct:
		ps.score += e.cfg.Reward
	case answer != "":
		ps.score += e.cfg.Penalty
	}
	ps.translationsProgress++

	result := &SubmitResult{Correct: correct}
	if e.finished(m) {
		e.teardown(m, stateCompleted)
		result.Resolution = &Resolution{From: m.From, To: m.To, Reports: e.reports(m)}
		e.logger.Infof("challenge %s completed", m.ID)
	}
	e.mu.Unlock()
	return result, nil
}

// CancelFor tears down the match user is party to, returning the
// counterpart for notification. No reports are computed.
func (e *Engine) CancelFor(user string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.archive.lookup(user)
	if !ok {
		return "", false
	}

	e.teardown(m, stateCanceled)
	e.logger.Infof("challenge %s canceled by %s", m.ID, user)
	return m.counterpart(user), true
}

// expire fires on the timer goroutine when the match hits its time limit.
// Losing the race to a natural completion or a cancel leaves nothing to do.
// The event is sent after the lock is released so a slow consumer stalls
// only this timer goroutine, never the engine.
func (e *Engine) expire(m *Match) {
	e.mu.Lock()

	current, ok := e.archive.lookup(m.From)
	if !ok || current != m {
		e.mu.Unlock()
		return
	}

	e.teardown(m, stateExpired)
	e.logger.Infof("challenge %s expired", m.ID)
	reports := e.reports(m)
	e.mu.Unlock()

	e.events <- MatchExpired{From: m.From, To: m.To, Reports: reports}
}

// teardown moves m to a terminal state: both archive keys released, the
// timeout canceled, and any still-pending lookups aborted. Safe to reach
// from any path exactly once; the archive check in every caller ensures
// that.
func (e *Engine) teardown(m *Match, terminal matchState) {
	m.state = terminal
	m.timer.Stop()
	m.cancelLookups()
	e.archive.remove(m.From, m.To)
}

func (e *Engine) finished(m *Match) bool {
	for _, ps := range m.players {
		if ps.translationsProgress != len(m.words) {
			return false
		}
	}
	return true
}

// reports computes each player's outcome relative to the other. The
// winner's delta includes the bonus.
func (e *Engine) reports(m *Match) map[string]Report {
	reports := make(map[string]Report, 2)
	for _, player := range []string{m.From, m.To} {
		ps := m.players[player]
		other := m.players[m.counterpart(player)]

		outcome := 0
		delta := ps.score
		switch {
		case ps.score > other.score:
			outcome = 1
			delta += e.cfg.WinnerBonus
		case ps.score < other.score:
			outcome = -1
		}

		reports[player] = Report{
			Outcome:         outcome,
			WordsTranslated: ps.translationsProgress,
			ScoreDelta:      delta,
		}
	}
	return reports
}
