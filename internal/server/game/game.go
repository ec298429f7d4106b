// Package game implements the wordclash game server: the Backend that owns
// login sessions, friendships, and challenges for clients speaking the
// framed protocol.
package game

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"wordclash/internal/challenge"
	"wordclash/internal/core/auth"
	"wordclash/internal/core/data"
	"wordclash/internal/friends"
	"wordclash/internal/protocol"
	"wordclash/internal/server"
	"wordclash/internal/session"
)

// Backend processes requests from game clients. One instance serves every
// connection; per-user state lives in the registry and the managers, which
// do their own locking.
type Backend struct {
	db       *gorm.DB
	registry *session.Registry
	friends  *friends.Manager
	requests *challenge.RequestManager
	engine   *challenge.Engine
	logger   *logrus.Logger
}

func NewBackend(
	db *gorm.DB,
	registry *session.Registry,
	friendManager *friends.Manager,
	requests *challenge.RequestManager,
	engine *challenge.Engine,
	logger *logrus.Logger,
) *Backend {
	return &Backend{
		db:       db,
		registry: registry,
		friends:  friendManager,
		requests: requests,
		engine:   engine,
		logger:   logger,
	}
}

func (b *Backend) Identifier() string { return "GAME" }

func (b *Backend) Init(ctx context.Context) error { return nil }

// Handle dispatches one request to its handler and returns the response to
// write back. Business rejections are response codes, not errors; an error
// return means something actually broke.
func (b *Backend) Handle(ctx context.Context, c *server.Client, msg *protocol.Message) (*protocol.Message, error) {
	if !msg.Type.IsRequest() {
		return protocol.New(protocol.InvalidMessageFormat), nil
	}

	if msg.Type == protocol.LogIn {
		return b.handleLogIn(c, msg)
	}

	// Everything else requires an authenticated session.
	if c.Username == "" {
		return protocol.New(protocol.UnexpectedMessage), nil
	}

	switch msg.Type {
	case protocol.LogOut:
		return b.handleLogOut(c)
	case protocol.FriendRequest:
		return b.handleFriendRequest(c, msg)
	case protocol.FriendAccept:
		return b.handleFriendAccept(c, msg)
	case protocol.FriendDecline:
		return b.handleFriendDecline(c, msg)
	case protocol.FriendList:
		return b.handleFriendList(c)
	case protocol.Score:
		return b.handleScore(c)
	case protocol.Ranking:
		return b.handleRanking(c)
	case protocol.ChallengeRequest:
		return b.handleChallengeRequest(c, msg)
	case protocol.ChallengeAccept:
		return b.handleChallengeAccept(c)
	case protocol.ChallengeDecline:
		return b.handleChallengeDecline(c)
	case protocol.NextWord:
		return b.handleNextWord(ctx, c)
	case protocol.SubmitTranslation:
		return b.handleSubmitTranslation(ctx, c, msg)
	case protocol.PollNotice:
		return b.handlePollNotice(c)
	}

	return protocol.New(protocol.UnexpectedMessage), nil
}

// handleLogIn verifies the credentials and opens the session. The optional
// third field is the UDP port on which the client listens for pushed
// notifications; paired with the connection's source IP it becomes the
// session's notification address.
func (b *Backend) handleLogIn(c *server.Client, msg *protocol.Message) (*protocol.Message, error) {
	if c.Username != "" {
		return protocol.New(protocol.UnexpectedMessage), nil
	}
	if len(msg.Fields) < 2 {
		return protocol.New(protocol.InvalidMessageFormat), nil
	}
	username, secret := msg.Field(0), msg.Field(1)

	if _, err := auth.VerifyAccount(b.db, username, secret); err != nil {
		switch {
		case errors.Is(err, auth.ErrUnknownUser):
			return protocol.New(protocol.UsernameUnknown), nil
		case errors.Is(err, auth.ErrInvalidCredentials):
			return protocol.New(protocol.PasswordWrong), nil
		}
		return nil, fmt.Errorf("error verifying account %s: %w", username, err)
	}

	var notifyAddr *net.UDPAddr
	if port, err := strconv.Atoi(msg.Field(2)); err == nil && port > 0 {
		notifyAddr = &net.UDPAddr{IP: net.ParseIP(c.RemoteIP()), Port: port}
	}

	if _, err := b.registry.Open(username, c, notifyAddr); err != nil {
		if errors.Is(err, session.ErrAlreadyLoggedIn) {
			return protocol.New(protocol.UserAlreadyLogged), nil
		}
		return nil, fmt.Errorf("error opening session for %s: %w", username, err)
	}

	c.Username = username
	b.logger.Infof("%s logged in from %s", username, c.IPAddr())
	return protocol.New(protocol.Ok), nil
}

func (b *Backend) handleLogOut(c *server.Client) (*protocol.Message, error) {
	b.withdraw(c.Username)
	b.logger.Infof("%s logged out", c.Username)
	c.Username = ""
	return protocol.New(protocol.Ok), nil
}

func (b *Backend) handleFriendRequest(c *server.Client, msg *protocol.Message) (*protocol.Message, error) {
	target := msg.Field(0)
	if target == "" || target == c.Username {
		return protocol.New(protocol.InvalidMessageFormat), nil
	}

	account, err := data.FindAccountByUsername(b.db, target)
	if err != nil {
		return nil, fmt.Errorf("error finding account %s: %w", target, err)
	}
	if account == nil {
		return protocol.New(protocol.UsernameUnknown), nil
	}

	alreadyFriends, err := data.AreFriends(b.db, c.Username, target)
	if err != nil {
		return nil, fmt.Errorf("error checking friendship: %w", err)
	}
	if alreadyFriends {
		return protocol.New(protocol.AlreadyFriends), nil
	}

	if err := b.friends.Record(c.Username, target); err != nil {
		switch {
		case errors.Is(err, friends.ErrAlreadySent):
			return protocol.New(protocol.FriendshipAlreadySent), nil
		case errors.Is(err, friends.ErrAlreadyReceived):
			return protocol.New(protocol.FriendshipAlreadyReceived), nil
		}
		return nil, err
	}

	b.registry.EnqueueDurable(target, protocol.New(protocol.FriendshipRequested, c.Username))
	return protocol.New(protocol.Ok), nil
}

func (b *Backend) handleFriendAccept(c *server.Client, msg *protocol.Message) (*protocol.Message, error) {
	sender := msg.Field(0)
	if !b.friends.Discard(sender, c.Username) {
		return protocol.New(protocol.NoPendingFriendship), nil
	}

	if err := data.CreateFriendship(b.db, sender, c.Username); err != nil {
		return nil, fmt.Errorf("error recording friendship: %w", err)
	}

	b.registry.EnqueueDurable(sender, protocol.New(protocol.FriendshipConfirmed, c.Username))
	return protocol.New(protocol.Ok), nil
}

func (b *Backend) handleFriendDecline(c *server.Client, msg *protocol.Message) (*protocol.Message, error) {
	sender := msg.Field(0)
	if !b.friends.Discard(sender, c.Username) {
		return protocol.New(protocol.NoPendingFriendship), nil
	}

	b.registry.EnqueueDurable(sender, protocol.New(protocol.FriendshipDeclined, c.Username))
	return protocol.New(protocol.Ok), nil
}

// handleFriendList responds with name/presence pairs for every confirmed
// friend.
func (b *Backend) handleFriendList(c *server.Client) (*protocol.Message, error) {
	names, err := data.FriendsOf(b.db, c.Username)
	if err != nil {
		return nil, fmt.Errorf("error listing friends: %w", err)
	}
	sort.Strings(names)

	fields := make([]string, 0, len(names)*2)
	for _, name := range names {
		presence := "offline"
		if b.registry.IsOnline(name) {
			presence = "online"
		}
		fields = append(fields, name, presence)
	}
	return protocol.New(protocol.Ok, fields...), nil
}

func (b *Backend) handleScore(c *server.Client) (*protocol.Message, error) {
	scores, err := data.ScoresFor(b.db, []string{c.Username})
	if err != nil {
		return nil, fmt.Errorf("error fetching score: %w", err)
	}
	return protocol.New(protocol.Ok, strconv.Itoa(scores[c.Username])), nil
}

// handleRanking responds with the user and their friends ordered by score,
// highest first, as name/score pairs.
func (b *Backend) handleRanking(c *server.Client) (*protocol.Message, error) {
	names, err := data.FriendsOf(b.db, c.Username)
	if err != nil {
		return nil, fmt.Errorf("error listing friends: %w", err)
	}
	names = append(names, c.Username)

	scores, err := data.ScoresFor(b.db, names)
	if err != nil {
		return nil, fmt.Errorf("error fetching scores: %w", err)
	}
	sort.Slice(names, func(i, j int) bool {
		if scores[names[i]] != scores[names[j]] {
			return scores[names[i]] > scores[names[j]]
		}
		return names[i] < names[j]
	})

	fields := make([]string, 0, len(names)*2)
	for _, name := range names {
		fields = append(fields, name, strconv.Itoa(scores[name]))
	}
	return protocol.New(protocol.Ok, fields...), nil
}

func (b *Backend) handleChallengeRequest(c *server.Client, msg *protocol.Message) (*protocol.Message, error) {
	target := msg.Field(0)
	if target == "" || target == c.Username {
		return protocol.New(protocol.InvalidMessageFormat), nil
	}

	areFriends, err := data.AreFriends(b.db, c.Username, target)
	if err != nil {
		return nil, fmt.Errorf("error checking friendship: %w", err)
	}
	if !areFriends {
		return protocol.New(protocol.UnexpectedMessage), nil
	}

	// Challenges are negotiated live; an offline friend cannot answer.
	if !b.registry.IsOnline(target) {
		return protocol.New(protocol.ReceiverOffline), nil
	}
	if b.engine.IsEngaged(c.Username) {
		return protocol.New(protocol.PreviousChallengeSent), nil
	}
	if b.engine.IsEngaged(target) {
		return protocol.New(protocol.ReceiverEngaged), nil
	}

	if err := b.requests.Record(c.Username, target); err != nil {
		switch {
		case errors.Is(err, challenge.ErrPreviousSent):
			return protocol.New(protocol.PreviousChallengeSent), nil
		case errors.Is(err, challenge.ErrPreviousReceived):
			return protocol.New(protocol.PreviousChallengeReceived), nil
		case errors.Is(err, challenge.ErrReceiverBusy):
			return protocol.New(protocol.ReceiverEngaged), nil
		}
		return nil, err
	}

	b.registry.Enqueue(target, protocol.New(protocol.ChallengeArrived, c.Username))
	return protocol.New(protocol.Ok), nil
}

func (b *Backend) handleChallengeAccept(c *server.Client) (*protocol.Message, error) {
	sender, ok := b.requests.PendingFor(c.Username)
	if !ok {
		return protocol.New(protocol.UnexpectedMessage), nil
	}
	// The request can expire between the lookup and here; the timer won
	// and the expiry notices are already on their way.
	if !b.requests.Discard(sender, c.Username) {
		return protocol.New(protocol.UnexpectedMessage), nil
	}

	if _, err := b.engine.Start(sender, c.Username); err != nil {
		if errors.Is(err, challenge.ErrPlayerEngaged) {
			return protocol.New(protocol.ReceiverEngaged), nil
		}
		return nil, fmt.Errorf("error starting challenge: %w", err)
	}

	b.registry.Enqueue(sender, protocol.New(protocol.ChallengeAccepted, c.Username))
	return protocol.New(protocol.Ok), nil
}

func (b *Backend) handleChallengeDecline(c *server.Client) (*protocol.Message, error) {
	sender, ok := b.requests.PendingFor(c.Username)
	if !ok {
		return protocol.New(protocol.UnexpectedMessage), nil
	}
	if !b.requests.Discard(sender, c.Username) {
		return protocol.New(protocol.UnexpectedMessage), nil
	}

	b.registry.Enqueue(sender, protocol.New(protocol.ChallengeDeclined, c.Username))
	return protocol.New(protocol.Ok), nil
}

func (b *Backend) handleNextWord(ctx context.Context, c *server.Client) (*protocol.Message, error) {
	word, err := b.engine.NextWord(c.Username)
	switch {
	case errors.Is(err, challenge.ErrNoMoreWords):
		return protocol.New(protocol.NoMoreWords), nil
	case errors.Is(err, challenge.ErrNoActiveChallenge), errors.Is(err, challenge.ErrOutOfSequence):
		return protocol.New(protocol.UnexpectedMessage), nil
	case err != nil:
		return nil, err
	}
	return protocol.New(protocol.Ok, word), nil
}

func (b *Backend) handleSubmitTranslation(ctx context.Context, c *server.Client, msg *protocol.Message) (*protocol.Message, error) {
	result, err := b.engine.SubmitTranslation(ctx, c.Username, msg.Field(0))
	switch {
	case errors.Is(err, challenge.ErrNoActiveChallenge), errors.Is(err, challenge.ErrOutOfSequence):
		return protocol.New(protocol.UnexpectedMessage), nil
	case err != nil:
		// A failed lookup already tore the match down; the failure event
		// notifies both parties. This request still needs an answer.
		return protocol.New(protocol.InternalError), err
	}

	if result.Resolution != nil {
		b.settleMatch(result.Resolution.Reports, protocol.MatchResult)
	}

	if result.Correct {
		return protocol.New(protocol.TranslationCorrect), nil
	}
	return protocol.New(protocol.TranslationWrong), nil
}

// handlePollNotice pops the oldest queued notification. The response embeds
// the notification type code as the first field with its own fields behind
// it, so clients that never bind the UDP channel can consume everything by
// polling.
func (b *Backend) handlePollNotice(c *server.Client) (*protocol.Message, error) {
	notice := b.registry.DrainNext(c.Username)
	if notice == nil {
		return protocol.New(protocol.NoNotice), nil
	}

	fields := append([]string{strconv.Itoa(int(notice.Type))}, notice.Fields...)
	return protocol.New(protocol.Ok, fields...), nil
}

// Disconnected cleans up whatever the client abandoned: a pending challenge
// negotiation, a live match, and finally the session itself.
func (b *Backend) Disconnected(c *server.Client) {
	if c.Username == "" {
		return
	}
	b.withdraw(c.Username)
	c.Username = ""
}

// withdraw removes username from every live structure, notifying the
// counterparts left behind.
func (b *Backend) withdraw(username string) {
	if other, ok := b.requests.CancelFor(username); ok {
		b.registry.Enqueue(other, protocol.New(protocol.ChallengeRequestExpired, username))
	}
	if other, ok := b.engine.CancelFor(username); ok {
		b.registry.Enqueue(other, protocol.New(protocol.OpponentDisconnected, username))
	}
	b.registry.Close(username)
}

// ConsumeEvents drains the timer-driven events from the request manager and
// the engine, translating each into notifications. Runs until ctx is
// canceled; the controller starts it alongside the frontend.
func (b *Backend) ConsumeEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-b.requests.Events():
			b.handleEvent(event)
		case event := <-b.engine.Events():
			b.handleEvent(event)
		}
	}
}

func (b *Backend) handleEvent(event challenge.Event) {
	switch e := event.(type) {
	case challenge.RequestExpired:
		b.registry.Enqueue(e.From, protocol.New(protocol.ChallengeRequestExpired, e.To))
		b.registry.Enqueue(e.To, protocol.New(protocol.ChallengeRequestExpired, e.From))
	case challenge.MatchExpired:
		b.settleMatch(e.Reports, protocol.ChallengeExpired)
	case challenge.MatchFailed:
		b.logger.Errorf("challenge between %s and %s aborted: %s", e.From, e.To, e.Err)
		b.registry.Enqueue(e.From, protocol.New(protocol.MatchAborted))
		b.registry.Enqueue(e.To, protocol.New(protocol.MatchAborted))
	default:
		b.logger.Warnf("unhandled challenge event %T", event)
	}
}

// settleMatch persists each player's score delta and notifies them with the
// outcome and their new total. resultType distinguishes a played-out match
// from one stopped by the clock.
func (b *Backend) settleMatch(reports map[string]challenge.Report, resultType protocol.MessageType) {
	for player, report := range reports {
		if err := data.AddScore(b.db, player, report.ScoreDelta); err != nil {
			b.logger.Errorf("error applying score delta for %s: %s", player, err)
			continue
		}

		b.registry.Enqueue(player, protocol.New(resultType,
			outcomeName(report.Outcome),
			strconv.Itoa(report.WordsTranslated),
			strconv.Itoa(report.ScoreDelta),
		))

		scores, err := data.ScoresFor(b.db, []string{player})
		if err != nil {
			b.logger.Errorf("error fetching score for %s: %s", player, err)
			continue
		}
		b.registry.Enqueue(player, protocol.New(protocol.ScoreUpdate, strconv.Itoa(scores[player])))
	}
}

func outcomeName(outcome int) string {
	switch {
	case outcome > 0:
		return "won"
	case outcome < 0:
		return "lost"
	}
	return "tied"
}
