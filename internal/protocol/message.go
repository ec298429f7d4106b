// Package protocol implements the framed message format spoken between the
// wordclash server and its clients. Every message is a type code followed by
// a list of UTF-16 string fields; see codec.go for the exact wire layout.
package protocol

import "fmt"

// MessageType identifies one frame on the wire. The numeric space is
// partitioned into three disjoint classes: 0-99 are client requests,
// 100-199 are server notifications, 200-299 are server responses. Every
// request receives exactly one response on the same stream, in request
// order; notifications are fire-and-forget and delivered out of band.
type MessageType int16

// Requests (client -> server).
const (
	LogIn MessageType = iota
	LogOut
	FriendRequest
	FriendAccept
	FriendDecline
	FriendList
	Score
	Ranking
	ChallengeRequest
	ChallengeAccept
	ChallengeDecline
	NextWord
	SubmitTranslation
	PollNotice
)

// Notifications (server -> client, fire-and-forget).
const (
	FriendshipRequested MessageType = iota + 100
	FriendshipConfirmed
	FriendshipDeclined
	ChallengeArrived
	ChallengeAccepted
	ChallengeDeclined
	ChallengeRequestExpired
	ChallengeExpired
	OpponentDisconnected
	ScoreUpdate
	MatchResult
	MatchAborted
)

// Responses (server -> client, exactly one per request).
const (
	Ok MessageType = iota + 200
	UsernameUnknown
	PasswordWrong
	UserAlreadyLogged
	AlreadyFriends
	FriendshipAlreadySent
	FriendshipAlreadyReceived
	NoPendingFriendship
	ReceiverOffline
	ReceiverEngaged
	PreviousChallengeSent
	PreviousChallengeReceived
	NoMoreWords
	TranslationCorrect
	TranslationWrong
	UnexpectedMessage
	InvalidMessageFormat
	InternalError
	NoNotice
)

var typeNames = map[MessageType]string{
	LogIn:             "LOG_IN",
	LogOut:            "LOG_OUT",
	FriendRequest:     "FRIEND_REQUEST",
	FriendAccept:      "FRIEND_ACCEPT",
	FriendDecline:     "FRIEND_DECLINE",
	FriendList:        "FRIEND_LIST",
	Score:             "SCORE",
	Ranking:           "RANKING",
	ChallengeRequest:  "CHALLENGE_REQUEST",
	ChallengeAccept:   "CHALLENGE_ACCEPT",
	ChallengeDecline:  "CHALLENGE_DECLINE",
	NextWord:          "NEXT_WORD",
	SubmitTranslation: "SUBMIT_TRANSLATION",
	PollNotice:        "POLL_NOTICE",

	FriendshipRequested:     "FRIENDSHIP_REQUESTED",
	FriendshipConfirmed:     "FRIENDSHIP_CONFIRMED",
	FriendshipDeclined:      "FRIENDSHIP_DECLINED",
	ChallengeArrived:        "CHALLENGE_ARRIVED",
	ChallengeAccepted:       "CHALLENGE_ACCEPTED",
	ChallengeDeclined:       "CHALLENGE_DECLINED",
	ChallengeRequestExpired: "CHALLENGE_REQUEST_EXPIRED",
	ChallengeExpired:        "CHALLENGE_EXPIRED",
	OpponentDisconnected:    "OPPONENT_DISCONNECTED",
	ScoreUpdate:             "SCORE_UPDATE",
	MatchResult:             "MATCH_RESULT",
	MatchAborted:            "MATCH_ABORTED",

	Ok:                        "OK",
	UsernameUnknown:           "USERNAME_UNKNOWN",
	PasswordWrong:             "PASSWORD_WRONG",
	UserAlreadyLogged:         "USER_ALREADY_LOGGED",
	AlreadyFriends:            "ALREADY_FRIENDS",
	FriendshipAlreadySent:     "FRIENDSHIP_ALREADY_SENT",
	FriendshipAlreadyReceived: "FRIENDSHIP_ALREADY_RECEIVED",
	NoPendingFriendship:       "NO_PENDING_FRIENDSHIP",
	ReceiverOffline:           "RECEIVER_OFFLINE",
	ReceiverEngaged:           "RECEIVER_ENGAGED",
	PreviousChallengeSent:     "PREVIOUS_CHALLENGE_SENT",
	PreviousChallengeReceived: "PREVIOUS_CHALLENGE_RECEIVED",
	NoMoreWords:               "NO_MORE_WORDS",
	TranslationCorrect:        "TRANSLATION_CORRECT",
	TranslationWrong:          "TRANSLATION_WRONG",
	UnexpectedMessage:         "UNEXPECTED_MESSAGE",
	InvalidMessageFormat:      "INVALID_MESSAGE_FORMAT",
	InternalError:             "INTERNAL_ERROR",
	NoNotice:                  "NO_NOTICE",
}

// Known reports whether t is part of the protocol. Decoders reject frames
// whose type code is not known.
func Known(t MessageType) bool {
	_, ok := typeNames[t]
	return ok
}

func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int16(t))
}

// IsRequest reports whether t is in the client request range.
func (t MessageType) IsRequest() bool { return t >= 0 && t < 100 }

// IsNotification reports whether t is in the server notification range.
func (t MessageType) IsNotification() bool { return t >= 100 && t < 200 }

// IsResponse reports whether t is in the server response range.
func (t MessageType) IsResponse() bool { return t >= 200 && t < 300 }

// Message is one decoded frame: a type code plus an ordered list of string
// fields. The meaning of each field position depends on the type.
type Message struct {
	Type   MessageType
	Fields []string
}

// New builds a message from a type and its fields.
func New(t MessageType, fields ...string) *Message {
	return &Message{Type: t, Fields: fields}
}

func (m *Message) String() string {
	return fmt.Sprintf("%s%v", m.Type, m.Fields)
}

// Field returns the i-th field or the empty string if the message has
// fewer fields. Handlers validate field counts up front and use this to
// keep access sites short.
func (m *Message) Field(i int) string {
	if i < 0 || i >= len(m.Fields) {
		return ""
	}
	return m.Fields[i]
}
