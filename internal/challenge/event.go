package challenge

// Event is a state transition driven by a timer or an internal failure
// rather than by a client request. Managers publish events on a channel
// and the caller decides what side effects (notifications, score updates)
// to trigger.
type Event interface {
	Parties() (from, to string)
}

// RequestExpired reports a challenge request that timed out unanswered.
type RequestExpired struct {
	From, To string
}

func (e RequestExpired) Parties() (string, string) { return e.From, e.To }

// MatchExpired reports a match that hit its time limit before both players
// finished, with a report per player reflecting progress at that instant.
type MatchExpired struct {
	From, To string
	Reports  map[string]Report
}

func (e MatchExpired) Parties() (string, string) { return e.From, e.To }

// MatchFailed reports a match torn down because a translation lookup
// failed. The failure is fatal to the match only, not the server.
type MatchFailed struct {
	From, To string
	Err      error
}

func (e MatchFailed) Parties() (string, string) { return e.From, e.To }
