// Package challenge implements the pre-match negotiation (challenge
// requests) and the match engine itself.
package challenge

// pairArchive indexes one entry under both participants' usernames, which
// guarantees a user can be party to at most one entry at a time. It is not
// safe for concurrent use on its own; the owning manager wraps every
// compound operation in a single critical section, since per-key locking
// cannot express the cross-key invariant.
type pairArchive[T any] struct {
	entries map[string]*T
}

func newPairArchive[T any]() pairArchive[T] {
	return pairArchive[T]{entries: make(map[string]*T)}
}

// register inserts v under both keys, or under neither if either is taken.
func (a *pairArchive[T]) register(from, to string, v *T) bool {
	if _, ok := a.entries[from]; ok {
		return false
	}
	if _, ok := a.entries[to]; ok {
		return false
	}
	a.entries[from] = v
	a.entries[to] = v
	return true
}

func (a *pairArchive[T]) lookup(user string) (*T, bool) {
	v, ok := a.entries[user]
	return v, ok
}

// remove deletes the entry under both keys. A split entry (one key
// pointing elsewhere than the other) can only be produced by a bug in the
// owning manager, so it panics rather than limping on.
func (a *pairArchive[T]) remove(from, to string) {
	if a.entries[from] != a.entries[to] {
		panic("pair archive out of sync: " + from + " and " + to + " disagree")
	}
	delete(a.entries, from)
	delete(a.entries, to)
}
