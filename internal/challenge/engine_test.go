package challenge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"wordclash/internal/translate"
)

// fixedWords deals words in a repeating, predictable order.
type fixedWords []string

func (w fixedWords) Sample(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = w[i%len(w)]
	}
	return words
}

var testTranslations = map[string][]string{
	"cane":  {"dog", "hound"},
	"gatto": {"cat"},
	"topo":  {"mouse", "rat"},
}

func testLookup(ctx context.Context, word string) ([]string, error) {
	translations, ok := testTranslations[word]
	if !ok {
		return nil, fmt.Errorf("no translations for %q", word)
	}
	return translations, nil
}

func testConfig() Config {
	return Config{
		WordCount:   3,
		Duration:    time.Hour,
		Reward:      2,
		Penalty:     -1,
		WinnerBonus: 3,
	}
}

func setUpEngine(t *testing.T, cfg Config, lookup translate.LookupFunc) *Engine {
	t.Helper()
	pool := translate.NewPool(2, lookup)
	t.Cleanup(pool.Shutdown)
	return NewEngine(fixedWords{"cane", "gatto", "topo"}, pool, cfg, quietLogger())
}

// submit fetches the player's next word and answers it through fn, which
// maps the word to the answer to give.
func submit(t *testing.T, e *Engine, player string, fn func(word string) string) *SubmitResult {
	t.Helper()
	word, err := e.NextWord(player)
	if err != nil {
		t.Fatalf("NextWord(%s) returned error: %v", player, err)
	}
	result, err := e.SubmitTranslation(context.Background(), player, fn(word))
	if err != nil {
		t.Fatalf("SubmitTranslation(%s) returned error: %v", player, err)
	}
	return result
}

func firstTranslation(word string) string { return testTranslations[word][0] }

func pass(string) string { return "" }

func TestSequencingInvariant(t *testing.T) {
	e := setUpEngine(t, testConfig(), testLookup)
	if _, err := e.Start("alice", "bob"); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}

	// Submitting before fetching a word is out of sequence.
	if _, err := e.SubmitTranslation(context.Background(), "alice", "dog"); !errors.Is(err, ErrOutOfSequence) {
		t.Errorf("SubmitTranslation() before NextWord() error = %v, want ErrOutOfSequence", err)
	}

	if _, err := e.NextWord("alice"); err != nil {
		t.Fatalf("NextWord() returned error: %v", err)
	}

	// Fetching twice without an intervening submission is out of sequence.
	if _, err := e.NextWord("alice"); !errors.Is(err, ErrOutOfSequence) {
		t.Errorf("second NextWord() error = %v, want ErrOutOfSequence", err)
	}

	if _, err := e.SubmitTranslation(context.Background(), "alice", "dog"); err != nil {
		t.Fatalf("SubmitTranslation() returned error: %v", err)
	}

	// Progress is per player; bob starts from the beginning.
	if _, err := e.NextWord("bob"); err != nil {
		t.Errorf("NextWord(bob) returned error: %v", err)
	}
}

func TestNoMoreWords(t *testing.T) {
	e := setUpEngine(t, testConfig(), testLookup)
	if _, err := e.Start("alice", "bob"); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}

	for i := 0; i < 3; i++ {
		submit(t, e, "alice", pass)
	}
	if _, err := e.NextWord("alice"); !errors.Is(err, ErrNoMoreWords) {
		t.Errorf("NextWord() past the end error = %v, want ErrNoMoreWords", err)
	}
}

func TestScoringAndCompletion(t *testing.T) {
	e := setUpEngine(t, testConfig(), testLookup)
	if _, err := e.Start("alice", "bob"); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}

	// Alice: correct, wrong, pass -> 2 - 1 + 0 = 1.
	if got := submit(t, e, "alice", firstTranslation); !got.Correct {
		t.Error("correct answer reported as wrong")
	}
	if got := submit(t, e, "alice", func(string) string { return "definitely wrong" }); got.Correct {
		t.Error("wrong answer reported as correct")
	}
	if got := submit(t, e, "alice", pass); got.Correct {
		t.Error("empty answer reported as correct")
	}

	// Bob: three correct -> 6, wins and takes the bonus.
	var last *SubmitResult
	for i := 0; i < 3; i++ {
		last = submit(t, e, "bob", firstTranslation)
	}

	if last.Resolution == nil {
		t.Fatal("final submission did not resolve the match")
	}
	want := map[string]Report{
		"alice": {Outcome: -1, WordsTranslated: 3, ScoreDelta: 1},
		"bob":   {Outcome: 1, WordsTranslated: 3, ScoreDelta: 9},
	}
	if diff := cmp.Diff(want, last.Resolution.Reports); diff != "" {
		t.Errorf("reports did not match expected; diff:\n%s", diff)
	}

	// The archive slots are released.
	if e.IsEngaged("alice") || e.IsEngaged("bob") {
		t.Error("players still engaged after completion")
	}
}

func TestTieHasNoBonus(t *testing.T) {
	e := setUpEngine(t, testConfig(), testLookup)
	if _, err := e.Start("alice", "bob"); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}

	var last *SubmitResult
	for _, player := range []string{"alice", "bob"} {
		for i := 0; i < 3; i++ {
			last = submit(t, e, player, firstTranslation)
		}
	}

	want := Report{Outcome: 0, WordsTranslated: 3, ScoreDelta: 6}
	for player, report := range last.Resolution.Reports {
		if diff := cmp.Diff(want, report); diff != "" {
			t.Errorf("report for %s did not match; diff:\n%s", player, diff)
		}
	}
}

func TestChallengeExclusivity(t *testing.T) {
	e := setUpEngine(t, testConfig(), testLookup)
	if _, err := e.Start("alice", "bob"); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}

	if _, err := e.Start("carol", "alice"); !errors.Is(err, ErrPlayerEngaged) {
		t.Errorf("Start(carol, alice) error = %v, want ErrPlayerEngaged", err)
	}
	if _, err := e.Start("bob", "carol"); !errors.Is(err, ErrPlayerEngaged) {
		t.Errorf("Start(bob, carol) error = %v, want ErrPlayerEngaged", err)
	}

	if _, ok := e.CancelFor("alice"); !ok {
		t.Fatal("CancelFor(alice) = false, want true")
	}
	if _, err := e.Start("carol", "alice"); err != nil {
		t.Errorf("Start() after cancel returned error: %v", err)
	}
}

func TestCancelForReturnsCounterpart(t *testing.T) {
	e := setUpEngine(t, testConfig(), testLookup)
	if _, err := e.Start("alice", "bob"); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}

	other, ok := e.CancelFor("bob")
	if !ok || other != "alice" {
		t.Errorf("CancelFor(bob) = %q, %v; want alice, true", other, ok)
	}

	if _, err := e.NextWord("alice"); !errors.Is(err, ErrNoActiveChallenge) {
		t.Errorf("NextWord() after cancel error = %v, want ErrNoActiveChallenge", err)
	}
}

func TestMatchExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.Duration = 20 * time.Millisecond
	e := setUpEngine(t, cfg, testLookup)
	if _, err := e.Start("alice", "bob"); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}

	// Partial progress before the timeout.
	submit(t, e, "alice", firstTranslation)

	select {
	case event := <-e.Events():
		expired, ok := event.(MatchExpired)
		if !ok {
			t.Fatalf("event = %T, want MatchExpired", event)
		}
		if got := expired.Reports["alice"]; got.WordsTranslated != 1 || got.Outcome != 1 {
			t.Errorf("alice's report = %+v, want 1 word translated and a win", got)
		}
		if got := expired.Reports["bob"]; got.WordsTranslated != 0 || got.Outcome != -1 {
			t.Errorf("bob's report = %+v, want 0 words translated and a loss", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for expiry event")
	}

	if _, err := e.NextWord("alice"); !errors.Is(err, ErrNoActiveChallenge) {
		t.Errorf("NextWord() after expiry error = %v, want ErrNoActiveChallenge", err)
	}
}

// A completed match must never also deliver an expiry report.
func TestCompletionSuppressesExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.Duration = 50 * time.Millisecond
	e := setUpEngine(t, cfg, testLookup)
	if _, err := e.Start("alice", "bob"); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}

	var last *SubmitResult
	for _, player := range []string{"alice", "bob"} {
		for i := 0; i < 3; i++ {
			last = submit(t, e, player, pass)
		}
	}
	if last.Resolution == nil {
		t.Fatal("match did not complete")
	}

	select {
	case event := <-e.Events():
		t.Errorf("unexpected event after completion: %v", event)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestLookupFailureIsFatalToTheMatch(t *testing.T) {
	lookupErr := errors.New("service unreachable")
	e := setUpEngine(t, testConfig(), func(ctx context.Context, word string) ([]string, error) {
		return nil, lookupErr
	})
	if _, err := e.Start("alice", "bob"); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}

	if _, err := e.NextWord("alice"); err != nil {
		t.Fatalf("NextWord() returned error: %v", err)
	}
	if _, err := e.SubmitTranslation(context.Background(), "alice", "dog"); !errors.Is(err, lookupErr) {
		t.Errorf("SubmitTranslation() error = %v, want %v", err, lookupErr)
	}

	select {
	case event := <-e.Events():
		failed, ok := event.(MatchFailed)
		if !ok {
			t.Fatalf("event = %T, want MatchFailed", event)
		}
		if !errors.Is(failed.Err, lookupErr) {
			t.Errorf("MatchFailed.Err = %v, want %v", failed.Err, lookupErr)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for failure event")
	}

	if e.IsEngaged("alice") || e.IsEngaged("bob") {
		t.Error("players still engaged after lookup failure")
	}
}
