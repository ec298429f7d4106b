package session

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"wordclash/internal/core/data"
	"wordclash/internal/protocol"
)

type fakeConn struct{ ip string }

func (c *fakeConn) RemoteIP() string { return c.ip }

func setUpRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("error initializing test database: %s", err)
	}
	if err := db.AutoMigrate(&data.StoredNotice{}); err != nil {
		t.Fatalf("error auto migrating db: %s", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewRegistry(db, nil, logger)
}

func TestOpenRejectsSecondLogin(t *testing.T) {
	registry := setUpRegistry(t)

	if _, err := registry.Open("alice", &fakeConn{ip: "10.0.0.1"}, nil); err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	if _, err := registry.Open("alice", &fakeConn{ip: "10.0.0.2"}, nil); !errors.Is(err, ErrAlreadyLoggedIn) {
		t.Errorf("second Open() error = %v, want ErrAlreadyLoggedIn", err)
	}

	registry.Close("alice")
	if _, err := registry.Open("alice", &fakeConn{ip: "10.0.0.2"}, nil); err != nil {
		t.Errorf("Open() after Close() returned error: %v", err)
	}
}

func TestEnqueueAndDrainOrder(t *testing.T) {
	registry := setUpRegistry(t)
	if _, err := registry.Open("alice", &fakeConn{}, nil); err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}

	first := protocol.New(protocol.ChallengeArrived, "bob")
	second := protocol.New(protocol.ScoreUpdate, "5")
	registry.Enqueue("alice", first)
	registry.Enqueue("alice", second)

	if got := registry.DrainNext("alice"); got != first {
		t.Errorf("first DrainNext() = %v, want %v", got, first)
	}
	if got := registry.DrainNext("alice"); got != second {
		t.Errorf("second DrainNext() = %v, want %v", got, second)
	}
	if got := registry.DrainNext("alice"); got != nil {
		t.Errorf("DrainNext() on empty backlog = %v, want nil", got)
	}
}

func TestEnqueueToOfflineUserIsDropped(t *testing.T) {
	registry := setUpRegistry(t)

	if registry.Enqueue("ghost", protocol.New(protocol.ScoreUpdate, "1")) {
		t.Error("Enqueue() to offline user = true, want false")
	}
}

func TestDurableNoticesSurviveLogout(t *testing.T) {
	registry := setUpRegistry(t)
	if _, err := registry.Open("alice", &fakeConn{}, nil); err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}

	confirmed := protocol.New(protocol.FriendshipConfirmed, "bob")
	superseded := protocol.New(protocol.ChallengeArrived, "bob")
	registry.Enqueue("alice", confirmed)
	registry.Enqueue("alice", superseded)

	registry.Close("alice")
	if _, err := registry.Open("alice", &fakeConn{}, nil); err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}

	got := registry.DrainNext("alice")
	if got == nil {
		t.Fatal("expected the friendship confirmation to be redelivered")
	}
	if diff := cmp.Diff(confirmed, got); diff != "" {
		t.Errorf("redelivered notice did not match; diff:\n%s", diff)
	}

	if left := registry.DrainNext("alice"); left != nil {
		t.Errorf("challenge notice survived logout: %v", left)
	}
}

func TestEnqueueDurableToOfflineUser(t *testing.T) {
	registry := setUpRegistry(t)

	registry.EnqueueDurable("alice", protocol.New(protocol.FriendshipRequested, "bob"))

	if _, err := registry.Open("alice", &fakeConn{}, nil); err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	got := registry.DrainNext("alice")
	if got == nil || got.Type != protocol.FriendshipRequested {
		t.Errorf("DrainNext() = %v, want FRIENDSHIP_REQUESTED notice", got)
	}
}
