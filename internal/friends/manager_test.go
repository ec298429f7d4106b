package friends

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"wordclash/internal/core/data"
)

func setUpManager(t *testing.T) (*Manager, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("error initializing test database: %s", err)
	}
	if err := db.AutoMigrate(&data.FriendInvite{}); err != nil {
		t.Fatalf("error auto migrating db: %s", err)
	}

	manager, err := NewManager(db)
	if err != nil {
		t.Fatalf("NewManager() returned error: %v", err)
	}
	return manager, db
}

func TestRecord(t *testing.T) {
	manager, _ := setUpManager(t)

	if err := manager.Record("alice", "bob"); err != nil {
		t.Fatalf("Record() returned error: %v", err)
	}

	// Repeating the same direction is rejected.
	if err := manager.Record("alice", "bob"); !errors.Is(err, ErrAlreadySent) {
		t.Errorf("duplicate Record() error = %v, want ErrAlreadySent", err)
	}

	// The reverse direction is rejected while the original is pending.
	if err := manager.Record("bob", "alice"); !errors.Is(err, ErrAlreadyReceived) {
		t.Errorf("reverse Record() error = %v, want ErrAlreadyReceived", err)
	}

	pending := manager.PendingFor("bob")
	if len(pending) != 1 || pending[0] != "alice" {
		t.Errorf("PendingFor(bob) = %v, want [alice]", pending)
	}
}

func TestDiscard(t *testing.T) {
	manager, _ := setUpManager(t)

	if err := manager.Record("alice", "bob"); err != nil {
		t.Fatalf("Record() returned error: %v", err)
	}

	if !manager.Discard("alice", "bob") {
		t.Error("Discard() = false, want true")
	}
	if manager.Discard("alice", "bob") {
		t.Error("second Discard() = true, want false")
	}

	// Once discarded, either direction may be recorded again.
	if err := manager.Record("bob", "alice"); err != nil {
		t.Errorf("Record() after Discard() returned error: %v", err)
	}
}

func TestPendingRequestsSurviveRestart(t *testing.T) {
	manager, db := setUpManager(t)

	if err := manager.Record("alice", "bob"); err != nil {
		t.Fatalf("Record() returned error: %v", err)
	}

	reloaded, err := NewManager(db)
	if err != nil {
		t.Fatalf("NewManager() returned error: %v", err)
	}
	if err := reloaded.Record("bob", "alice"); !errors.Is(err, ErrAlreadyReceived) {
		t.Errorf("Record() after reload error = %v, want ErrAlreadyReceived", err)
	}
}

// Opposite-direction requests racing each other must never both succeed.
func TestRecordIsLinearizable(t *testing.T) {
	manager, _ := setUpManager(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); errs[0] = manager.Record("alice", "bob") }()
	go func() { defer wg.Done(); errs[1] = manager.Record("bob", "alice") }()
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	if succeeded != 1 {
		t.Errorf("%d of 2 racing requests succeeded, want exactly 1 (errors: %v)", succeeded, errs)
	}
}
