package data

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCreateFriendshipIsSymmetric(t *testing.T) {
	db := setUpDatabase(t)

	if err := CreateFriendship(db, "alice", "bob"); err != nil {
		t.Fatalf("CreateFriendship() returned error: %v", err)
	}

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		friends, err := AreFriends(db, pair[0], pair[1])
		if err != nil {
			t.Fatalf("AreFriends(%q, %q) returned error: %v", pair[0], pair[1], err)
		}
		if !friends {
			t.Errorf("AreFriends(%q, %q) = false, want true", pair[0], pair[1])
		}
	}

	friends, err := AreFriends(db, "alice", "carol")
	if err != nil {
		t.Fatalf("AreFriends() returned error: %v", err)
	}
	if friends {
		t.Error("AreFriends(alice, carol) = true, want false")
	}
}

func TestFriendsOf(t *testing.T) {
	db := setUpDatabase(t)

	for _, friend := range []string{"bob", "carol"} {
		if err := CreateFriendship(db, "alice", friend); err != nil {
			t.Fatalf("CreateFriendship() returned error: %v", err)
		}
	}

	got, err := FriendsOf(db, "alice")
	if err != nil {
		t.Fatalf("FriendsOf() returned error: %v", err)
	}
	sort.Strings(got)
	if diff := cmp.Diff([]string{"bob", "carol"}, got); diff != "" {
		t.Errorf("friend list did not match expected; diff:\n%s", diff)
	}
}

func TestFriendInvites(t *testing.T) {
	db := setUpDatabase(t)

	if err := CreateFriendInvite(db, "alice", "bob"); err != nil {
		t.Fatalf("CreateFriendInvite() returned error: %v", err)
	}
	if err := CreateFriendInvite(db, "alice", "bob"); err == nil {
		t.Error("expected duplicate invite to be rejected")
	}

	invites, err := AllFriendInvites(db)
	if err != nil {
		t.Fatalf("AllFriendInvites() returned error: %v", err)
	}
	if len(invites) != 1 || invites[0].Sender != "alice" || invites[0].Receiver != "bob" {
		t.Errorf("unexpected invites: %+v", invites)
	}

	deleted, err := DeleteFriendInvite(db, "alice", "bob")
	if err != nil {
		t.Fatalf("DeleteFriendInvite() returned error: %v", err)
	}
	if !deleted {
		t.Error("DeleteFriendInvite() = false, want true")
	}

	deleted, err = DeleteFriendInvite(db, "alice", "bob")
	if err != nil {
		t.Fatalf("DeleteFriendInvite() returned error: %v", err)
	}
	if deleted {
		t.Error("second DeleteFriendInvite() = true, want false")
	}
}
