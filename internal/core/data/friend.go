package data

import (
	"errors"

	"gorm.io/gorm"
)

// FriendLink records one direction of a confirmed friendship. Links are
// always written in pairs inside a transaction, so the relation can be
// queried from either side with a single-column lookup.
type FriendLink struct {
	ID       uint64 `gorm:"primaryKey"`
	Username string `gorm:"not null; uniqueIndex:idx_friend_pair"`
	Friend   string `gorm:"not null; uniqueIndex:idx_friend_pair"`
}

// FriendInvite is a pending friendship request. Invites outlive sessions:
// they are kept until the receiver accepts or declines.
type FriendInvite struct {
	ID       uint64 `gorm:"primaryKey"`
	Sender   string `gorm:"not null; uniqueIndex:idx_invite_pair"`
	Receiver string `gorm:"not null; uniqueIndex:idx_invite_pair"`
}

// CreateFriendship records a confirmed friendship in both directions.
func CreateFriendship(db *gorm.DB, a, b string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&FriendLink{Username: a, Friend: b}).Error; err != nil {
			return err
		}
		return tx.Create(&FriendLink{Username: b, Friend: a}).Error
	})
}

// AreFriends reports whether a confirmed friendship exists between a and b.
func AreFriends(db *gorm.DB, a, b string) (bool, error) {
	err := db.Where("username = ? AND friend = ?", a, b).First(&FriendLink{}).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FriendsOf returns the usernames of all confirmed friends of username.
func FriendsOf(db *gorm.DB, username string) ([]string, error) {
	var links []FriendLink
	if err := db.Where("username = ?", username).Find(&links).Error; err != nil {
		return nil, err
	}

	friends := make([]string, 0, len(links))
	for _, link := range links {
		friends = append(friends, link.Friend)
	}
	return friends, nil
}

// CreateFriendInvite persists a pending friendship request.
func CreateFriendInvite(db *gorm.DB, sender, receiver string) error {
	return db.Create(&FriendInvite{Sender: sender, Receiver: receiver}).Error
}

// DeleteFriendInvite removes a pending request, reporting whether one existed.
func DeleteFriendInvite(db *gorm.DB, sender, receiver string) (bool, error) {
	result := db.Where("sender = ? AND receiver = ?", sender, receiver).Delete(&FriendInvite{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AllFriendInvites returns every pending request, used to warm the in-memory
// friendship request manager at startup.
func AllFriendInvites(db *gorm.DB) ([]FriendInvite, error) {
	var invites []FriendInvite
	if err := db.Find(&invites).Error; err != nil {
		return nil, err
	}
	return invites, nil
}
