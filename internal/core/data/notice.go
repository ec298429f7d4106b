package data

import (
	"time"

	"gorm.io/gorm"
)

// StoredNotice is a notification that could not be delivered before its
// target logged out. Relationship confirmations are queued here against the
// user identity rather than the ephemeral session, and replayed into the
// backlog at the next login.
type StoredNotice struct {
	ID          uint64 `gorm:"primaryKey"`
	Username    string `gorm:"not null; index"`
	MessageType int16  `gorm:"not null"`
	// Fields holds the notification's field list encoded as JSON.
	Fields    string
	CreatedAt time.Time
}

// CreateStoredNotice persists an undelivered notice.
func CreateStoredNotice(db *gorm.DB, notice *StoredNotice) error {
	return db.Create(notice).Error
}

// TakeStoredNotices returns and deletes all stored notices for username in
// creation order. The read and delete happen in one transaction so a crash
// cannot deliver the same notice twice.
func TakeStoredNotices(db *gorm.DB, username string) ([]StoredNotice, error) {
	var notices []StoredNotice
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("username = ?", username).Order("id").Find(&notices).Error; err != nil {
			return err
		}
		return tx.Where("username = ?", username).Delete(&StoredNotice{}).Error
	})
	if err != nil {
		return nil, err
	}
	return notices, nil
}
