package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Account contains the login information and lifetime score specific to
// each registered user.
type Account struct {
	ID               uint64 `gorm:"primaryKey"`
	Username         string `gorm:"unique; not null"`
	Password         string `gorm:"not null"`
	RegistrationDate time.Time
	Score            int `gorm:"default:0"`
}

// FindAccountByUsername searches for an account with the specified username,
// returning the *Account instance if found or nil if there is no match.
func FindAccountByUsername(db *gorm.DB, username string) (*Account, error) {
	var account Account
	err := db.Where("username = ?", username).First(&account).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &account, nil
}

// CreateAccount persists the Account record to the database.
func CreateAccount(db *gorm.DB, account *Account) error {
	return db.Create(account).Error
}

// AddScore applies a (possibly negative) score delta to the account.
func AddScore(db *gorm.DB, username string, delta int) error {
	return db.Model(&Account{}).
		Where("username = ?", username).
		UpdateColumn("score", gorm.Expr("score + ?", delta)).Error
}

// ScoresFor returns the scores of the given usernames keyed by username.
// Usernames with no account are absent from the result.
func ScoresFor(db *gorm.DB, usernames []string) (map[string]int, error) {
	var accounts []Account
	if err := db.Where("username IN ?", usernames).Find(&accounts).Error; err != nil {
		return nil, err
	}

	scores := make(map[string]int, len(accounts))
	for _, account := range accounts {
		scores[account.Username] = account.Score
	}
	return scores, nil
}
