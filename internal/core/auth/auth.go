// Package auth implements credential verification and account creation on
// top of the data layer. Passwords are stored as hex-encoded SHA-256 digests.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"wordclash/internal/core/data"
)

var (
	ErrUnknownUser        = errors.New("no account exists for that username")
	ErrInvalidCredentials = errors.New("username/password combination not found")
	ErrVoidUsername       = errors.New("username must not be empty")
	ErrVoidPassword       = errors.New("password must not be empty")
	ErrUsernameTaken      = errors.New("username is already registered")
)

// VerifyAccount checks the accounts table for the specified credentials
// combination, distinguishing an unknown username from a wrong password so
// the caller can report each with its own response code.
func VerifyAccount(db *gorm.DB, username, password string) (*data.Account, error) {
	account, err := data.FindAccountByUsername(db, username)
	if err != nil {
		return nil, fmt.Errorf("error finding account: %w", err)
	}

	if account == nil {
		return nil, ErrUnknownUser
	}
	if account.Password != HashPassword(password) {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}

// CreateAccount validates the specified credentials and creates a new
// account record, returning either the result or any errors encountered.
func CreateAccount(db *gorm.DB, username, password string) (*data.Account, error) {
	if username == "" {
		return nil, ErrVoidUsername
	}
	if password == "" {
		return nil, ErrVoidPassword
	}

	existing, err := data.FindAccountByUsername(db, username)
	if err != nil {
		return nil, fmt.Errorf("error finding account: %w", err)
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	account := &data.Account{
		Username:         username,
		Password:         HashPassword(password),
		RegistrationDate: time.Now(),
	}
	if err := data.CreateAccount(db, account); err != nil {
		return nil, fmt.Errorf("error creating account: %w", err)
	}
	return account, nil
}

// HashPassword returns a version of password with wordclash's chosen
// hashing strategy.
func HashPassword(password string) string {
	hash := sha256.Sum256([]byte(password))
	return hex.EncodeToString(hash[:])
}
