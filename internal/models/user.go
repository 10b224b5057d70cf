package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccountType distinguishes people from automated accounts.
type AccountType string

const (
	AccountTypeUser AccountType = "user"
	AccountTypeBot  AccountType = "bot"
)

// User represents an account in the system.
type User struct {
	ID           uuid.UUID   `gorm:"type:char(36);primaryKey"`
	Nickname     string      `gorm:"size:255;unique;not null"`
	Email        string      `gorm:"size:255;unique;not null"`
	PasswordHash string      `gorm:"size:255;not null"`
	AccountType  AccountType `gorm:"size:20;not null;default:'user';index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BeforeCreate assigns a fresh id when none was set.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsBot reports whether the account is automated.
func (u *User) IsBot() bool {
	return u.AccountType == AccountTypeBot
}
