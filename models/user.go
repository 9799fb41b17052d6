package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Name         string    `gorm:"size:80;not null" json:"name"`
	Email        string    `gorm:"uniqueIndex;size:120;not null" json:"email,omitempty"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	ProfileImage string    `gorm:"size:500" json:"profileImage,omitempty"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// UserSummaryColumns are the columns loaded when a user is only displayed
// next to a message or a conversation.
var UserSummaryColumns = []string{"id", "name", "profile_image"}

func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}
