// Package models contains the persisted entities and the shared error types.
package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Role is the privilege level of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account is a registered identity. Accounts are created the first time an
// auth provider subject reaches the API.
type Account struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AuthSubject string    `gorm:"uniqueIndex;size:255;not null" json:"-"`
	Email       string    `gorm:"uniqueIndex;size:320;not null" json:"email"`
	Username    string    `gorm:"size:50;not null" json:"username"`
	UsernameKey string    `gorm:"uniqueIndex;size:50;not null" json:"-"`
	DisplayName string    `gorm:"size:100" json:"display_name,omitempty"`
	AvatarURL   string    `gorm:"size:1024" json:"avatar_url,omitempty"`
	Bio         string    `gorm:"type:text" json:"bio,omitempty"`
	Role        Role      `gorm:"size:16;not null;default:user" json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DeletedSubject records an auth provider subject whose account was deleted
// by an admin. The subject cannot sign in again.
type DeletedSubject struct {
	Subject   string    `gorm:"primaryKey;size:255" json:"subject"`
	AccountID uint      `gorm:"not null" json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeSave keeps the case-folded username key in sync.
func (a *Account) BeforeSave(_ *gorm.DB) error {
	a.UsernameKey = UsernameKey(a.Username)
	if a.Role == "" {
		a.Role = RoleUser
	}
	return nil
}

// IsAdmin reports whether the account holds the admin role.
func (a *Account) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// Summary returns the public projection of the account.
func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:          a.ID,
		Username:    a.Username,
		DisplayName: a.DisplayName,
		AvatarURL:   a.AvatarURL,
	}
}

// UsernameKey folds a username for case-insensitive uniqueness.
func UsernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Identity is what the external auth provider asserts about a caller.
type Identity struct {
	Subject  string
	Email    string
	Username string
}

// AccountSummary is what other users see of an account.
type AccountSummary struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Profile is a public account view with relationship counts.
type Profile struct {
	AccountSummary
	Bio            string    `json:"bio,omitempty"`
	FollowersCount int64     `json:"followers_count"`
	FollowingCount int64     `json:"following_count"`
	PostsCount     int64     `json:"posts_count"`
	CreatedAt      time.Time `json:"created_at"`
}
