// Package model defines the data structures used throughout the application.
package model

import (
	"strings"
	"time"
)

// Role is a user's privilege level. Roles are ordered: viewer < user < admin.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
)

var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleUser:   2,
	RoleAdmin:  3,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r grants at least the privileges of min.
// Unknown roles grant nothing.
func (r Role) AtLeast(min Role) bool {
	have, ok := roleRank[r]
	if !ok {
		return false
	}
	return have >= roleRank[min]
}

// User represents an account created on first Google login.
//
// GoogleID is the stable external identifier the OAuth upsert is keyed on.
// We still generate our own internal xid so primary keys are not tied to
// Google's numbering. Neither ID nor GoogleID is ever sent to the browser;
// see PublicUser.
type User struct {
	ID        string    `json:"-"         db:"id"`
	GoogleID  string    `json:"-"         db:"google_id"`
	Email     string    `json:"email"     db:"email"`
	Name      string    `json:"name"      db:"name"`
	AvatarURL string    `json:"avatarUrl" db:"avatar_url"`
	Role      Role      `json:"role"      db:"role"`
	LastLogin time.Time `json:"lastLogin" db:"last_login"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// PublicUser is the user shape returned by GET /api/auth/user.
type PublicUser struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatarUrl"`
	Role      Role      `json:"role"`
	LastLogin time.Time `json:"lastLogin"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public strips internal identifiers.
func (u *User) Public() PublicUser {
	return PublicUser{
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		Role:      u.Role,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}

// AllowedEmail gates registration when the allow-list is enabled.
type AllowedEmail struct {
	ID        string    `json:"id"                  db:"id"`
	Email     string    `json:"email"               db:"email"`
	InvitedBy string    `json:"invitedBy,omitempty" db:"invited_by"`
	CreatedAt time.Time `json:"createdAt"           db:"created_at"`
}

// NormalizeEmail lowercases and trims an address. Allow-list lookups and
// inserts always go through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
