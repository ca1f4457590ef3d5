package model

import "time"

// PlatformType identifies an external social network.
type PlatformType string

const (
	PlatformLinkedIn  PlatformType = "linkedin"
	PlatformYouTube   PlatformType = "youtube"
	PlatformInstagram PlatformType = "instagram"
)

// PlatformTypes lists every supported network in lexical order.
var PlatformTypes = []PlatformType{PlatformInstagram, PlatformLinkedIn, PlatformYouTube}

// ParsePlatformType validates a path or config value.
func ParsePlatformType(s string) (PlatformType, bool) {
	switch PlatformType(s) {
	case PlatformLinkedIn, PlatformYouTube, PlatformInstagram:
		return PlatformType(s), true
	}
	return "", false
}

// Platform holds the credentials for one network. There is at most one
// row per Type.
//
// Credentials is an adapter-specific bundle (access_token, api_key, ...).
// It is never serialized to API responses.
type Platform struct {
	ID          string            `json:"id"                   db:"id"`
	Type        PlatformType      `json:"type"                 db:"type"`
	Name        string            `json:"name"                 db:"name"`
	Credentials map[string]string `json:"-"                    db:"credentials"`
	IsActive    bool              `json:"isActive"             db:"is_active"`
	LastSyncAt  *time.Time        `json:"lastSyncAt,omitempty" db:"last_sync_at"`
	CreatedAt   time.Time         `json:"createdAt"            db:"created_at"`
	UpdatedAt   time.Time         `json:"updatedAt"            db:"updated_at"`
}
