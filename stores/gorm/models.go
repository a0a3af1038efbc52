package gorm

import (
	"time"

	"github.com/reelstash/identity"
)

// PrincipalModel is the GORM model for principals. ExternalID and
// LegacyID are pointers so that principals without them store NULL
// rather than colliding on the unique index.
type PrincipalModel struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Email        string    `gorm:"size:255;uniqueIndex;not null"`
	Username     string    `gorm:"size:64;uniqueIndex;not null"`
	PasswordHash string    `gorm:"size:128"`
	ExternalID   *string   `gorm:"size:128;uniqueIndex"`
	LegacyID     *string   `gorm:"size:64;uniqueIndex"`
	AvatarURL    string    `gorm:"size:512"`
	Role         string    `gorm:"size:16;default:user"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (PrincipalModel) TableName() string {
	return "principals"
}

func (m *PrincipalModel) ToPrincipal() *identity.Principal {
	return &identity.Principal{
		ID:           m.ID,
		Email:        m.Email,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		ExternalID:   deref(m.ExternalID),
		LegacyID:     deref(m.LegacyID),
		AvatarURL:    m.AvatarURL,
		Role:         identity.Role(m.Role),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func PrincipalToModel(p *identity.Principal) *PrincipalModel {
	return &PrincipalModel{
		ID:           p.ID,
		Email:        identity.NormalizeEmail(p.Email),
		Username:     p.Username,
		PasswordHash: p.PasswordHash,
		ExternalID:   optional(p.ExternalID),
		LegacyID:     optional(p.LegacyID),
		AvatarURL:    p.AvatarURL,
		Role:         string(p.Role),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// LinkModel is the GORM model for saved links. Identity only reads and
// rewrites the Owner column; the rest belongs to the bookmarking layer.
type LinkModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Owner     string    `gorm:"size:64;index;not null"`
	URL       string    `gorm:"size:1024;not null"`
	Title     string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (LinkModel) TableName() string {
	return "links"
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
