package identity

import (
	"context"
	"strings"
	"time"
)

// Role classifies a principal's privilege level. It is assigned by
// operators, never by the principal itself.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Principal is an authenticated identity record in the credential store.
// A principal always carries at least one of PasswordHash or ExternalID;
// LegacyID is a back-reference used only while absorbing a retired
// identity store and is never used for authorization.
type Principal struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username,omitempty"`
	PasswordHash string    `json:"-"`
	ExternalID   string    `json:"external_id,omitempty"`
	LegacyID     string    `json:"legacy_id,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasPassword reports whether the principal can authenticate with a
// password. Federated-only principals have no hash at all; migrated
// principals carry an unusable placeholder that never matches.
func (p *Principal) HasPassword() bool {
	return p.PasswordHash != ""
}

// CredentialStore is the durable record of registered principals and the
// single source of truth for identity. Implementations must enforce
// uniqueness of email, username, external id and legacy id at the store
// level: Create and Save return ErrConflict (wrapped with the violating
// field) when an insert or update would break one of those.
type CredentialStore interface {
	// FindByEmail looks up a principal by case-normalized email.
	FindByEmail(ctx context.Context, email string) (*Principal, error)

	// FindByExternalID looks up a principal by its federated provider id.
	FindByExternalID(ctx context.Context, externalID string) (*Principal, error)

	// FindByLegacyID looks up a principal by its retired-store id.
	FindByLegacyID(ctx context.Context, legacyID string) (*Principal, error)

	// FindByID looks up a principal by its own id.
	FindByID(ctx context.Context, id string) (*Principal, error)

	// Create inserts a new principal. The store assigns CreatedAt/UpdatedAt.
	Create(ctx context.Context, p *Principal) error

	// Save updates an existing principal in place.
	Save(ctx context.Context, p *Principal) error
}

// LinkRewriter rewrites ownership references on dependent records (saved
// links) during migration. Link content itself is an external
// collaborator's concern; this subsystem only touches the owner key.
type LinkRewriter interface {
	// RewriteOwner replaces every link owner reference equal to oldOwner
	// with newOwner and returns the number of links rewritten.
	RewriteOwner(ctx context.Context, oldOwner, newOwner string) (int, error)
}

// NormalizeEmail canonicalizes an email for lookups and storage.
// Emails uniquely identify principals case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
