package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Assertion is a provider-verified statement of an external identity.
// Verifying its authenticity (the OAuth handshake) is the provider
// implementation's job; the resolver trusts an Assertion it receives.
type Assertion struct {
	ExternalID  string
	Email       string
	DisplayName string
	AvatarURL   string
}

// Resolver maps a federated assertion to exactly one principal,
// creating or linking as needed. Resolution is idempotent: repeated
// calls with the same assertion converge on the same principal.
type Resolver struct {
	Store CredentialStore
}

func NewResolver(store CredentialStore) *Resolver {
	return &Resolver{Store: store}
}

// Resolve runs the resolution algorithm:
//
//  1. Lookup by external id: repeat login, return unchanged.
//  2. Lookup by email: account linking. Attach the external id, backfill
//     the avatar when empty, persist.
//  3. Create a new federated-only principal with a derived username.
//
// Two concurrent first-time logins for the same email can both reach
// step 3; the store's uniqueness constraint makes the loser's create
// fail with ErrConflict, which is retried as a lookup-and-link instead
// of surfacing to the caller.
func (r *Resolver) Resolve(ctx context.Context, a Assertion) (*Principal, error) {
	if a.ExternalID == "" || a.Email == "" {
		return nil, fmt.Errorf("assertion missing external id or email")
	}
	a.Email = NormalizeEmail(a.Email)

	for attempt := 0; ; attempt++ {
		p, err := r.resolveOnce(ctx, a)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, ErrConflict) && attempt == 0 {
			slog.Warn("federated resolve lost create race, retrying as lookup",
				"email", a.Email, "error", err)
			continue
		}
		return nil, err
	}
}

func (r *Resolver) resolveOnce(ctx context.Context, a Assertion) (*Principal, error) {
	p, err := r.Store.FindByExternalID(ctx, a.ExternalID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	p, err = r.Store.FindByEmail(ctx, a.Email)
	if err == nil {
		p.ExternalID = a.ExternalID
		if p.AvatarURL == "" {
			p.AvatarURL = a.AvatarURL
		}
		if err := r.Store.Save(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	username, err := DeriveUsername(a.DisplayName, a.Email)
	if err != nil {
		return nil, err
	}
	p = &Principal{
		ID:         uuid.NewString(),
		Email:      a.Email,
		Username:   username,
		ExternalID: a.ExternalID,
		AvatarURL:  a.AvatarURL,
		Role:       RoleUser,
	}
	if err := r.Store.Create(ctx, p); err != nil {
		// A username collision gets a fresh suffix; email/external-id
		// conflicts bubble up for the lookup-and-link retry.
		if ConflictField(err) == "username" {
			if p.Username, err = DeriveUsername(a.DisplayName, a.Email); err != nil {
				return nil, err
			}
			err = r.Store.Create(ctx, p)
		}
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

var usernameStripRegex = regexp.MustCompile(`[^a-z0-9_-]+`)

// DeriveUsername builds a username from a display name (falling back to
// the email local part) plus a short random suffix for uniqueness.
func DeriveUsername(displayName, email string) (string, error) {
	base := strings.ToLower(strings.TrimSpace(displayName))
	base = usernameStripRegex.ReplaceAllString(base, "")
	if base == "" {
		if i := strings.Index(email, "@"); i > 0 {
			base = usernameStripRegex.ReplaceAllString(strings.ToLower(email[:i]), "")
		}
	}
	if base == "" {
		base = "user"
	}
	suffix, err := randomSuffix()
	if err != nil {
		return "", err
	}
	return base + suffix, nil
}

func randomSuffix() (string, error) {
	b := make([]byte, 2)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed reading random suffix: %w", err)
	}
	return hex.EncodeToString(b), nil
}
