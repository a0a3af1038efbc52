package legacy

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/reelstash/identity"
)

const defaultPageSize = 50

// Summary reports the outcome of one migration run.
type Summary struct {
	// Migrated counts legacy records resolved to a principal, whether
	// created fresh or matched to an existing one.
	Migrated int

	// Failed counts records that errored; the run continues past them.
	Failed int

	// LinksRewritten counts dependent link records whose owner key was
	// rewritten from a legacy id to a principal id.
	LinksRewritten int
}

// Migrator absorbs a legacy directory into the credential store and
// rewrites link ownership. It runs single-threaded over pages; each
// record is processed independently, so a failure is logged and counted
// rather than aborting the batch.
//
// Runs are idempotent at the principal level: the upsert keys on legacy
// id and email, so a second run matches rather than duplicates. A run
// interrupted between principal creation and link rewriting is repaired
// by the next run, since un-rewritten links still carry the legacy id
// the rewrite matches on.
type Migrator struct {
	Directory Directory
	Store     identity.CredentialStore
	Links     identity.LinkRewriter

	// PageSize defaults to 50.
	PageSize int
}

func NewMigrator(dir Directory, store identity.CredentialStore, links identity.LinkRewriter) *Migrator {
	return &Migrator{Directory: dir, Store: store, Links: links}
}

func (m *Migrator) pageSize() int {
	if m.PageSize > 0 {
		return m.PageSize
	}
	return defaultPageSize
}

// Run migrates every record the directory enumerates. A directory page
// failure aborts the run (the enumeration itself is broken); a
// per-record failure does not.
func (m *Migrator) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	perPage := m.pageSize()

	for page := 1; ; page++ {
		users, err := m.Directory.ListUsers(ctx, page, perPage)
		if err != nil {
			return summary, fmt.Errorf("failed listing legacy page %d: %w", page, err)
		}
		if len(users) == 0 {
			break
		}

		for _, user := range users {
			rewritten, err := m.migrateUser(ctx, user)
			if err != nil {
				slog.Error("failed migrating legacy user",
					"legacy_id", user.LegacyID, "error", err)
				summary.Failed++
				continue
			}
			summary.Migrated++
			summary.LinksRewritten += rewritten
		}

		if len(users) < perPage {
			break
		}
	}

	slog.Info("migration run complete",
		"migrated", summary.Migrated,
		"failed", summary.Failed,
		"links_rewritten", summary.LinksRewritten)
	return summary, nil
}

func (m *Migrator) migrateUser(ctx context.Context, user User) (int, error) {
	if user.LegacyID == "" || user.Email == "" {
		return 0, fmt.Errorf("record missing legacy id or email")
	}

	p, err := m.resolvePrincipal(ctx, user)
	if err != nil {
		return 0, err
	}
	return m.Links.RewriteOwner(ctx, user.LegacyID, p.ID)
}

// resolvePrincipal upserts the credential-store record for a legacy
// user: match by legacy id, then by email (attaching the legacy id and
// any newly-known external id without overwriting), then create.
func (m *Migrator) resolvePrincipal(ctx context.Context, user User) (*identity.Principal, error) {
	p, err := m.Store.FindByLegacyID(ctx, user.LegacyID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, identity.ErrNotFound) {
		return nil, err
	}

	p, err = m.Store.FindByEmail(ctx, user.Email)
	if err == nil {
		p.LegacyID = user.LegacyID
		if p.ExternalID == "" {
			p.ExternalID = user.ExternalID
		}
		if err := m.Store.Save(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	}
	if !errors.Is(err, identity.ErrNotFound) {
		return nil, err
	}

	return m.createPrincipal(ctx, user)
}

func (m *Migrator) createPrincipal(ctx context.Context, user User) (*identity.Principal, error) {
	// A placeholder hash of random bytes keeps the password invariant
	// satisfied while matching no guessable password; the user signs in
	// federated or goes through a reset flow.
	placeholder, err := placeholderPassword()
	if err != nil {
		return nil, err
	}
	username, err := identity.DeriveUsername(user.DisplayName, user.Email)
	if err != nil {
		return nil, err
	}

	p := &identity.Principal{
		ID:           uuid.NewString(),
		Email:        identity.NormalizeEmail(user.Email),
		Username:     username,
		PasswordHash: placeholder,
		ExternalID:   user.ExternalID,
		LegacyID:     user.LegacyID,
		AvatarURL:    user.AvatarURL,
		Role:         identity.RoleUser,
	}
	if err := m.Store.Create(ctx, p); err != nil {
		if identity.ConflictField(err) == "username" {
			if p.Username, err = identity.DeriveUsername(user.DisplayName, user.Email); err != nil {
				return nil, err
			}
			err = m.Store.Create(ctx, p)
		}
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

func placeholderPassword() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(b)), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
