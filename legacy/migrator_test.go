package legacy_test

import (
	"context"
	"testing"

	"github.com/reelstash/identity"
	"github.com/reelstash/identity/legacy"
	fsstore "github.com/reelstash/identity/stores/fs"
)

// fakeDirectory serves a fixed user list with real pagination.
type fakeDirectory struct {
	users []legacy.User
	calls int
}

func (d *fakeDirectory) ListUsers(ctx context.Context, page, perPage int) ([]legacy.User, error) {
	d.calls++
	start := (page - 1) * perPage
	if start >= len(d.users) {
		return nil, nil
	}
	end := start + perPage
	if end > len(d.users) {
		end = len(d.users)
	}
	return d.users[start:end], nil
}

func setupMigration(t *testing.T, users ...legacy.User) (*legacy.Migrator, *fsstore.PrincipalStore, *fsstore.LinkStore) {
	t.Helper()
	dir := t.TempDir()
	store := fsstore.NewPrincipalStore(dir)
	links := fsstore.NewLinkStore(dir)
	return legacy.NewMigrator(&fakeDirectory{users: users}, store, links), store, links
}

func TestMigrationCreatesPrincipalAndRewritesLinks(t *testing.T) {
	migrator, store, links := setupMigration(t, legacy.User{
		LegacyID:    "L1",
		Email:       "b@x.com",
		DisplayName: "Bee User",
		ExternalID:  "g-55",
		AvatarURL:   "https://example.com/bee.png",
	})
	ctx := context.Background()

	if err := links.SaveLink(ctx, &fsstore.LinkRecord{ID: "l1", Owner: "L1", URL: "https://instagram.com/p/abc"}); err != nil {
		t.Fatalf("seed link failed: %v", err)
	}

	summary, err := migrator.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Migrated != 1 || summary.Failed != 0 || summary.LinksRewritten != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	p, err := store.FindByLegacyID(ctx, "L1")
	if err != nil {
		t.Fatalf("migrated principal not found: %v", err)
	}
	if p.Email != "b@x.com" || p.ExternalID != "g-55" || p.AvatarURL != "https://example.com/bee.png" {
		t.Errorf("legacy fields not carried: %+v", p)
	}
	if !p.HasPassword() {
		t.Error("migrated principal needs a placeholder password to satisfy the credential invariant")
	}

	// The placeholder must never work as a login password.
	auth := identity.NewLocalAuth(store)
	if _, err := auth.Login(ctx, "b@x.com", ""); err == nil {
		t.Error("empty password must not match the placeholder")
	}

	mine, err := links.LinksByOwner(ctx, p.ID)
	if err != nil {
		t.Fatalf("LinksByOwner failed: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "l1" {
		t.Errorf("link not rewritten to the new principal: %v", mine)
	}
}

func TestMigrationIsIdempotent(t *testing.T) {
	migrator, store, links := setupMigration(t, legacy.User{LegacyID: "L1", Email: "b@x.com"})
	ctx := context.Background()

	if err := links.SaveLink(ctx, &fsstore.LinkRecord{ID: "l1", Owner: "L1", URL: "https://instagram.com/p/abc"}); err != nil {
		t.Fatalf("seed link failed: %v", err)
	}

	first, err := migrator.Run(ctx)
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	p1, err := store.FindByLegacyID(ctx, "L1")
	if err != nil {
		t.Fatalf("principal not found after first run: %v", err)
	}

	second, err := migrator.Run(ctx)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if second.Migrated != first.Migrated || second.Failed != 0 {
		t.Errorf("second run summary changed: %+v vs %+v", second, first)
	}
	if second.LinksRewritten != 0 {
		t.Errorf("second run rewrote %d links, want 0", second.LinksRewritten)
	}

	p2, err := store.FindByLegacyID(ctx, "L1")
	if err != nil {
		t.Fatalf("principal not found after second run: %v", err)
	}
	if p2.ID != p1.ID {
		t.Errorf("second run produced a different principal: %q vs %q", p2.ID, p1.ID)
	}

	mine, err := links.LinksByOwner(ctx, p1.ID)
	if err != nil {
		t.Fatalf("LinksByOwner failed: %v", err)
	}
	if len(mine) != 1 {
		t.Errorf("link ownership changed on rerun: %v", mine)
	}
}

func TestMigrationAttachesToExistingPrincipal(t *testing.T) {
	migrator, store, _ := setupMigration(t, legacy.User{
		LegacyID:   "L1",
		Email:      "existing@x.com",
		ExternalID: "g-9",
	})
	ctx := context.Background()

	auth := identity.NewLocalAuth(store)
	registered, err := auth.Register(ctx, "existing@x.com", "password123", "existing")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := migrator.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	p, err := store.FindByLegacyID(ctx, "L1")
	if err != nil {
		t.Fatalf("legacy id not attached: %v", err)
	}
	if p.ID != registered.ID {
		t.Fatalf("migration duplicated an existing principal: %q vs %q", p.ID, registered.ID)
	}
	if p.ExternalID != "g-9" {
		t.Errorf("newly known external id not attached: %q", p.ExternalID)
	}

	// Existing credentials survive the merge.
	if _, err := auth.Login(ctx, "existing@x.com", "password123"); err != nil {
		t.Errorf("password login broken after migration: %v", err)
	}
}

func TestMigrationContinuesPastFailures(t *testing.T) {
	migrator, store, _ := setupMigration(t,
		legacy.User{LegacyID: "L1", Email: "ok1@x.com"},
		legacy.User{LegacyID: "L2"}, // missing email
		legacy.User{LegacyID: "L3", Email: "ok2@x.com"},
	)
	ctx := context.Background()

	summary, err := migrator.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Migrated != 2 || summary.Failed != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	for _, legacyID := range []string{"L1", "L3"} {
		if _, err := store.FindByLegacyID(ctx, legacyID); err != nil {
			t.Errorf("record %s should have migrated despite the failure: %v", legacyID, err)
		}
	}
}

func TestMigrationPaginates(t *testing.T) {
	users := []legacy.User{
		{LegacyID: "L1", Email: "u1@x.com"},
		{LegacyID: "L2", Email: "u2@x.com"},
		{LegacyID: "L3", Email: "u3@x.com"},
		{LegacyID: "L4", Email: "u4@x.com"},
		{LegacyID: "L5", Email: "u5@x.com"},
	}
	dir := t.TempDir()
	store := fsstore.NewPrincipalStore(dir)
	directory := &fakeDirectory{users: users}
	migrator := legacy.NewMigrator(directory, store, fsstore.NewLinkStore(dir))
	migrator.PageSize = 2

	summary, err := migrator.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Migrated != 5 {
		t.Errorf("migrated %d, want 5", summary.Migrated)
	}
	if directory.calls < 3 {
		t.Errorf("expected at least 3 page fetches, got %d", directory.calls)
	}
}
