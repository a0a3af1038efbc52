// Package legacy absorbs a retired hosted-auth identity store into the
// credential store. It exposes the legacy directory as a paginated
// enumeration and a one-shot migrator that upserts principals and
// rewrites saved-link ownership from legacy ids to principal ids.
package legacy

import "context"

// User is one record from the legacy directory, reduced to the fields
// migration cares about.
type User struct {
	// LegacyID is the retired store's identifier for this user. Becomes
	// Principal.LegacyID; never used for authorization.
	LegacyID string

	Email       string
	DisplayName string
	AvatarURL   string

	// ExternalID carries a prior federated linkage recorded in the
	// legacy store, when there was one.
	ExternalID string
}

// Directory enumerates the legacy store's users page by page. Pages are
// 1-based; a page shorter than perPage (or empty) is the last one.
type Directory interface {
	ListUsers(ctx context.Context, page, perPage int) ([]User, error)
}
