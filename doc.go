// Package identity establishes who a caller is and hands them a
// session. It is the identity subsystem of the reelstash link-vault
// service: principals register with email/password or arrive through a
// federated OAuth provider, and every later request carries a compact
// signed bearer token instead of a server-side session.
//
// # Architecture
//
// Principal: a single account in the credential store, uniquely
// identified by email. A principal may hold a password hash, a
// federated provider id, or both; account linking attaches a federated
// identity to an existing password account that shares its email.
//
// CredentialStore: the durable record of principals and the sole source
// of truth for identity. Store backends live under stores/ (a JSON-file
// backend for development and tests, a GORM backend for production).
// Uniqueness of email, username and provider id is enforced at the
// store, which is what makes concurrent federated first-logins safe.
//
// SessionIssuer: issues and verifies HS256-signed tokens asserting
// {principal id, issued-at, expiry}. Tokens are stateless; verification
// needs only the process signing key, so the request path never touches
// the store.
//
// # Basic Usage
//
// Wire the store, the authenticators and the token service:
//
//	store := fs.NewPrincipalStore(storagePath)
//	local := identity.NewLocalAuth(store)
//	resolver := identity.NewResolver(store)
//	sessions, err := identity.NewSessionIssuer(cfg.SigningKey)
//
// Expose the HTTP surface and guard private routes:
//
//	handlers := &identity.AuthHandlers{
//	    Local:     local,
//	    Resolver:  resolver,
//	    Sessions:  sessions,
//	    Store:     store,
//	    ClientURL: cfg.ClientURL,
//	}
//	mw := &identity.Middleware{Verify: sessions.Verify}
//	mux.HandleFunc("/auth/register", handlers.HandleRegister)
//	mux.HandleFunc("/auth/login", handlers.HandleLogin)
//	mux.Handle("/auth/me", mw.EnsureSession(http.HandlerFunc(handlers.HandleMe)))
//
// Downstream handlers recover the caller with
// identity.PrincipalIDFromContext and scope their queries to it.
//
// # Federated Login
//
// The oauth2 subpackage runs the provider handshake and reduces the
// callback to an Assertion {external id, email, display name, avatar}.
// Resolver.Resolve then maps the assertion to exactly one principal:
// repeat logins find it by provider id, first logins for a known email
// link, and unknown emails create. The algorithm is idempotent and
// survives concurrent first logins by retrying a lost create as a
// lookup-and-link.
//
// # Migration
//
// The legacy package absorbs a retired hosted-auth directory into the
// credential store and rewrites saved-link ownership references; see
// cmd/migrate-users.
//
// # Security
//
// Passwords are hashed with bcrypt at default cost; comparison time does
// not depend on whether the email exists. Session tokens expire after a
// configured horizon (30 days by default) with a small clock-grace
// window and are invalidated wholesale by rotating the signing key.
package identity
