package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// dummyHash is compared against when no stored hash exists, so a login
// for an unknown email costs the same as one for a known email.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("reelstash-no-such-user"), bcrypt.DefaultCost)

// LocalAuth authenticates principals with email/password credentials
// against the credential store.
type LocalAuth struct {
	Store CredentialStore

	// MinPasswordLength defaults to 8.
	MinPasswordLength int
}

func NewLocalAuth(store CredentialStore) *LocalAuth {
	return &LocalAuth{Store: store}
}

func (a *LocalAuth) minPasswordLength() int {
	if a.MinPasswordLength > 0 {
		return a.MinPasswordLength
	}
	return 8
}

// Register creates a password-based principal. Username is optional and
// defaults to the email local part. Fails with ErrConflict when the email
// is already bound; the wrapped message distinguishes an email that is
// federated-only, since that caller should use federated login instead.
func (a *LocalAuth) Register(ctx context.Context, email, password, username string) (*Principal, error) {
	email = NormalizeEmail(email)
	if !emailRegex.MatchString(email) {
		return nil, fmt.Errorf("invalid email format")
	}
	if len(password) < a.minPasswordLength() {
		return nil, fmt.Errorf("password must be at least %d characters", a.minPasswordLength())
	}

	existing, err := a.Store.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.ExternalID != "" {
			return nil, fmt.Errorf("%w: email registered via federated login", ErrConflict)
		}
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if username == "" {
		username = email[:strings.Index(email, "@")]
	}

	p := &Principal{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Role:         RoleUser,
	}
	if err := a.Store.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Login validates an email/password pair and returns the matching
// principal. All failure paths return ErrInvalidCredentials: unknown
// email, federated-only principal, or hash mismatch. The comparison is
// constant-time with respect to the stored hash.
func (a *LocalAuth) Login(ctx context.Context, email, password string) (*Principal, error) {
	p, err := a.Store.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !p.HasPassword() {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return p, nil
}
