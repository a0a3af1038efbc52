package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/reelstash/identity"
)

// PrincipalStore stores principals as JSON files under dir/principals.
// Secondary lookups (email, external id, legacy id) scan the directory;
// uniqueness is enforced under an in-process mutex, so a single store
// instance must own the directory.
type PrincipalStore struct {
	Dir string

	mu sync.Mutex
}

func NewPrincipalStore(dir string) *PrincipalStore {
	return &PrincipalStore{Dir: dir}
}

func (s *PrincipalStore) principalPath(id string) string {
	// filepath.Base prevents path traversal through hostile ids
	return filepath.Join(s.Dir, "principals", filepath.Base(id)+".json")
}

func (s *PrincipalStore) FindByID(ctx context.Context, id string) (*identity.Principal, error) {
	data, err := os.ReadFile(s.principalPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: principal %s", identity.ErrNotFound, id)
		}
		return nil, err
	}

	var p principalRecord
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p.toPrincipal(), nil
}

func (s *PrincipalStore) FindByEmail(ctx context.Context, email string) (*identity.Principal, error) {
	email = identity.NormalizeEmail(email)
	return s.scan(func(p *identity.Principal) bool { return p.Email == email })
}

func (s *PrincipalStore) FindByExternalID(ctx context.Context, externalID string) (*identity.Principal, error) {
	if externalID == "" {
		return nil, identity.ErrNotFound
	}
	return s.scan(func(p *identity.Principal) bool { return p.ExternalID == externalID })
}

func (s *PrincipalStore) FindByLegacyID(ctx context.Context, legacyID string) (*identity.Principal, error) {
	if legacyID == "" {
		return nil, identity.ErrNotFound
	}
	return s.scan(func(p *identity.Principal) bool { return p.LegacyID == legacyID })
}

func (s *PrincipalStore) Create(ctx context.Context, p *identity.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.principalPath(p.ID)); err == nil {
		return &identity.ConflictError{Field: "id"}
	}
	if err := s.checkUnique(p); err != nil {
		return err
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	return s.write(p)
}

func (s *PrincipalStore) Save(ctx context.Context, p *identity.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.principalPath(p.ID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: principal %s", identity.ErrNotFound, p.ID)
		}
		return err
	}
	if err := s.checkUnique(p); err != nil {
		return err
	}

	p.UpdatedAt = time.Now()
	return s.write(p)
}

// checkUnique scans for another principal already holding one of p's
// unique fields and names the violating field in the wrapped error.
// Callers must hold s.mu.
func (s *PrincipalStore) checkUnique(p *identity.Principal) error {
	var field string
	_, err := s.scan(func(o *identity.Principal) bool {
		if o.ID == p.ID {
			return false
		}
		switch {
		case o.Email == identity.NormalizeEmail(p.Email):
			field = "email"
		case p.Username != "" && o.Username == p.Username:
			field = "username"
		case p.ExternalID != "" && o.ExternalID == p.ExternalID:
			field = "external_id"
		case p.LegacyID != "" && o.LegacyID == p.LegacyID:
			field = "legacy_id"
		default:
			return false
		}
		return true
	})
	if err == nil {
		return &identity.ConflictError{Field: field}
	}
	if errors.Is(err, identity.ErrNotFound) {
		return nil
	}
	return err
}

func (s *PrincipalStore) write(p *identity.Principal) error {
	path := s.principalPath(p.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(newPrincipalRecord(p), "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(path, data)
}

func (s *PrincipalStore) scan(match func(*identity.Principal) bool) (*identity.Principal, error) {
	dir := filepath.Join(s.Dir, "principals")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, identity.ErrNotFound
		}
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var rec principalRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if p := rec.toPrincipal(); match(p) {
			return p, nil
		}
	}
	return nil, identity.ErrNotFound
}

// principalRecord is the on-disk shape. Principal excludes the password
// hash from JSON, so the record carries it explicitly.
type principalRecord struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username,omitempty"`
	PasswordHash string    `json:"password_hash,omitempty"`
	ExternalID   string    `json:"external_id,omitempty"`
	LegacyID     string    `json:"legacy_id,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newPrincipalRecord(p *identity.Principal) *principalRecord {
	return &principalRecord{
		ID:           p.ID,
		Email:        identity.NormalizeEmail(p.Email),
		Username:     p.Username,
		PasswordHash: p.PasswordHash,
		ExternalID:   p.ExternalID,
		LegacyID:     p.LegacyID,
		AvatarURL:    p.AvatarURL,
		Role:         string(p.Role),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func (r *principalRecord) toPrincipal() *identity.Principal {
	return &identity.Principal{
		ID:           r.ID,
		Email:        r.Email,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		ExternalID:   r.ExternalID,
		LegacyID:     r.LegacyID,
		AvatarURL:    r.AvatarURL,
		Role:         identity.Role(r.Role),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
