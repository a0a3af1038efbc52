package gorm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/reelstash/identity"
)

// AutoMigrate runs database migrations for all identity tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&PrincipalModel{},
		&LinkModel{},
	)
}

// PrincipalStore implements identity.CredentialStore using GORM.
// Uniqueness of email, username, external id and legacy id is enforced
// by the database indexes; violations come back as identity.ErrConflict.
type PrincipalStore struct {
	db *gorm.DB
}

func NewPrincipalStore(db *gorm.DB) *PrincipalStore {
	return &PrincipalStore{db: db}
}

func (s *PrincipalStore) FindByID(ctx context.Context, id string) (*identity.Principal, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *PrincipalStore) FindByEmail(ctx context.Context, email string) (*identity.Principal, error) {
	return s.first(ctx, "email = ?", identity.NormalizeEmail(email))
}

func (s *PrincipalStore) FindByExternalID(ctx context.Context, externalID string) (*identity.Principal, error) {
	if externalID == "" {
		return nil, identity.ErrNotFound
	}
	return s.first(ctx, "external_id = ?", externalID)
}

func (s *PrincipalStore) FindByLegacyID(ctx context.Context, legacyID string) (*identity.Principal, error) {
	if legacyID == "" {
		return nil, identity.ErrNotFound
	}
	return s.first(ctx, "legacy_id = ?", legacyID)
}

func (s *PrincipalStore) first(ctx context.Context, query string, arg any) (*identity.Principal, error) {
	var model PrincipalModel
	err := s.db.WithContext(ctx).First(&model, query, arg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrNotFound
		}
		return nil, err
	}
	return model.ToPrincipal(), nil
}

func (s *PrincipalStore) Create(ctx context.Context, p *identity.Principal) error {
	model := PrincipalToModel(p)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err)
	}
	p.CreatedAt = model.CreatedAt
	p.UpdatedAt = model.UpdatedAt
	return nil
}

func (s *PrincipalStore) Save(ctx context.Context, p *identity.Principal) error {
	model := PrincipalToModel(p)
	model.UpdatedAt = time.Now()
	res := s.db.WithContext(ctx).Model(&PrincipalModel{}).Where("id = ?", p.ID).Updates(model)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: principal %s", identity.ErrNotFound, p.ID)
	}
	p.UpdatedAt = model.UpdatedAt
	return nil
}

// translateError maps driver-level uniqueness violations onto the
// identity error taxonomy. The sqlite driver does not implement GORM's
// error translation, so the message check stays as a fallback.
func translateError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint") ||
		strings.Contains(err.Error(), "duplicate key") {
		return &identity.ConflictError{Field: conflictField(err.Error())}
	}
	return err
}

// conflictField recovers the violating column from the driver message.
// Message wording differs per driver; an unrecognized one maps to the
// empty field, which still satisfies errors.Is(err, ErrConflict).
func conflictField(msg string) string {
	for _, field := range []string{"external_id", "legacy_id", "username", "email"} {
		if strings.Contains(msg, field) {
			return field
		}
	}
	return ""
}

// LinkStore implements identity.LinkRewriter over the links table.
type LinkStore struct {
	db *gorm.DB
}

func NewLinkStore(db *gorm.DB) *LinkStore {
	return &LinkStore{db: db}
}

func (s *LinkStore) SaveLink(ctx context.Context, link *LinkModel) error {
	return s.db.WithContext(ctx).Save(link).Error
}

// RewriteOwner replaces every link owner equal to oldOwner with newOwner
// in a single update and returns the number of rows touched.
func (s *LinkStore) RewriteOwner(ctx context.Context, oldOwner, newOwner string) (int, error) {
	res := s.db.WithContext(ctx).Model(&LinkModel{}).
		Where("owner = ?", oldOwner).
		Update("owner", newOwner)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// LinksByOwner returns the links owned by owner, for tests and tooling.
func (s *LinkStore) LinksByOwner(ctx context.Context, owner string) ([]*LinkModel, error) {
	var models []*LinkModel
	if err := s.db.WithContext(ctx).Where("owner = ?", owner).Find(&models).Error; err != nil {
		return nil, err
	}
	return models, nil
}
