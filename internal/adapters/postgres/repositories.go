package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quorasec/iamcore/internal/domain"
	"github.com/quorasec/iamcore/internal/ports"
)

// notFound translates GORM's sentinel to the domain's.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

type PrincipalRepository struct {
	db *gorm.DB
}

func NewPrincipalRepository(db *gorm.DB) *PrincipalRepository {
	return &PrincipalRepository{db: db}
}

func principalToDomain(m principalModel) domain.Principal {
	return domain.Principal{
		PrincipalID:   m.PrincipalID,
		Username:      m.Username,
		DisplayName:   m.DisplayName,
		Email:         m.Email,
		Status:        domain.AccountStatus(m.Status),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		DeactivatedAt: m.DeactivatedAt,
	}
}

func (r *PrincipalRepository) GetByUsername(ctx context.Context, username string) (domain.Principal, error) {
	var m principalModel
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&m).Error; err != nil {
		return domain.Principal{}, fmt.Errorf("principal by username: %w", notFound(err))
	}
	return principalToDomain(m), nil
}

func (r *PrincipalRepository) GetByID(ctx context.Context, principalID uuid.UUID) (domain.Principal, error) {
	var m principalModel
	if err := r.db.WithContext(ctx).Where("principal_id = ?", principalID).First(&m).Error; err != nil {
		return domain.Principal{}, fmt.Errorf("principal by id: %w", notFound(err))
	}
	return principalToDomain(m), nil
}

func (r *PrincipalRepository) SetStatus(ctx context.Context, principalID uuid.UUID, status domain.AccountStatus, updatedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&principalModel{}).
		Where("principal_id = ?", principalID).
		Updates(map[string]any{"status": string(status), "updated_at": updatedAt})
	if res.Error != nil {
		return fmt.Errorf("set principal status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PrincipalRepository) Deactivate(ctx context.Context, principalID uuid.UUID, deactivatedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&principalModel{}).
		Where("principal_id = ?", principalID).
		Updates(map[string]any{
			"status":         string(domain.StatusSuspended),
			"deactivated_at": deactivatedAt,
			"updated_at":     deactivatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("deactivate principal: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ ports.PrincipalRepository = (*PrincipalRepository)(nil)

type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) GetByPrincipal(ctx context.Context, principalID uuid.UUID) (domain.Credential, error) {
	var m credentialModel
	if err := r.db.WithContext(ctx).Where("principal_id = ?", principalID).First(&m).Error; err != nil {
		return domain.Credential{}, fmt.Errorf("credential by principal: %w", notFound(err))
	}
	return domain.Credential{
		PrincipalID:   m.PrincipalID,
		PasswordHash:  m.PasswordHash,
		HashAlgorithm: m.HashAlgorithm,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}

func (r *CredentialRepository) Replace(ctx context.Context, cred domain.Credential) error {
	m := credentialModel{
		PrincipalID:   cred.PrincipalID,
		PasswordHash:  cred.PasswordHash,
		HashAlgorithm: cred.HashAlgorithm,
		UpdatedAt:     cred.UpdatedAt,
	}
	err := r.db.WithContext(ctx).
		Exec(`INSERT INTO credentials (principal_id, password_hash, hash_algorithm, updated_at)
		      VALUES (?, ?, ?, ?)
		      ON CONFLICT (principal_id) DO UPDATE
		      SET password_hash = EXCLUDED.password_hash,
		          hash_algorithm = EXCLUDED.hash_algorithm,
		          updated_at = EXCLUDED.updated_at`,
			m.PrincipalID, m.PasswordHash, m.HashAlgorithm, m.UpdatedAt).Error
	if err != nil {
		return fmt.Errorf("replace credential: %w", err)
	}
	return nil
}

var _ ports.CredentialRepository = (*CredentialRepository)(nil)
