package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quorasec/iamcore/internal/domain"
	"github.com/quorasec/iamcore/internal/ports"
)

type MFARepository struct {
	db *gorm.DB
}

func NewMFARepository(db *gorm.DB) *MFARepository {
	return &MFARepository{db: db}
}

func (r *MFARepository) ListEnabledMethods(ctx context.Context, principalID uuid.UUID) ([]domain.MFAMethod, error) {
	var rows []mfaMethodModel
	err := r.db.WithContext(ctx).
		Where("principal_id = ? AND enabled = TRUE", principalID).
		Order("priority ASC, method_type ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list mfa methods: %w", err)
	}
	out := make([]domain.MFAMethod, 0, len(rows))
	for _, m := range rows {
		out = append(out, domain.MFAMethod{
			MethodID:        m.MethodID,
			PrincipalID:     m.PrincipalID,
			Type:            domain.MFAMethodType(m.MethodType),
			Enabled:         m.Enabled,
			Priority:        m.Priority,
			Destination:     m.Destination,
			RegistrationRef: m.RegistrationRef,
			CreatedAt:       m.CreatedAt,
			UpdatedAt:       m.UpdatedAt,
		})
	}
	return out, nil
}

func (r *MFARepository) UpsertMethod(ctx context.Context, method domain.MFAMethod) error {
	err := r.db.WithContext(ctx).Exec(`
		INSERT INTO mfa_methods (method_id, principal_id, method_type, enabled, priority, destination, registration_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, now(), now())
		ON CONFLICT (principal_id, method_type) DO UPDATE
		SET enabled = EXCLUDED.enabled,
		    priority = EXCLUDED.priority,
		    destination = EXCLUDED.destination,
		    registration_ref = EXCLUDED.registration_ref,
		    updated_at = now()`,
		method.MethodID, method.PrincipalID, string(method.Type),
		method.Enabled, method.Priority, method.Destination, method.RegistrationRef).Error
	if err != nil {
		return fmt.Errorf("upsert mfa method: %w", err)
	}
	return nil
}

func (r *MFARepository) GetTOTPSecret(ctx context.Context, principalID uuid.UUID) (string, error) {
	var m totpSecretModel
	if err := r.db.WithContext(ctx).Where("principal_id = ?", principalID).First(&m).Error; err != nil {
		return "", fmt.Errorf("totp secret: %w", notFound(err))
	}
	return m.Secret, nil
}

func (r *MFARepository) UpsertTOTPSecret(ctx context.Context, principalID uuid.UUID, secret string, updatedAt time.Time) error {
	err := r.db.WithContext(ctx).Exec(`
		INSERT INTO totp_secrets (principal_id, secret, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (principal_id) DO UPDATE
		SET secret = EXCLUDED.secret, updated_at = EXCLUDED.updated_at`,
		principalID, secret, updatedAt).Error
	if err != nil {
		return fmt.Errorf("upsert totp secret: %w", err)
	}
	return nil
}

// ReplaceBackupCodes swaps the full code set; re-enrollment invalidates any
// unused codes from the previous set.
func (r *MFARepository) ReplaceBackupCodes(ctx context.Context, principalID uuid.UUID, codeHashes []string, createdAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("principal_id = ?", principalID).Delete(&backupCodeModel{}).Error; err != nil {
			return fmt.Errorf("clear backup codes: %w", err)
		}
		for _, hash := range codeHashes {
			row := backupCodeModel{
				CodeID:      uuid.New(),
				PrincipalID: principalID,
				CodeHash:    hash,
				CreatedAt:   createdAt,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("insert backup code: %w", err)
			}
		}
		return nil
	})
}

// ConsumeBackupCode marks a matching unused code as spent. The conditional
// update makes consumption atomic: two racing attempts with the same code
// see exactly one success.
func (r *MFARepository) ConsumeBackupCode(ctx context.Context, principalID uuid.UUID, codeHash string, usedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE backup_codes SET used_at = ?
		WHERE code_id = (
			SELECT code_id FROM backup_codes
			WHERE principal_id = ? AND code_hash = ? AND used_at IS NULL
			LIMIT 1
		)`, usedAt, principalID, codeHash)
	if res.Error != nil {
		return false, fmt.Errorf("consume backup code: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

var _ ports.MFARepository = (*MFARepository)(nil)
