package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quorasec/iamcore/internal/domain"
	"github.com/quorasec/iamcore/internal/ports"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func sessionToDomain(m sessionModel) domain.Session {
	return domain.Session{
		SessionID:      m.SessionID,
		PrincipalID:    m.PrincipalID,
		IPAddress:      m.IPAddress,
		UserAgent:      m.UserAgent,
		DeviceID:       m.DeviceID,
		MFAVerified:    m.MFAVerified,
		RiskScore:      m.RiskScore,
		CreatedAt:      m.CreatedAt,
		LastActivityAt: m.LastActivityAt,
		ExpiresAt:      m.ExpiresAt,
		RevokedAt:      m.RevokedAt,
	}
}

// CreateWithCap inserts a session while holding the principal row lock, so
// two concurrent logins for the same principal serialize and the concurrency
// cap holds exactly. When the cap is reached, the oldest sessions by last
// activity (session id as tiebreak) are revoked and returned.
func (r *SessionRepository) CreateWithCap(ctx context.Context, params ports.SessionCreateParams, maxConcurrent int) (domain.Session, []domain.Session, error) {
	now := params.LastActivityAt
	created := sessionModel{
		SessionID:      uuid.New(),
		PrincipalID:    params.PrincipalID,
		IPAddress:      params.IPAddress,
		UserAgent:      params.UserAgent,
		DeviceID:       params.DeviceID,
		MFAVerified:    params.MFAVerified,
		RiskScore:      params.RiskScore,
		CreatedAt:      now,
		LastActivityAt: params.LastActivityAt,
		ExpiresAt:      params.ExpiresAt,
	}

	var evicted []domain.Session
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lock principalModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("principal_id = ?", params.PrincipalID).
			First(&lock).Error; err != nil {
			return fmt.Errorf("lock principal: %w", notFound(err))
		}

		var live []sessionModel
		if err := tx.Where("principal_id = ? AND revoked_at IS NULL AND expires_at > ?", params.PrincipalID, now).
			Order("last_activity_at ASC, session_id ASC").
			Find(&live).Error; err != nil {
			return fmt.Errorf("list live sessions: %w", err)
		}

		if maxConcurrent > 0 && len(live) >= maxConcurrent {
			overflow := len(live) - maxConcurrent + 1
			for _, victim := range live[:overflow] {
				if err := tx.Model(&sessionModel{}).
					Where("session_id = ? AND revoked_at IS NULL", victim.SessionID).
					Update("revoked_at", now).Error; err != nil {
					return fmt.Errorf("evict session: %w", err)
				}
				victim.RevokedAt = &now
				evicted = append(evicted, sessionToDomain(victim))
			}
		}

		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Session{}, nil, err
	}
	return sessionToDomain(created), evicted, nil
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID uuid.UUID) (domain.Session, error) {
	var m sessionModel
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&m).Error; err != nil {
		return domain.Session{}, fmt.Errorf("session by id: %w", notFound(err))
	}
	return sessionToDomain(m), nil
}

func (r *SessionRepository) ListActiveByPrincipal(ctx context.Context, principalID uuid.UUID, now time.Time) ([]domain.Session, error) {
	var rows []sessionModel
	err := r.db.WithContext(ctx).
		Where("principal_id = ? AND revoked_at IS NULL AND expires_at > ?", principalID, now).
		Order("last_activity_at ASC, session_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	out := make([]domain.Session, 0, len(rows))
	for _, m := range rows {
		out = append(out, sessionToDomain(m))
	}
	return out, nil
}

func (r *SessionRepository) TouchActivity(ctx context.Context, sessionID uuid.UUID, touchedAt time.Time) error {
	err := r.db.WithContext(ctx).Model(&sessionModel{}).
		Where("session_id = ? AND revoked_at IS NULL", sessionID).
		Update("last_activity_at", touchedAt).Error
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (r *SessionRepository) ExtendExpiry(ctx context.Context, sessionID uuid.UUID, expiresAt, touchedAt time.Time) error {
	err := r.db.WithContext(ctx).Model(&sessionModel{}).
		Where("session_id = ? AND revoked_at IS NULL", sessionID).
		Updates(map[string]any{"expires_at": expiresAt, "last_activity_at": touchedAt}).Error
	if err != nil {
		return fmt.Errorf("extend session: %w", err)
	}
	return nil
}

func (r *SessionRepository) RevokeByID(ctx context.Context, sessionID uuid.UUID, revokedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&sessionModel{}).
		Where("session_id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", revokedAt)
	if res.Error != nil {
		return fmt.Errorf("revoke session: %w", res.Error)
	}
	return nil
}

func (r *SessionRepository) RevokeAllByPrincipal(ctx context.Context, principalID uuid.UUID, revokedAt time.Time) error {
	err := r.db.WithContext(ctx).Model(&sessionModel{}).
		Where("principal_id = ? AND revoked_at IS NULL", principalID).
		Update("revoked_at", revokedAt).Error
	if err != nil {
		return fmt.Errorf("revoke principal sessions: %w", err)
	}
	return nil
}

var _ ports.SessionRepository = (*SessionRepository)(nil)
