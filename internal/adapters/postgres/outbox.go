package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quorasec/iamcore/internal/ports"
)

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// ClaimUnpublished marks a batch of pending rows with the worker's claim
// token. Rows already claimed by a live worker are skipped; expired claims
// are re-claimable, which is what makes worker crashes recoverable.
func (r *OutboxRepository) ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	now := time.Now().UTC()
	var rows []outboxModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Raw(`
			SELECT * FROM audit_outbox
			WHERE published_at IS NULL
			  AND dead_lettered = FALSE
			  AND (claimed_until IS NULL OR claimed_until < ?)
			ORDER BY created_at ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED`, now, limit).Scan(&rows).Error; err != nil {
			return fmt.Errorf("select pending: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.OutboxID)
		}
		if err := tx.Model(&outboxModel{}).
			Where("outbox_id IN ?", ids).
			Updates(map[string]any{"claim_token": claimToken, "claimed_until": claimUntil}).Error; err != nil {
			return fmt.Errorf("claim rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim unpublished: %w", err)
	}

	out := make([]ports.OutboxRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, ports.OutboxRecord{
			OutboxID:     m.OutboxID,
			EventType:    m.EventType,
			PartitionKey: m.PartitionKey,
			Payload:      m.Payload,
			RetryCount:   m.RetryCount,
			LastError:    m.LastError,
			CreatedAt:    m.CreatedAt,
			PublishedAt:  m.PublishedAt,
			LastErrorAt:  m.LastErrorAt,
		})
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&outboxModel{}).
		Where("outbox_id = ? AND claim_token = ? AND published_at IS NULL", outboxID, claimToken).
		Updates(map[string]any{"published_at": at, "claim_token": nil, "claimed_until": nil})
	if res.Error != nil {
		return fmt.Errorf("mark published: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("mark published: claim lost for %s", outboxID)
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&outboxModel{}).
		Where("outbox_id = ? AND claim_token = ? AND published_at IS NULL", outboxID, claimToken).
		Updates(map[string]any{
			"retry_count":   gorm.Expr("retry_count + 1"),
			"last_error":    errMsg,
			"last_error_at": at,
			"claim_token":   nil,
			"claimed_until": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("mark failed: %w", res.Error)
	}
	return nil
}

func (r *OutboxRepository) MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&outboxModel{}).
		Where("outbox_id = ? AND claim_token = ? AND published_at IS NULL", outboxID, claimToken).
		Updates(map[string]any{
			"dead_lettered": true,
			"last_error":    errMsg,
			"last_error_at": at,
			"claim_token":   nil,
			"claimed_until": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("mark dead lettered: %w", res.Error)
	}
	return nil
}

var _ ports.OutboxRepository = (*OutboxRepository)(nil)
