package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/quorasec/iamcore/internal/domain"
	"github.com/quorasec/iamcore/internal/ports"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert writes the event and its outbox mirror in one transaction. The
// outbox payload is the full event JSON so the worker publishes without a
// second read.
func (r *AuditRepository) Insert(ctx context.Context, event domain.AuditEvent) error {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return fmt.Errorf("%w: encode detail: %v", domain.ErrAuditWriteFailed, err)
	}
	row := auditEventModel{
		EventID:     event.EventID,
		OccurredAt:  event.OccurredAt,
		PrincipalID: event.PrincipalID,
		SessionID:   event.SessionID,
		EventType:   string(event.Type),
		Resource:    event.Resource,
		Action:      event.Action,
		Result:      event.Result,
		IPAddress:   event.IPAddress,
		UserAgent:   event.UserAgent,
		Detail:      detail,
		RiskScore:   event.RiskScore,
	}

	payload, err := json.Marshal(auditPayload(event))
	if err != nil {
		return fmt.Errorf("%w: encode payload: %v", domain.ErrAuditWriteFailed, err)
	}
	partitionKey := ""
	if event.PrincipalID != nil {
		partitionKey = event.PrincipalID.String()
	}
	outbox := outboxModel{
		OutboxID:     event.EventID,
		EventType:    string(event.Type),
		PartitionKey: partitionKey,
		Payload:      payload,
		CreatedAt:    event.OccurredAt,
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}
		if err := tx.Create(&outbox).Error; err != nil {
			return fmt.Errorf("insert outbox row: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuditWriteFailed, err)
	}
	return nil
}

// auditPayload is the published wire shape; field names are part of the
// iam.audit topic contract.
func auditPayload(event domain.AuditEvent) map[string]any {
	payload := map[string]any{
		"event_id":    event.EventID.String(),
		"occurred_at": event.OccurredAt,
		"event_type":  string(event.Type),
		"result":      event.Result,
		"risk_score":  event.RiskScore,
	}
	if event.PrincipalID != nil {
		payload["principal_id"] = event.PrincipalID.String()
	}
	if event.SessionID != nil {
		payload["session_id"] = event.SessionID.String()
	}
	if event.Resource != "" {
		payload["resource"] = event.Resource
	}
	if event.Action != "" {
		payload["action"] = event.Action
	}
	if event.IPAddress != "" {
		payload["ip_address"] = event.IPAddress
	}
	if len(event.Detail) > 0 {
		payload["detail"] = event.Detail
	}
	return payload
}

func (r *AuditRepository) Query(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error) {
	q := r.db.WithContext(ctx).Model(&auditEventModel{})
	if filter.PrincipalID != nil {
		q = q.Where("principal_id = ?", *filter.PrincipalID)
	}
	if len(filter.Types) > 0 {
		types := make([]string, 0, len(filter.Types))
		for _, t := range filter.Types {
			types = append(types, string(t))
		}
		q = q.Where("event_type IN ?", types)
	}
	if filter.From != nil {
		q = q.Where("occurred_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("occurred_at <= ?", *filter.To)
	}

	order := "occurred_at ASC, event_id ASC"
	if filter.Descending {
		order = "occurred_at DESC, event_id DESC"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = domain.AuditDefaultPageSize
	}
	if limit > domain.AuditMaxPageSize {
		limit = domain.AuditMaxPageSize
	}

	var rows []auditEventModel
	if err := q.Order(order).Limit(limit).Offset(filter.Offset).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}

	out := make([]domain.AuditEvent, 0, len(rows))
	for _, m := range rows {
		ev := domain.AuditEvent{
			EventID:     m.EventID,
			OccurredAt:  m.OccurredAt,
			PrincipalID: m.PrincipalID,
			SessionID:   m.SessionID,
			Type:        domain.AuditEventType(m.EventType),
			Resource:    m.Resource,
			Action:      m.Action,
			Result:      m.Result,
			IPAddress:   m.IPAddress,
			UserAgent:   m.UserAgent,
			RiskScore:   m.RiskScore,
		}
		if len(m.Detail) > 0 {
			if err := json.Unmarshal(m.Detail, &ev.Detail); err != nil {
				return nil, fmt.Errorf("decode audit detail: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, nil
}

var _ ports.AuditRepository = (*AuditRepository)(nil)
