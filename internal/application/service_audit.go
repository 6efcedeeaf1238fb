package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/quorasec/iamcore/internal/domain"
)

// QueryAuditEvents reads the trail. The trail itself is append-only; this is
// the only read surface and it requires the audit:read grant.
func (s *Service) QueryAuditEvents(ctx context.Context, rawToken string, q AuditQuery) ([]AuditEventItem, error) {
	if _, err := s.requireGrant(ctx, rawToken, "audit", "read"); err != nil {
		return nil, err
	}

	filter := domain.AuditFilter{
		From:       q.From,
		To:         q.To,
		Limit:      q.Limit,
		Offset:     q.Offset,
		Descending: !strings.EqualFold(q.Order, "asc"),
	}
	if q.PrincipalID != "" {
		id, err := uuid.Parse(q.PrincipalID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid principal_id", domain.ErrInvalidInput)
		}
		filter.PrincipalID = &id
	}
	for _, t := range q.Types {
		filter.Types = append(filter.Types, domain.AuditEventType(t))
	}
	if filter.Limit <= 0 {
		filter.Limit = domain.AuditDefaultPageSize
	}
	if filter.Limit > domain.AuditMaxPageSize {
		filter.Limit = domain.AuditMaxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, fmt.Errorf("%w: time range is inverted", domain.ErrInvalidInput)
	}

	events, err := s.audit.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}

	items := make([]AuditEventItem, 0, len(events))
	for _, ev := range events {
		items = append(items, AuditEventItem{
			EventID:     ev.EventID,
			OccurredAt:  ev.OccurredAt,
			PrincipalID: ev.PrincipalID,
			SessionID:   ev.SessionID,
			Type:        string(ev.Type),
			Resource:    ev.Resource,
			Action:      ev.Action,
			Result:      ev.Result,
			IPAddress:   ev.IPAddress,
			UserAgent:   ev.UserAgent,
			Detail:      ev.Detail,
			RiskScore:   ev.RiskScore,
		})
	}
	return items, nil
}
