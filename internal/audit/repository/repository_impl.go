package repository

import (
	"context"
	"strings"

	"github.com/bidworks/clearhouse/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.AuditEvent) error {
	if event == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO audit_events (
			id, actor_type, actor_id, subject_type, subject_id, event_type,
			purpose, ip_address, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.ActorType,
		event.ActorID,
		event.SubjectType,
		event.SubjectID,
		event.EventType,
		event.Purpose,
		event.IPAddress,
		event.Metadata,
		event.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditEvent, error) {
	var events []*domain.AuditEvent
	stmt := db.WithContext(ctx).Model(&domain.AuditEvent{}).
		Where("subject_type = ? AND subject_id = ?", filter.SubjectType, filter.SubjectID)

	if eventType := strings.TrimSpace(filter.EventType); eventType != "" {
		stmt = stmt.Where("event_type = ?", eventType)
	}
	if filter.StartAt != nil {
		stmt = stmt.Where("created_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		stmt = stmt.Where("created_at <= ?", filter.EndAt.UTC())
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at > ?) OR (created_at = ? AND id > ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at asc, id asc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
