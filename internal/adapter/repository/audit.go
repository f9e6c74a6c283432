package repository

import (
	"context"
	"time"

	"github.com/chiwei-platform/host-engine/internal/domain"
	"github.com/chiwei-platform/host-engine/internal/port"
	"gorm.io/gorm"
)

var _ port.AuditLog = (*AuditRepo)(nil)

// EventModel 是审计事件的数据库持久化模型。
type EventModel struct {
	ID        string `gorm:"primaryKey"`
	AppName   string `gorm:"index"`
	Type      string
	Message   string
	Version   string
	CreatedAt time.Time
}

func (EventModel) TableName() string { return "events" }

type AuditRepo struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Record(ctx context.Context, event *domain.Event) error {
	m := &EventModel{
		ID:        event.ID,
		AppName:   event.AppName,
		Type:      string(event.Type),
		Message:   event.Message,
		Version:   event.Version,
		CreatedAt: event.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *AuditRepo) FindByApp(ctx context.Context, appName string, limit int) ([]*domain.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []EventModel
	err := r.db.WithContext(ctx).
		Where("app_name = ?", appName).
		Order("created_at desc").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	events := make([]*domain.Event, 0, len(models))
	for i := range models {
		m := &models[i]
		events = append(events, &domain.Event{
			ID:        m.ID,
			AppName:   m.AppName,
			Type:      domain.EventType(m.Type),
			Message:   m.Message,
			Version:   m.Version,
			CreatedAt: m.CreatedAt,
		})
	}
	return events, nil
}
