package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"pos-backend/internal/models"

	"gorm.io/gorm"
)

// Entry is one audit record before it is persisted.
type Entry struct {
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

type Filter struct {
	EntityType string
	EntityID   uint
	UserID     uint
	Limit      int
}

type GormRecorder struct {
	db *gorm.DB
}

func NewGormRecorder(db *gorm.DB) *GormRecorder {
	return &GormRecorder{db: db}
}

func (r *GormRecorder) Record(ctx context.Context, e Entry) error {
	log := toModel(e)
	if err := r.db.WithContext(ctx).Create(&log).Error; err != nil {
		return fmt.Errorf("save audit log: %w", err)
	}
	return nil
}

func (r *GormRecorder) List(ctx context.Context, f Filter) ([]models.AuditLog, error) {
	q := r.db.WithContext(ctx).Model(&models.AuditLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID > 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.UserID > 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var logs []models.AuditLog
	if err := q.Order("created_at DESC, id DESC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}

func toModel(e Entry) models.AuditLog {
	return models.AuditLog{
		UserID:      e.UserID,
		UserName:    e.UserName,
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		Action:      e.Action,
		Description: e.Description,
		BeforeData:  jsonOrNull(e.Before),
		AfterData:   jsonOrNull(e.After),
	}
}

// jsonb columns reject the empty string, so absent data is stored as "null".
func jsonOrNull(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }
