package database

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// EventService node event (audit) service
type EventService struct {
	db *gorm.DB
}

// NewEventService creates an event service on db
func NewEventService(db *gorm.DB) *EventService {
	return &EventService{db: db}
}

// CreateEvent stores an event. tx may be a transaction handle so the event
// commits or rolls back together with the change it describes.
func CreateEvent(ctx context.Context, tx *gorm.DB, event *NodeEvent) error {
	return tx.WithContext(ctx).Create(event).Error
}

// ListEvents returns the newest events first
func (s *EventService) ListEvents(ctx context.Context, action string, limit int) ([]NodeEvent, error) {
	if limit <= 0 {
		limit = 100
	} else if limit > 1000 {
		limit = 1000
	}
	query := s.db.WithContext(ctx).Model(&NodeEvent{})
	if action != "" {
		query = query.Where("action = ?", action)
	}

	var events []NodeEvent
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// CleanOldEvents removes events older than retentionDays, returns the number removed
func (s *EventService) CleanOldEvents(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&NodeEvent{})
	return res.RowsAffected, res.Error
}
