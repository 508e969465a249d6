package reminder

import (
	"context"
	"time"

	"github.com/MHassaanT/motomind-backend/internal/domain"
	"gorm.io/gorm"
)

// GormRecordSource reads and annotates service records in the database.
type GormRecordSource struct {
	db *gorm.DB
}

func NewGormRecordSource(db *gorm.DB) *GormRecordSource {
	return &GormRecordSource{db: db}
}

// DueToday returns finalized, not-yet-reminded records whose next service
// date falls on the given day.
func (s *GormRecordSource) DueToday(ctx context.Context, day time.Time) ([]domain.ServiceRecord, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	var records []domain.ServiceRecord
	err := s.db.WithContext(ctx).
		Where("status = ?", domain.RecordStatusFinalized).
		Where("reminded = ?", false).
		Where("next_service_date >= ? AND next_service_date < ?", dayStart, dayEnd).
		Order("workshop_id").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// MarkOutcome annotates the attempt outcome. Only a successful send marks
// the record reminded; a failed attempt stays due and keeps the reason.
func (s *GormRecordSource) MarkOutcome(ctx context.Context, recordID int64, sent bool, note string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"reminder_sent_at": now,
		"reminder_result":  note,
		"updated_at":       now,
	}
	if sent {
		updates["reminded"] = true
	}
	return s.db.WithContext(ctx).
		Model(&domain.ServiceRecord{}).
		Where("id = ?", recordID).
		Updates(updates).Error
}

// MarkBillOutcome annotates a bill send attempt on the record, success or
// failure, so every attempt leaves an audit trail.
func (s *GormRecordSource) MarkBillOutcome(ctx context.Context, recordID int64, sent bool, note string) error {
	now := time.Now()
	result := note
	if sent {
		result = "sent"
	}
	return s.db.WithContext(ctx).
		Model(&domain.ServiceRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"bill_sent_at": now,
			"bill_result":  result,
			"updated_at":   now,
		}).Error
}
