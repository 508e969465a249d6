package whatsapp

import (
	"context"

	"github.com/MHassaanT/motomind-backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStatusStore writes the status projection to the wa_session table.
type GormStatusStore struct {
	db *gorm.DB
}

func NewGormStatusStore(db *gorm.DB) *GormStatusStore {
	return &GormStatusStore{db: db}
}

func (s *GormStatusStore) Upsert(ctx context.Context, status Status) error {
	row := domain.WaSession{
		WorkshopID:     status.WorkshopID,
		Status:         status.State,
		PairingImage:   status.PairingImage,
		PairedIdentity: status.PairedIdentity,
		UpdatedAt:      status.UpdatedAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "workshop_id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
}

func (s *GormStatusStore) Delete(ctx context.Context, workshopID int64) error {
	return s.db.WithContext(ctx).
		Where("workshop_id = ?", workshopID).
		Delete(&domain.WaSession{}).Error
}
