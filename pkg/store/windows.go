package store

import (
	"context"

	"github.com/cohortica-ai/platform/pkg/common/models"
	"gorm.io/gorm"
)

type WindowRepository struct {
	db *gorm.DB
}

func NewWindowRepository(db *gorm.DB) *WindowRepository {
	return &WindowRepository{db: db}
}

func (r *WindowRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&monitoringWindowModel{})
}

// Replace rewrites the monitoring window table for the whole cohort. Every
// stay keeps a row; stays without monitoring data carry NULL bounds.
func (r *WindowRepository) Replace(ctx context.Context, windows []models.MonitoringWindow) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&monitoringWindowModel{}).Error; err != nil {
			return err
		}
		if len(windows) == 0 {
			return nil
		}
		rows := make([]monitoringWindowModel, 0, len(windows))
		for _, w := range windows {
			rows = append(rows, monitoringWindowModel{
				StayID: w.StayID,
				Start:  w.Start,
				End:    w.End,
			})
		}
		return tx.CreateInBatches(&rows, 1000).Error
	})
}

func (r *WindowRepository) Load(ctx context.Context) (map[int64]models.MonitoringWindow, error) {
	var rows []monitoringWindowModel
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	windows := make(map[int64]models.MonitoringWindow, len(rows))
	for _, row := range rows {
		windows[row.StayID] = models.MonitoringWindow{
			StayID: row.StayID,
			Start:  row.Start,
			End:    row.End,
		}
	}
	return windows, nil
}
