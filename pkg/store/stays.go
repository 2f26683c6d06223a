package store

import (
	"context"
	"errors"

	"github.com/cohortica-ai/platform/pkg/common/models"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

type StayRepository struct {
	db *gorm.DB
}

func NewStayRepository(db *gorm.DB) *StayRepository {
	return &StayRepository{db: db}
}

func (r *StayRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&stayModel{})
}

func (r *StayRepository) Upsert(ctx context.Context, stays []models.Stay) error {
	if len(stays) == 0 {
		return nil
	}
	rows := make([]stayModel, 0, len(stays))
	for _, s := range stays {
		rows = append(rows, stayModel{
			StayID:      s.StayID,
			AdmissionID: s.AdmissionID,
			SubjectID:   s.SubjectID,
			InTime:      s.InTime,
			OutTime:     s.OutTime,
			Age:         s.Age,
			Gender:      s.Gender,
		})
	}
	return r.db.WithContext(ctx).Save(&rows).Error
}

// List returns every stay, ordered by subject then in-time so the window
// estimator and readmission flags see adjacent admissions adjacently.
func (r *StayRepository) List(ctx context.Context) ([]models.Stay, error) {
	var rows []stayModel
	err := r.db.WithContext(ctx).
		Order("subject_id ASC, in_time ASC, stay_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	stays := make([]models.Stay, 0, len(rows))
	for _, row := range rows {
		stays = append(stays, stayToDomain(row))
	}
	return stays, nil
}

func (r *StayRepository) Get(ctx context.Context, stayID int64) (*models.Stay, error) {
	var row stayModel
	result := r.db.WithContext(ctx).First(&row, "stay_id = ?", stayID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	stay := stayToDomain(row)
	return &stay, nil
}

func stayToDomain(row stayModel) models.Stay {
	return models.Stay{
		StayID:      row.StayID,
		AdmissionID: row.AdmissionID,
		SubjectID:   row.SubjectID,
		InTime:      row.InTime,
		OutTime:     row.OutTime,
		Age:         row.Age,
		Gender:      row.Gender,
	}
}
