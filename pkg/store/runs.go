package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cohortica-ai/platform/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&runModel{})
}

func (r *RunRepository) Create(ctx context.Context, run *models.ExtractionRun) error {
	featuresJSON, _ := json.Marshal(run.Features)
	row := runModel{
		ID:          run.ID,
		Features:    datatypes.JSON(featuresJSON),
		Status:      run.Status,
		RequestedBy: run.RequestedBy,
		CreatedAt:   run.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *RunRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&runModel{}).Where("id = ?", id).Updates(updates).Error
}

func (r *RunRepository) SetReports(ctx context.Context, id uuid.UUID, reports []models.QualityReport) error {
	reportsJSON, err := json.Marshal(reports)
	if err != nil {
		return err
	}
	return r.Update(ctx, id, map[string]interface{}{
		"reports": datatypes.JSON(reportsJSON),
	})
}

func (r *RunRepository) Get(ctx context.Context, id uuid.UUID) (*models.ExtractionRun, error) {
	var row runModel
	result := r.db.WithContext(ctx).First(&row, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	run := runToDomain(&row)
	return &run, nil
}

func (r *RunRepository) List(ctx context.Context, limit int) ([]models.ExtractionRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []runModel
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	runs := make([]models.ExtractionRun, 0, len(rows))
	for i := range rows {
		runs = append(runs, runToDomain(&rows[i]))
	}
	return runs, nil
}

func runToDomain(row *runModel) models.ExtractionRun {
	var features []string
	if len(row.Features) > 0 {
		_ = json.Unmarshal(row.Features, &features)
	}
	var reports []models.QualityReport
	if len(row.Reports) > 0 {
		_ = json.Unmarshal(row.Reports, &reports)
	}
	return models.ExtractionRun{
		ID:           row.ID,
		Features:     features,
		Status:       row.Status,
		Reports:      reports,
		ErrorMessage: row.ErrorMessage,
		RequestedBy:  row.RequestedBy,
		CreatedAt:    row.CreatedAt,
		StartedAt:    row.StartedAt,
		CompletedAt:  row.CompletedAt,
	}
}
