package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cohortica-ai/platform/pkg/common/models"
	"gorm.io/gorm"
)

// ResultRepository materializes one persisted table per feature, keyed by
// stay id.
type ResultRepository struct {
	db *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// TableName maps a feature name onto its materialized table.
func TableName(feature string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, feature)
	return "feature_" + sanitized
}

// Replace rewrites the feature's table with the full left-extended result
// set: one row per stay, NULL measurement columns for absent results.
func (r *ResultRepository) Replace(ctx context.Context, feature string, results []models.FeatureResult) error {
	table := TableName(feature)
	if err := r.db.WithContext(ctx).Table(table).AutoMigrate(&featureRow{}); err != nil {
		return fmt.Errorf("migrating %s: %w", table, err)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(table).Where("1 = 1").Delete(&featureRow{}).Error; err != nil {
			return err
		}
		rows := make([]featureRow, 0, len(results))
		for _, res := range results {
			row := featureRow{
				StayID:     res.StayID,
				Value:      res.Value,
				ObservedAt: res.ObservedAt,
				SourceTag:  res.SourceTag,
			}
			if res.Offset != nil {
				seconds := res.Offset.Seconds()
				row.OffsetSeconds = &seconds
			}
			rows = append(rows, row)
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Table(table).CreateInBatches(&rows, 1000).Error
	})
}

// Load reads a feature table back as domain results.
func (r *ResultRepository) Load(ctx context.Context, feature string) ([]models.FeatureResult, error) {
	table := TableName(feature)
	var rows []featureRow
	if err := r.db.WithContext(ctx).Table(table).Order("stay_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	results := make([]models.FeatureResult, 0, len(rows))
	for _, row := range rows {
		res := models.FeatureResult{
			StayID:     row.StayID,
			Feature:    feature,
			Value:      row.Value,
			ObservedAt: row.ObservedAt,
			SourceTag:  row.SourceTag,
		}
		if row.OffsetSeconds != nil {
			offset := secondsToDuration(*row.OffsetSeconds)
			res.Offset = &offset
		}
		results = append(results, res)
	}
	return results, nil
}

// LoadStay reads one stay's row from a feature table.
func (r *ResultRepository) LoadStay(ctx context.Context, feature string, stayID int64) (*models.FeatureResult, error) {
	table := TableName(feature)
	var row featureRow
	result := r.db.WithContext(ctx).Table(table).First(&row, "stay_id = ?", stayID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	res := models.FeatureResult{
		StayID:     row.StayID,
		Feature:    feature,
		Value:      row.Value,
		ObservedAt: row.ObservedAt,
		SourceTag:  row.SourceTag,
	}
	if row.OffsetSeconds != nil {
		offset := secondsToDuration(*row.OffsetSeconds)
		res.Offset = &offset
	}
	return &res, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
