package store

import (
	"context"

	"github.com/cohortica-ai/platform/pkg/common/models"
	"gorm.io/gorm"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&chartEventModel{})
}

func (r *EventRepository) Insert(ctx context.Context, events []models.ChartEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	rows := make([]chartEventModel, 0, len(events))
	for _, ev := range events {
		rows = append(rows, chartEventModel{
			StayID:    ev.StayID,
			SubjectID: ev.SubjectID,
			SourceTag: ev.SourceTag,
			ChartedAt: ev.ChartedAt,
			Value:     ev.Value,
			IsError:   ev.IsError,
		})
	}
	if err := r.db.WithContext(ctx).CreateInBatches(&rows, 1000).Error; err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ListBySourceTags scans the candidate events for one extractor invocation.
// The id ordering fixes the insertion-order tie-break across runs.
func (r *EventRepository) ListBySourceTags(ctx context.Context, tags []string) ([]models.ChartEvent, error) {
	var rows []chartEventModel
	err := r.db.WithContext(ctx).
		Where("source_tag IN ?", tags).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return eventsToDomain(rows), nil
}

// ListBySubjects returns the proxy-signal events used by the monitoring
// window estimator, keyed by subject rather than stay.
func (r *EventRepository) ListBySubjects(ctx context.Context, tag string) ([]models.ChartEvent, error) {
	var rows []chartEventModel
	err := r.db.WithContext(ctx).
		Where("source_tag = ? AND is_error = ?", tag, false).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return eventsToDomain(rows), nil
}

func eventsToDomain(rows []chartEventModel) []models.ChartEvent {
	events := make([]models.ChartEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, models.ChartEvent{
			ID:        row.ID,
			StayID:    row.StayID,
			SubjectID: row.SubjectID,
			SourceTag: row.SourceTag,
			ChartedAt: row.ChartedAt,
			Value:     row.Value,
			IsError:   row.IsError,
		})
	}
	return events
}
