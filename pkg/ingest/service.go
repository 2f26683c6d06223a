package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cohortica-ai/platform/pkg/common/kafka"
	"github.com/cohortica-ai/platform/pkg/common/logger"
	"github.com/cohortica-ai/platform/pkg/common/models"
	"github.com/cohortica-ai/platform/pkg/observability/metrics"
	"github.com/cohortica-ai/platform/pkg/store"
	"github.com/google/uuid"
)

type Service struct {
	validator *Validator
	events    *store.EventRepository
	producer  *kafka.Producer
}

func NewService(validator *Validator, events *store.EventRepository, producer *kafka.Producer) *Service {
	return &Service{validator: validator, events: events, producer: producer}
}

// Load validates and persists a batch of chart events, then announces it on
// the event bus.
func (s *Service) Load(ctx context.Context, req models.IngestEventRequest) (*models.IngestResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		metrics.ObserveLoaderCounts(0, 1)
		return nil, err
	}

	accepted, err := s.events.Insert(ctx, req.Events)
	if err != nil {
		return nil, fmt.Errorf("persisting chart events: %w", err)
	}
	metrics.ObserveLoaderCounts(accepted, 0)

	id := uuid.New().String()
	if s.producer != nil {
		payload := map[string]interface{}{
			"batch_id": id,
			"source":   req.Source,
			"accepted": accepted,
		}
		if err := s.producer.PublishEvent(ctx, "events-loaded", req.Source, payload); err != nil {
			logger.Log.WithError(err).Warn("failed to publish load event")
		}
	}

	return &models.IngestResponse{
		ID:        id,
		Accepted:  accepted,
		Status:    "loaded",
		Timestamp: time.Now().UTC(),
	}, nil
}

// HandleBusEvent consumes chart-event batches arriving via kafka instead of
// HTTP. The payload carries the same IngestEventRequest shape.
func (s *Service) HandleBusEvent(ctx context.Context, event models.RunEvent) error {
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	var req models.IngestEventRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		logger.Log.WithError(err).WithField("event_id", event.ID).Warn("unparseable chart-event payload")
		return nil // poison message, do not retry
	}
	if req.Source == "" {
		req.Source = event.Source
	}

	resp, err := s.Load(ctx, req)
	if err != nil {
		if IsValidationError(err) {
			logger.Log.WithError(err).WithField("event_id", event.ID).Warn("rejected chart-event batch")
			return nil
		}
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"event_id": event.ID,
		"batch_id": resp.ID,
		"accepted": resp.Accepted,
	}).Info("chart-event batch loaded from bus")
	return nil
}
