package extraction

import (
	"context"
	"errors"
	"time"

	"github.com/cohortica-ai/platform/pkg/common/kafka"
	"github.com/cohortica-ai/platform/pkg/common/logger"
	"github.com/cohortica-ai/platform/pkg/common/models"
	"github.com/cohortica-ai/platform/pkg/observability/metrics"
	"github.com/cohortica-ai/platform/pkg/store"
	"github.com/google/uuid"
)

const (
	runStatusQueued    = "queued"
	runStatusRunning   = "running"
	runStatusCompleted = "completed"
	runStatusFailed    = "failed"
)

// Materializer executes extraction runs asynchronously with a bounded worker
// pool, tracking each run as a status row.
type Materializer struct {
	repo     *store.RunRepository
	service  *Service
	producer *kafka.Producer
	workers  chan struct{}
}

func NewMaterializer(repo *store.RunRepository, svc *Service, producer *kafka.Producer, maxWorkers int) *Materializer {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Materializer{
		repo:     repo,
		service:  svc,
		producer: producer,
		workers:  make(chan struct{}, maxWorkers),
	}
}

// Enqueue validates the requested feature names, records the run and starts
// it in the background. An empty feature list means the full registry.
func (m *Materializer) Enqueue(ctx context.Context, features []string, requestedBy string) (models.ExtractionRun, error) {
	if len(features) == 0 {
		features = m.service.Registry().Names()
	}
	for _, name := range features {
		if _, ok := m.service.Registry().Get(name); !ok {
			return models.ExtractionRun{}, errors.New("unknown feature " + name)
		}
	}

	run := models.ExtractionRun{
		ID:          uuid.New(),
		Features:    features,
		Status:      runStatusQueued,
		RequestedBy: requestedBy,
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.repo.Create(ctx, &run); err != nil {
		return models.ExtractionRun{}, err
	}

	m.publish(ctx, runStatusQueued, run.ID, nil)
	go m.run(run.ID, features)

	return run, nil
}

func (m *Materializer) Get(ctx context.Context, id uuid.UUID) (*models.ExtractionRun, error) {
	return m.repo.Get(ctx, id)
}

func (m *Materializer) List(ctx context.Context, limit int) ([]models.ExtractionRun, error) {
	return m.repo.List(ctx, limit)
}

func (m *Materializer) run(runID uuid.UUID, features []string) {
	m.workers <- struct{}{}
	defer func() { <-m.workers }()

	ctx := context.Background()
	started := time.Now().UTC()
	_ = m.repo.Update(ctx, runID, map[string]interface{}{
		"status":     runStatusRunning,
		"started_at": started,
	})
	m.publish(ctx, runStatusRunning, runID, nil)

	reports, err := m.service.RunFeatures(ctx, features)
	if len(reports) > 0 {
		_ = m.repo.SetReports(ctx, runID, reports)
	}
	if err != nil {
		m.fail(ctx, runID, err)
		return
	}

	completed := time.Now().UTC()
	_ = m.repo.Update(ctx, runID, map[string]interface{}{
		"status":        runStatusCompleted,
		"completed_at":  completed,
		"error_message": "",
	})
	m.publish(ctx, runStatusCompleted, runID, map[string]interface{}{
		"features": len(features),
	})
	metrics.ObserveRunOutcome(true, len(features))
}

func (m *Materializer) fail(ctx context.Context, runID uuid.UUID, err error) {
	logger.Log.WithError(err).Error("extraction run failed")
	completed := time.Now().UTC()
	_ = m.repo.Update(ctx, runID, map[string]interface{}{
		"status":        runStatusFailed,
		"error_message": err.Error(),
		"completed_at":  completed,
	})
	m.publish(ctx, runStatusFailed, runID, map[string]interface{}{
		"error": err.Error(),
	})
	metrics.ObserveRunOutcome(false, 0)
}

func (m *Materializer) publish(ctx context.Context, status string, runID uuid.UUID, extra map[string]interface{}) {
	if m.producer == nil {
		return
	}
	data := map[string]interface{}{"run_id": runID.String()}
	for k, v := range extra {
		data[k] = v
	}
	if err := m.producer.PublishEvent(ctx, status, "extraction-service", data); err != nil {
		logger.Log.WithError(err).Warn("failed to publish run event")
	}
}
