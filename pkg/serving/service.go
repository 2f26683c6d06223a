// Package serving exposes composed per-stay feature sets with a redis
// read-through cache over the materialized postgres tables.
package serving

import (
	"context"
	"errors"

	"github.com/cohortica-ai/platform/pkg/common/logger"
	"github.com/cohortica-ai/platform/pkg/common/models"
	"github.com/cohortica-ai/platform/pkg/featurestore"
	"github.com/cohortica-ai/platform/pkg/registry"
	"github.com/cohortica-ai/platform/pkg/store"
)

var ErrStayNotFound = errors.New("stay not found")

type Service struct {
	stays    *store.StayRepository
	results  *store.ResultRepository
	cache    *featurestore.Store
	registry *registry.Registry
}

func NewService(stays *store.StayRepository, results *store.ResultRepository, cache *featurestore.Store, reg *registry.Registry) *Service {
	return &Service{stays: stays, results: results, cache: cache, registry: reg}
}

// GetFeatureSet reads through the cache: hit serves directly, miss composes
// from the feature tables and warms the cache.
func (s *Service) GetFeatureSet(ctx context.Context, stayID int64) (models.FeatureSet, error) {
	if s.cache != nil {
		set, err := s.cache.Get(ctx, stayID)
		if err == nil {
			return set, nil
		}
		if !errors.Is(err, featurestore.ErrCacheMiss) {
			logger.Log.WithError(err).WithField("stay_id", stayID).Warn("feature cache read failed")
		}
	}

	if _, err := s.stays.Get(ctx, stayID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.FeatureSet{}, ErrStayNotFound
		}
		return models.FeatureSet{}, err
	}

	set := models.FeatureSet{
		StayID:   stayID,
		Features: make(map[string]models.Feature),
		Version:  1,
	}
	for _, name := range s.registry.Names() {
		res, err := s.results.LoadStay(ctx, name, stayID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue // feature not materialized yet, or stay absent from table
			}
			return models.FeatureSet{}, err
		}
		feat := models.Feature{Name: name, Value: res.Value, ObservedAt: res.ObservedAt}
		if res.SourceTag != nil {
			feat.SourceTag = *res.SourceTag
		}
		set.Features[name] = feat
	}

	if s.cache != nil {
		if err := s.cache.Materialize(ctx, set); err != nil {
			logger.Log.WithError(err).WithField("stay_id", stayID).Warn("feature cache write failed")
		}
	}

	return set, nil
}

// RefreshStay drops the cached set and rebuilds it from the feature tables.
func (s *Service) RefreshStay(ctx context.Context, stayID int64) (models.FeatureSet, error) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, stayID); err != nil {
			logger.Log.WithError(err).WithField("stay_id", stayID).Warn("feature cache invalidation failed")
		}
	}
	return s.GetFeatureSet(ctx, stayID)
}

// WarmCache recomposes every stay's feature set from the materialized tables
// and pushes the batch into the cache, typically after an extraction run
// rewrites the tables.
func (s *Service) WarmCache(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}

	stays, err := s.stays.List(ctx)
	if err != nil {
		return 0, err
	}

	sets := make(map[int64]*models.FeatureSet, len(stays))
	order := make([]int64, 0, len(stays))
	for _, stay := range stays {
		sets[stay.StayID] = &models.FeatureSet{
			StayID:   stay.StayID,
			Features: make(map[string]models.Feature),
			Version:  1,
		}
		order = append(order, stay.StayID)
	}

	for _, name := range s.registry.Names() {
		results, err := s.results.Load(ctx, name)
		if err != nil {
			// A feature that has never been materialized is not a warm-up
			// failure; skip it.
			logger.Log.WithError(err).WithField("feature", name).Warn("feature table unavailable during cache warm-up")
			continue
		}
		for _, res := range results {
			set, ok := sets[res.StayID]
			if !ok {
				continue
			}
			feat := models.Feature{Name: name, Value: res.Value, ObservedAt: res.ObservedAt}
			if res.SourceTag != nil {
				feat.SourceTag = *res.SourceTag
			}
			set.Features[name] = feat
		}
	}

	batch := make([]models.FeatureSet, 0, len(order))
	for _, stayID := range order {
		batch = append(batch, *sets[stayID])
	}
	if err := s.cache.MaterializeAll(ctx, batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}
