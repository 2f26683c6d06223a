// Package featurestore caches composed per-stay feature sets in redis for
// low-latency serving, with postgres as the source of truth.
package featurestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cohortica-ai/platform/pkg/common/logger"
	"github.com/cohortica-ai/platform/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("feature set not cached")

type Store struct {
	client   *redis.Client
	cacheTTL time.Duration
}

func New(client *redis.Client, cacheTTL time.Duration) *Store {
	return &Store{client: client, cacheTTL: cacheTTL}
}

func key(stayID int64) string {
	return fmt.Sprintf("features:stay:%d", stayID)
}

// Materialize caches one feature set.
func (s *Store) Materialize(ctx context.Context, set models.FeatureSet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key(set.StayID), data, s.cacheTTL).Err(); err != nil {
		logger.Log.WithError(err).WithField("stay_id", set.StayID).Error("failed to cache feature set")
		return err
	}
	return nil
}

// MaterializeAll caches a batch, e.g. after an extraction run completes.
func (s *Store) MaterializeAll(ctx context.Context, sets []models.FeatureSet) error {
	for _, set := range sets {
		if err := s.Materialize(ctx, set); err != nil {
			return err
		}
	}
	logger.Log.WithField("count", len(sets)).Info("feature sets materialized to cache")
	return nil
}

// Get returns the cached feature set or ErrCacheMiss.
func (s *Store) Get(ctx context.Context, stayID int64) (models.FeatureSet, error) {
	data, err := s.client.Get(ctx, key(stayID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.FeatureSet{}, ErrCacheMiss
	}
	if err != nil {
		return models.FeatureSet{}, err
	}

	var set models.FeatureSet
	if err := json.Unmarshal(data, &set); err != nil {
		return models.FeatureSet{}, err
	}
	return set, nil
}

// Invalidate drops a stay's cached feature set.
func (s *Store) Invalidate(ctx context.Context, stayID int64) error {
	return s.client.Del(ctx, key(stayID)).Err()
}
