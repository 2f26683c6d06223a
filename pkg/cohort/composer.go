// Package cohort composes already-materialized feature tables into wide
// per-stay tables for export. It is a pure consumer of the feature tables:
// simple key-based joins on stay id, no temporal reasoning.
package cohort

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/cohortica-ai/platform/pkg/common/models"
	"github.com/cohortica-ai/platform/pkg/store"
)

type Composer struct {
	stays   *store.StayRepository
	results *store.ResultRepository
}

func NewComposer(stays *store.StayRepository, results *store.ResultRepository) *Composer {
	return &Composer{stays: stays, results: results}
}

// Row is one stay with its joined feature values. Absent results stay nil so
// the CSV export can distinguish "no measurement" from zero.
type Row struct {
	StayID      int64                `json:"stay_id"`
	SubjectID   int64                `json:"subject_id"`
	AdmissionID int64                `json:"admission_id"`
	Features    map[string]*float64  `json:"features"`
	ObservedAt  map[string]time.Time `json:"observed_at,omitempty"`
}

// Compose left-joins the named feature tables onto the full stay set. Every
// stay appears exactly once regardless of how many features matched.
func (c *Composer) Compose(ctx context.Context, features []string) ([]Row, error) {
	stays, err := c.stays.List(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(stays))
	index := make(map[int64]int, len(stays))
	for i, stay := range stays {
		rows = append(rows, Row{
			StayID:      stay.StayID,
			SubjectID:   stay.SubjectID,
			AdmissionID: stay.AdmissionID,
			Features:    make(map[string]*float64, len(features)),
			ObservedAt:  make(map[string]time.Time),
		})
		index[stay.StayID] = i
	}

	for _, feature := range features {
		results, err := c.results.Load(ctx, feature)
		if err != nil {
			return nil, fmt.Errorf("loading feature %q: %w", feature, err)
		}
		for _, res := range results {
			i, ok := index[res.StayID]
			if !ok {
				continue
			}
			rows[i].Features[feature] = res.Value
			if res.ObservedAt != nil {
				rows[i].ObservedAt[feature] = *res.ObservedAt
			}
		}
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].StayID < rows[j].StayID })
	return rows, nil
}

// ExportCSV writes the composed table with one column per feature. Absent
// values export as empty cells.
func (c *Composer) ExportCSV(ctx context.Context, features []string, w io.Writer) error {
	rows, err := c.Compose(ctx, features)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	header := append([]string{"stay_id", "subject_id", "admission_id"}, features...)
	if err := writer.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for _, row := range rows {
		record[0] = strconv.FormatInt(row.StayID, 10)
		record[1] = strconv.FormatInt(row.SubjectID, 10)
		record[2] = strconv.FormatInt(row.AdmissionID, 10)
		for i, feature := range features {
			if v := row.Features[feature]; v != nil {
				record[3+i] = strconv.FormatFloat(*v, 'f', -1, 64)
			} else {
				record[3+i] = ""
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// FeatureSets converts composed rows into the serving-side representation.
func FeatureSets(rows []Row, version int) []models.FeatureSet {
	sets := make([]models.FeatureSet, 0, len(rows))
	for _, row := range rows {
		features := make(map[string]models.Feature, len(row.Features))
		for name, value := range row.Features {
			feat := models.Feature{Name: name, Value: value}
			if at, ok := row.ObservedAt[name]; ok {
				feat.ObservedAt = &at
			}
			features[name] = feat
		}
		sets = append(sets, models.FeatureSet{
			StayID:   row.StayID,
			Features: features,
			Version:  version,
		})
	}
	return sets
}
