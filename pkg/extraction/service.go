package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/cohortica-ai/platform/pkg/common/kafka"
	"github.com/cohortica-ai/platform/pkg/common/logger"
	"github.com/cohortica-ai/platform/pkg/common/models"
	"github.com/cohortica-ai/platform/pkg/demographics"
	"github.com/cohortica-ai/platform/pkg/extract"
	"github.com/cohortica-ai/platform/pkg/extract/window"
	"github.com/cohortica-ai/platform/pkg/observability/metrics"
	"github.com/cohortica-ai/platform/pkg/registry"
	"github.com/cohortica-ai/platform/pkg/store"
)

// ProxyTag is the signal used to estimate when a stay was actually monitored.
// Heart rate is charted continuously on every monitored patient, which makes
// it the usual proxy.
const ProxyTag = "hr-monitor"

type Service struct {
	stays    *store.StayRepository
	events   *store.EventRepository
	windows  *store.WindowRepository
	results  *store.ResultRepository
	registry *registry.Registry
	producer *kafka.Producer

	fuzzBefore time.Duration
	fuzzAfter  time.Duration
}

func NewService(
	stays *store.StayRepository,
	events *store.EventRepository,
	windows *store.WindowRepository,
	results *store.ResultRepository,
	reg *registry.Registry,
	producer *kafka.Producer,
	fuzzBefore, fuzzAfter time.Duration,
) *Service {
	return &Service{
		stays:      stays,
		events:     events,
		windows:    windows,
		results:    results,
		registry:   reg,
		producer:   producer,
		fuzzBefore: fuzzBefore,
		fuzzAfter:  fuzzAfter,
	}
}

func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// WindowSummary reports the outcome of a monitoring-window estimation pass.
type WindowSummary struct {
	TotalStays     int `json:"total_stays"`
	Estimated      int `json:"estimated"`
	WithoutSignal  int `json:"without_signal"`
	SkippedNoAdmin int `json:"skipped_no_admin_bounds"`
}

// EstimateWindows recomputes the clinically estimated monitoring window for
// every stay and persists the full left-extended table (NULL bounds for stays
// without proxy data; a few percent of stays is normal).
func (s *Service) EstimateWindows(ctx context.Context) (WindowSummary, error) {
	stays, err := s.stays.List(ctx)
	if err != nil {
		return WindowSummary{}, err
	}
	proxy, err := s.events.ListBySubjects(ctx, ProxyTag)
	if err != nil {
		return WindowSummary{}, err
	}

	summary := WindowSummary{TotalStays: len(stays)}

	bounds := make([]window.AdminBounds, 0, len(stays))
	for _, stay := range stays {
		if stay.OutTime == nil {
			// No administrative end: the stay cannot anchor a fuzzy boundary.
			summary.SkippedNoAdmin++
			continue
		}
		bounds = append(bounds, window.AdminBounds{
			StayID:    stay.StayID,
			SubjectID: stay.SubjectID,
			InTime:    stay.InTime,
			OutTime:   *stay.OutTime,
		})
	}

	proxyEvents := make([]window.ProxyEvent, 0, len(proxy))
	for _, ev := range proxy {
		proxyEvents = append(proxyEvents, window.ProxyEvent{
			SubjectID: ev.SubjectID,
			ChartedAt: ev.ChartedAt,
		})
	}

	estimator := window.NewEstimator(s.fuzzBefore, s.fuzzAfter)
	estimated := estimator.Estimate(bounds, proxyEvents)

	rows := make([]models.MonitoringWindow, 0, len(stays))
	for _, stay := range stays {
		row := models.MonitoringWindow{StayID: stay.StayID}
		if win, ok := estimated[stay.StayID]; ok {
			start, end := win.Start, win.End
			row.Start = &start
			row.End = &end
			summary.Estimated++
		} else {
			summary.WithoutSignal++
		}
		rows = append(rows, row)
	}

	if err := s.windows.Replace(ctx, rows); err != nil {
		return WindowSummary{}, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"total":          summary.TotalStays,
		"estimated":      summary.Estimated,
		"without_signal": summary.WithoutSignal,
	}).Info("monitoring windows estimated")
	metrics.ObserveWindowEstimation(summary.WithoutSignal)

	return summary, nil
}

// RunFeature executes one extractor invocation end to end: load, extract,
// materialize, report.
func (s *Service) RunFeature(ctx context.Context, name string) (models.QualityReport, error) {
	feat, ok := s.registry.Get(name)
	if !ok {
		return models.QualityReport{}, fmt.Errorf("unknown feature %q", name)
	}

	stays, err := s.stays.List(ctx)
	if err != nil {
		return models.QualityReport{}, err
	}
	events, err := s.events.ListBySourceTags(ctx, feat.SourceTags())
	if err != nil {
		return models.QualityReport{}, err
	}

	cfg, err := s.buildConfig(ctx, feat, stays)
	if err != nil {
		return models.QualityReport{}, err
	}

	stayIDs := make([]int64, 0, len(stays))
	for _, stay := range stays {
		stayIDs = append(stayIDs, stay.StayID)
	}

	selections, report, err := extract.Extract(stayIDs, events, cfg)
	if err != nil {
		return report, err
	}

	results := make([]models.FeatureResult, 0, len(stayIDs))
	for _, stayID := range stayIDs {
		sel := selections[stayID]
		res := models.FeatureResult{StayID: stayID, Feature: name}
		if sel.Found {
			value, observedAt, sourceTag, offset := sel.Value, sel.ObservedAt, sel.SourceTag, sel.Offset
			res.Value = &value
			res.ObservedAt = &observedAt
			res.SourceTag = &sourceTag
			res.Offset = &offset
		}
		results = append(results, res)
	}

	if err := s.results.Replace(ctx, name, results); err != nil {
		return report, err
	}

	s.publishReport(ctx, report)
	return report, nil
}

// RunFeatures runs a set of invocations. A ConfigurationError aborts the
// remainder: a misconfigured feature must fail loudly, not ship one corrupted
// table among good ones.
func (s *Service) RunFeatures(ctx context.Context, names []string) ([]models.QualityReport, error) {
	reports := make([]models.QualityReport, 0, len(names))
	for _, name := range names {
		report, err := s.RunFeature(ctx, name)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// RunDemographics materializes the non-temporal per-stay features: recoded
// age and readmission flags. These live outside the extractor on purpose.
func (s *Service) RunDemographics(ctx context.Context) error {
	stays, err := s.stays.List(ctx)
	if err != nil {
		return err
	}
	flags := demographics.ReadmissionFlags(stays)

	tag := "demographics"
	ages := make([]models.FeatureResult, 0, len(stays))
	firstStay := make([]models.FeatureResult, 0, len(stays))
	priorStays := make([]models.FeatureResult, 0, len(stays))
	for _, stay := range stays {
		age := models.FeatureResult{StayID: stay.StayID, Feature: "age"}
		if stay.Age != nil {
			recoded := demographics.RecodeAge(*stay.Age)
			age.Value = &recoded
			age.SourceTag = &tag
		}
		ages = append(ages, age)

		f := flags[stay.StayID]
		first := boolToFloat(f.FirstICUStay)
		prior := float64(f.PriorStays)
		firstStay = append(firstStay, models.FeatureResult{
			StayID: stay.StayID, Feature: "first-icu-stay", Value: &first, SourceTag: &tag,
		})
		priorStays = append(priorStays, models.FeatureResult{
			StayID: stay.StayID, Feature: "prior-stays", Value: &prior, SourceTag: &tag,
		})
	}

	if err := s.results.Replace(ctx, "age", ages); err != nil {
		return err
	}
	if err := s.results.Replace(ctx, "first-icu-stay", firstStay); err != nil {
		return err
	}
	return s.results.Replace(ctx, "prior-stays", priorStays)
}

// buildConfig turns a declarative feature definition into an engine config.
func (s *Service) buildConfig(ctx context.Context, feat registry.Feature, stays []models.Stay) (extract.Config, error) {
	normalizer, err := feat.UnitRegistry()
	if err != nil {
		return extract.Config{}, &extract.ConfigurationError{Feature: feat.Name, Err: err}
	}

	staysByID := make(map[int64]models.Stay, len(stays))
	for _, stay := range stays {
		staysByID[stay.StayID] = stay
	}

	adminWindow := func(stayID int64) (extract.Window, bool) {
		stay, ok := staysByID[stayID]
		if !ok || stay.OutTime == nil {
			return extract.Window{}, false
		}
		return extract.Window{
			Start: stay.InTime.Add(-feat.FuzzBefore.Std()),
			End:   stay.OutTime.Add(feat.FuzzAfter.Std()),
		}, true
	}

	cfg := extract.Config{
		Feature:    feat.Name,
		SourceTags: feat.SourceTags(),
		Normalizer: normalizer,
		Validity:   feat.Validity.Accepts,
		Policy:     feat.SelectionPolicy(),
	}

	switch feat.Anchor {
	case registry.AnchorAdministrative:
		cfg.Window = adminWindow
		cfg.Reference = func(stayID int64) (time.Time, bool) {
			stay, ok := staysByID[stayID]
			if !ok {
				return time.Time{}, false
			}
			return stay.InTime, true
		}

	case registry.AnchorClinical:
		estimated, err := s.windows.Load(ctx)
		if err != nil {
			return extract.Config{}, err
		}
		fallback := feat.OnMissingWindow == registry.MissingWindowAdministrative
		cfg.Window = func(stayID int64) (extract.Window, bool) {
			if win, ok := estimated[stayID]; ok && win.Start != nil && win.End != nil {
				return extract.Window{Start: *win.Start, End: *win.End}, true
			}
			if fallback {
				logger.Log.WithFields(map[string]interface{}{
					"stay_id": stayID,
					"feature": feat.Name,
				}).Warn("no monitoring window; falling back to administrative bounds")
				return adminWindow(stayID)
			}
			return extract.Window{}, false
		}
		cfg.Reference = func(stayID int64) (time.Time, bool) {
			if win, ok := estimated[stayID]; ok && win.Start != nil {
				return *win.Start, true
			}
			if fallback {
				if stay, ok := staysByID[stayID]; ok {
					return stay.InTime, true
				}
			}
			return time.Time{}, false
		}
	}

	return cfg, nil
}

func (s *Service) publishReport(ctx context.Context, report models.QualityReport) {
	if s.producer == nil {
		return
	}
	data := map[string]interface{}{
		"feature":           report.Feature,
		"total_stays":       report.TotalStays,
		"stays_with_result": report.StaysWithResult,
		"rejected_error":    report.RejectedError,
		"rejected_validity": report.RejectedValidity,
		"rejected_window":   report.RejectedWindow,
		"no_candidates":     report.NoCandidates,
		"invalid_windows":   report.InvalidWindows,
		"missing_windows":   report.MissingWindows,
	}
	if err := s.producer.PublishEvent(ctx, "quality-report", "extraction-service", data); err != nil {
		logger.Log.WithError(err).Warn("failed to publish quality report")
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
