package extract

import (
	"errors"
	"time"

	"github.com/cohortica-ai/platform/pkg/common/logger"
	"github.com/cohortica-ai/platform/pkg/common/models"
	"github.com/cohortica-ai/platform/pkg/units"
)

// SelectionPolicy is the total ordering used to pick one event among the
// qualifying candidates of a stay.
type SelectionPolicy string

const (
	// Earliest orders candidates by charted timestamp ascending.
	Earliest SelectionPolicy = "earliest"
	// ClosestToReference orders candidates by absolute distance from the
	// stay's reference instant.
	ClosestToReference SelectionPolicy = "closest-to-reference"
)

// Window is the anchor interval within which events qualify for a stay.
// Both bounds are inclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowFn resolves a stay's anchor interval. ok=false means no window is
// defined for the stay (e.g. no monitoring data); the stay then yields an
// absent result.
type WindowFn func(stayID int64) (Window, bool)

// ReferenceFn resolves the reference instant for ClosestToReference ranking.
type ReferenceFn func(stayID int64) (time.Time, bool)

// Config parameterizes one extractor invocation.
type Config struct {
	// Feature names the invocation in errors and reports.
	Feature string
	// SourceTags lists the candidate event sources. Their order is the
	// tie-break priority: when two candidates rank equal under the policy,
	// the event whose tag appears earlier here wins.
	SourceTags []string
	// Normalizer converts raw values to the canonical unit, per tag. Every
	// tag in SourceTags must have a rule.
	Normalizer *units.Registry
	// Validity accepts or rejects a normalized value before selection, so an
	// implausible value can never win on temporal proximity alone.
	Validity func(v float64) bool
	// Window bounds candidate events per stay.
	Window WindowFn
	// Policy picks the ordering among qualifying candidates.
	Policy SelectionPolicy
	// Reference is required for ClosestToReference; for Earliest it only
	// affects the reported offset (falls back to the window start).
	Reference ReferenceFn
}

// Selection is the per-stay outcome. Found=false is an explicit absent
// result, distinguishable from any real measurement.
type Selection struct {
	Value      float64
	ObservedAt time.Time
	SourceTag  string
	Offset     time.Duration
	Found      bool
}

// candidate tracks the best-ranked event seen so far for one stay.
type candidate struct {
	value   float64
	chartAt time.Time
	tag     string
	tagRank int
	seq     int
	key     time.Duration // policy ranking key for ClosestToReference
	set     bool
}

type windowState struct {
	win     Window
	defined bool
	invalid bool
	checked bool
}

// Extract runs one temporal feature extraction over a frozen set of stays and
// events. It returns one Selection per stay in stayIDs (totality: never a
// missing key), a quality report, and a ConfigurationError if the invocation
// must not run at all. Re-running with identical inputs yields identical
// output, including under tied timestamps.
func Extract(stayIDs []int64, events []models.ChartEvent, cfg Config) (map[int64]Selection, models.QualityReport, error) {
	report := models.QualityReport{Feature: cfg.Feature, TotalStays: len(stayIDs)}

	if err := validate(cfg); err != nil {
		return nil, report, err
	}

	tagRank := make(map[string]int, len(cfg.SourceTags))
	for i, tag := range cfg.SourceTags {
		tagRank[tag] = i
	}

	inCohort := make(map[int64]struct{}, len(stayIDs))
	for _, id := range stayIDs {
		inCohort[id] = struct{}{}
	}

	windows := make(map[int64]*windowState, len(stayIDs))
	resolveWindow := func(stayID int64) *windowState {
		if ws, ok := windows[stayID]; ok {
			return ws
		}
		ws := &windowState{checked: true}
		win, ok := cfg.Window(stayID)
		if ok {
			if win.Start.After(win.End) {
				ws.invalid = true
				logger.Log.WithField("stay_id", stayID).
					WithField("feature", cfg.Feature).
					Warn((&InvalidWindowError{StayID: stayID, Start: win.Start, End: win.End}).Error())
			} else {
				ws.win = win
				ws.defined = true
			}
		}
		windows[stayID] = ws
		return ws
	}

	best := make(map[int64]*candidate)

	for seq, ev := range events {
		rank, relevant := tagRank[ev.SourceTag]
		if !relevant {
			continue
		}
		if _, ok := inCohort[ev.StayID]; !ok {
			continue
		}
		if ev.IsError {
			report.RejectedError++
			continue
		}

		value, err := cfg.Normalizer.Normalize(ev.SourceTag, ev.Value)
		if err != nil {
			// Unreachable after validate, but never let a value through
			// un-normalized.
			return nil, report, &ConfigurationError{Feature: cfg.Feature, Err: err}
		}

		if !cfg.Validity(value) {
			report.RejectedValidity++
			continue
		}

		ws := resolveWindow(ev.StayID)
		if !ws.defined {
			continue
		}
		if ev.ChartedAt.Before(ws.win.Start) || ev.ChartedAt.After(ws.win.End) {
			report.RejectedWindow++
			continue
		}

		cand := candidate{
			value:   value,
			chartAt: ev.ChartedAt,
			tag:     ev.SourceTag,
			tagRank: rank,
			seq:     seq,
			set:     true,
		}
		if cfg.Policy == ClosestToReference {
			ref, _ := cfg.Reference(ev.StayID)
			cand.key = absDuration(ev.ChartedAt.Sub(ref))
		}

		cur, ok := best[ev.StayID]
		if !ok {
			c := cand
			best[ev.StayID] = &c
			continue
		}
		if beats(cfg.Policy, &cand, cur) {
			*cur = cand
		}
	}

	results := make(map[int64]Selection, len(stayIDs))
	for _, stayID := range stayIDs {
		ws := resolveWindow(stayID)
		switch {
		case ws.invalid:
			report.InvalidWindows++
		case !ws.defined:
			report.MissingWindows++
		}

		cand, ok := best[stayID]
		if !ok || !cand.set {
			if ws.defined {
				report.NoCandidates++
			}
			results[stayID] = Selection{}
			continue
		}

		offsetBase := ws.win.Start
		if cfg.Reference != nil {
			if ref, ok := cfg.Reference(stayID); ok {
				offsetBase = ref
			}
		}

		results[stayID] = Selection{
			Value:      cand.value,
			ObservedAt: cand.chartAt,
			SourceTag:  cand.tag,
			Offset:     cand.chartAt.Sub(offsetBase),
			Found:      true,
		}
		report.StaysWithResult++
	}

	return results, report, nil
}

// beats reports whether a should replace b as the rank-1 candidate. The
// ordering is total and deterministic: policy key first, then source-tag
// priority, then event insertion order.
func beats(policy SelectionPolicy, a, b *candidate) bool {
	switch policy {
	case ClosestToReference:
		if a.key != b.key {
			return a.key < b.key
		}
	default: // Earliest
		if !a.chartAt.Equal(b.chartAt) {
			return a.chartAt.Before(b.chartAt)
		}
	}
	if a.tagRank != b.tagRank {
		return a.tagRank < b.tagRank
	}
	return a.seq < b.seq
}

func validate(cfg Config) error {
	fail := func(err error) error {
		return &ConfigurationError{Feature: cfg.Feature, Err: err}
	}
	if len(cfg.SourceTags) == 0 {
		return fail(errors.New("no source tags configured"))
	}
	if cfg.Normalizer == nil {
		return fail(errors.New("no unit normalizer configured"))
	}
	if err := cfg.Normalizer.Validate(cfg.SourceTags); err != nil {
		return fail(err)
	}
	if cfg.Validity == nil {
		return fail(errors.New("no validity predicate configured; use an explicit unbounded predicate"))
	}
	if cfg.Window == nil {
		return fail(errors.New("no window function configured"))
	}
	switch cfg.Policy {
	case Earliest:
	case ClosestToReference:
		if cfg.Reference == nil {
			return fail(errors.New("closest-to-reference policy requires a reference function"))
		}
	default:
		return fail(errors.New("unknown selection policy " + string(cfg.Policy)))
	}
	return nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
