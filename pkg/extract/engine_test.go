package extract

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/cohortica-ai/platform/pkg/common/logger"
	"github.com/cohortica-ai/platform/pkg/common/models"
	"github.com/cohortica-ai/platform/pkg/units"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

var base = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func at(hours float64) time.Time {
	return base.Add(time.Duration(hours * float64(time.Hour)))
}

func identityRegistry(tags ...string) *units.Registry {
	reg := units.NewRegistry()
	for _, tag := range tags {
		reg.Register(tag, units.Identity)
	}
	return reg
}

func fixedWindow(start, end time.Time) WindowFn {
	return func(stayID int64) (Window, bool) {
		return Window{Start: start, End: end}, true
	}
}

func accept(v float64) bool { return true }

func baseConfig(tags ...string) Config {
	return Config{
		Feature:    "heart-rate-first",
		SourceTags: tags,
		Normalizer: identityRegistry(tags...),
		Validity:   accept,
		Window:     fixedWindow(at(0), at(24)),
		Policy:     Earliest,
	}
}

func TestExtractEarliestPicksFirstQualifyingEvent(t *testing.T) {
	cfg := baseConfig("hr-monitor")
	events := []models.ChartEvent{
		{StayID: 1, SourceTag: "hr-monitor", ChartedAt: at(5), Value: 88},
		{StayID: 1, SourceTag: "hr-monitor", ChartedAt: at(2), Value: 72},
		{StayID: 1, SourceTag: "hr-monitor", ChartedAt: at(9), Value: 90},
	}

	results, report, err := Extract([]int64{1}, events, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sel := results[1]
	if !sel.Found {
		t.Fatal("expected a result for stay 1")
	}
	if sel.Value != 72 {
		t.Fatalf("expected earliest value 72, got %v", sel.Value)
	}
	if !sel.ObservedAt.Equal(at(2)) {
		t.Fatalf("expected observation at %v, got %v", at(2), sel.ObservedAt)
	}
	if report.StaysWithResult != 1 {
		t.Fatalf("expected 1 stay with result, got %d", report.StaysWithResult)
	}
}

func TestExtractTotality(t *testing.T) {
	cfg := baseConfig("hr-monitor")
	events := []models.ChartEvent{
		{StayID: 1, SourceTag: "hr-monitor", ChartedAt: at(1), Value: 70},
	}

	stayIDs := []int64{1, 2, 3}
	results, report, err := Extract(stayIDs, events, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != len(stayIDs) {
		t.Fatalf("expected %d results, got %d", len(stayIDs), len(results))
	}
	for _, id := range stayIDs {
		if _, ok := results[id]; !ok {
			t.Fatalf("stay %d missing from results", id)
		}
	}
	if results[2].Found || results[3].Found {
		t.Fatal("stays without events must yield explicit absent results")
	}
	if report.NoCandidates != 2 {
		t.Fatalf("expected 2 no-candidate stays, got %d", report.NoCandidates)
	}
}

func TestExtractClosestToReference(t *testing.T) {
	cfg := baseConfig("weight-admit")
	cfg.Policy = ClosestToReference
	cfg.Reference = func(stayID int64) (time.Time, bool) { return at(6), true }
	events := []models.ChartEvent{
		{StayID: 1, SourceTag: "weight-admit", ChartedAt: at(1), Value: 80},
		{StayID: 1, SourceTag: "weight-admit", ChartedAt: at(5), Value: 81},
		{StayID: 1, SourceTag: "weight-admit", ChartedAt: at(10), Value: 82},
	}

	results, _, err := Extract([]int64{1}, events, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sel := results[1]
	if sel.Value != 81 {
		t.Fatalf("expected value closest to reference (81), got %v", sel.Value)
	}
	if sel.Offset != -time.Hour {
		t.Fatalf("expected offset -1h relative to reference, got %v", sel.Offset)
	}
}

func TestExtractOffsetRelativeToWindowStartForEarliest(t *testing.T) {
	cfg := baseConfig("hr-monitor")
	events := []models.ChartEvent{
		{StayID: 1, SourceTag: "hr-monitor", ChartedAt: at(3), Value: 75},
	}

	results, _, err := Extract([]int64{1}, events, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[1].Offset != 3*time.Hour {
		t.Fatalf("expected offset 3h from window start, got %v", results[1].Offset)
	}
}

func TestExtractTieBreakSourcePriority(t *testing.T) {
	events := []models.ChartEvent{
		{StayID: 1, SourceTag: "sysbp-cuff", ChartedAt: at(4), Value: 130},
		{StayID: 1, SourceTag: "sysbp-arterial", ChartedAt: at(4), Value: 120},
	}

	cfg := baseConfig("sysbp-arterial", "sysbp-cuff")
	results, _, err := Extract([]int64{1}, events, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[1].SourceTag != "sysbp-arterial" {
		t.Fatalf("expected arterial line to win the tie, got %q", results[1].SourceTag)
	}

	// Flipping the declared priority flips the winner.
	cfg = baseConfig("sysbp-cuff", "sysbp-arterial")
	results, _, err = Extract([]int64{1}, events, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[1].SourceTag != "sysbp-cuff" {
		t.Fatalf("expected cuff to win under flipped priority, got %q", results[1].SourceTag)
	}
}

func TestExtractTieBreakInsertionOrder(t *testing.T) {
	cfg := baseConfig("hr-monitor")
	events := []models.ChartEvent{
		{StayID: 1, SourceTag: "hr-monitor", ChartedAt: at(4), Value: 71},
		{StayID: 1, SourceTag: "hr-monitor", ChartedAt: at(4), Value: 99},
	}

	results, _, err := Extract([]int64{1}, events, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[1].Value != 71 {
		t.Fatalf("expected first-inserted event to win the full tie, got %v", results[1].Value)
	}
}

func TestExtractDeterminismAcrossRuns(t *testing.T) {
	cfg := baseConfig("sysbp-arterial", "sysbp-cuff")
	events := []models.ChartEvent{
		{StayID: 1, SourceTag: "sysbp-cuff", ChartedAt: at(4), Value: 130},
		{StayID: 1, SourceTag: "sysbp-arterial", ChartedAt: at(4), Value: 120},
		{StayID: 2, SourceTag: "sysbp-cuff", ChartedAt: at(2), Value: 140},
	}

	first, _, err := Extract([]int64{1, 2}, events, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, _, err := Extract([]int64{1, 2}, events, cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for id, want := range first {
			if again[id] != want {
				t.Fatalf("run %d diverged for stay %d: %+v vs %+v", i, id, again[id], want)
			}
		}
	}
}

func TestExtractValidityExcludesCloserCandidate(t *testing.T) {
	cfg := baseConfig("hr-monitor")
	cfg.Validity = func(v float64) bool { return v >= 20 && v <= 300 }
	events := []models.ChartEvent{
		{StayID: 1, SourceTag: "hr-monitor", ChartedAt: at(1), Value: 0}, // implausible
		{StayID: 1, SourceTag: "hr-monitor", ChartedAt: at(6), Value: 85},
	}

	results, report, err := Extract([]int64{1}, events, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[1].Value != 85 {
		t.Fatalf("implausible value must not win on time alone, got %v", results[1].Value)
	}
	if report.RejectedValidity != 1 {
		t.Fatalf("expected 1 validity rejection, got %d", report.RejectedValidity)
	}
}

func TestExtractWindowBoundsAreInclusive(t *testing.T) {
	cfg := baseConfig("hr-monitor")
	cfg.Window = fixedWindow(at(2), at(10))
	events := []models.ChartEvent{
		{StayID: 1, SourceTag: "hr-monitor", ChartedAt: at(2), Value: 60},  // exactly at start
		{StayID: 2, SourceTag: "hr-monitor", ChartedAt: at(10), Value: 61}, // exactly at end
		{StayID: 3, SourceTag: "hr-monitor", ChartedAt: at(1.999), Value: 62},
		{StayID: 4, SourceTag: "hr-monitor", ChartedAt: at(10.001), Value: 63},
	}

	results, report, err := Extract([]int64{1, 2, 3, 4}, events, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !results[1].Found || !results[2].Found {
		t.Fatal("events exactly on the window bounds must qualify")
	}
	if results[3].Found || results[4].Found {
		t.Fatal("events outside the window must not qualify")
	}
	if report.RejectedWindow != 2 {
		t.Fatalf("expected 2 window rejections, got %d", report.RejectedWindow)
	}
}

func TestExtractErrorFlaggedEventsRejected(t *testing.T) {
	cfg := baseConfig("hr-monitor")
	events := []models.ChartEvent{
		{StayID: 1, SourceTag: "hr-monitor", ChartedAt: at(1), Value: 75, IsError: true},
		{StayID: 1, SourceTag: "hr-monitor", ChartedAt: at(3), Value: 80},
	}

	results, report, err := Extract([]int64{1}, events, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[1].Value != 80 {
		t.Fatalf("error-flagged event must never be selected, got %v", results[1].Value)
	}
	if report.RejectedError != 1 {
		t.Fatalf("expected 1 error rejection, got %d", report.RejectedError)
	}
}

func TestExtractUnitNormalizationBeforeValidity(t *testing.T) {
	reg := units.NewRegistry()
	reg.Register("temp-celsius", units.Identity)
	reg.Register("temp-fahrenheit", units.FahrenheitToCelsius)

	cfg := Config{
		Feature:    "temperature-first",
		SourceTags: []string{"temp-celsius", "temp-fahrenheit"},
		Normalizer: reg,
		Validity:   func(v float64) bool { return v >= 30 && v <= 45 },
		Window:     fixedWindow(at(0), at(24)),
		Policy:     Earliest,
	}
	events := []models.ChartEvent{
		// 98.6F is 37C: valid only after normalization.
		{StayID: 1, SourceTag: "temp-fahrenheit", ChartedAt: at(1), Value: 98.6},
	}

	results, _, err := Extract([]int64{1}, events, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sel := results[1]
	if !sel.Found {
		t.Fatal("expected normalized fahrenheit reading to qualify")
	}
	if sel.Value < 36.99 || sel.Value > 37.01 {
		t.Fatalf("expected ~37.0C, got %v", sel.Value)
	}
}

func TestExtractInvalidWindowYieldsAbsent(t *testing.T) {
	cfg := baseConfig("hr-monitor")
	cfg.Window = func(stayID int64) (Window, bool) {
		if stayID == 1 {
			return Window{Start: at(10), End: at(2)}, true // inverted
		}
		return Window{Start: at(0), End: at(24)}, true
	}
	events := []models.ChartEvent{
		{StayID: 1, SourceTag: "hr-monitor", ChartedAt: at(5), Value: 70},
		{StayID: 2, SourceTag: "hr-monitor", ChartedAt: at(5), Value: 71},
	}

	results, report, err := Extract([]int64{1, 2}, events, cfg)
	if err != nil {
		t.Fatalf("an invalid window is per-stay, not fatal: %v", err)
	}
	if results[1].Found {
		t.Fatal("stay with inverted window must be absent")
	}
	if !results[2].Found {
		t.Fatal("other stays must be unaffected")
	}
	if report.InvalidWindows != 1 {
		t.Fatalf("expected 1 invalid window, got %d", report.InvalidWindows)
	}
}

func TestExtractMissingWindowYieldsAbsent(t *testing.T) {
	cfg := baseConfig("hr-monitor")
	cfg.Window = func(stayID int64) (Window, bool) {
		if stayID == 1 {
			return Window{}, false
		}
		return Window{Start: at(0), End: at(24)}, true
	}
	events := []models.ChartEvent{
		{StayID: 1, SourceTag: "hr-monitor", ChartedAt: at(5), Value: 70},
		{StayID: 2, SourceTag: "hr-monitor", ChartedAt: at(5), Value: 71},
	}

	results, report, err := Extract([]int64{1, 2}, events, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[1].Found {
		t.Fatal("stay without a window must be absent")
	}
	if report.MissingWindows != 1 {
		t.Fatalf("expected 1 missing window, got %d", report.MissingWindows)
	}
}

func TestExtractConfigurationErrorsFailFast(t *testing.T) {
	valid := baseConfig("hr-monitor")

	cases := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"no source tags", func(cfg *Config) { cfg.SourceTags = nil }},
		{"nil normalizer", func(cfg *Config) { cfg.Normalizer = nil }},
		{"unmapped tag", func(cfg *Config) { cfg.SourceTags = []string{"hr-monitor", "hr-ecg"} }},
		{"nil validity", func(cfg *Config) { cfg.Validity = nil }},
		{"nil window", func(cfg *Config) { cfg.Window = nil }},
		{"unknown policy", func(cfg *Config) { cfg.Policy = "latest" }},
		{"closest without reference", func(cfg *Config) { cfg.Policy = ClosestToReference }},
	}

	for _, tc := range cases {
		cfg := valid
		tc.mutate(&cfg)
		_, _, err := Extract([]int64{1}, nil, cfg)
		if err == nil {
			t.Fatalf("%s: expected a configuration error", tc.name)
		}
		var cerr *ConfigurationError
		if !errors.As(err, &cerr) {
			t.Fatalf("%s: expected ConfigurationError, got %T", tc.name, err)
		}
		if cerr.Feature != cfg.Feature {
			t.Fatalf("%s: error must name the feature, got %q", tc.name, cerr.Feature)
		}
	}
}

func TestExtractIgnoresEventsOutsideCohort(t *testing.T) {
	cfg := baseConfig("hr-monitor")
	events := []models.ChartEvent{
		{StayID: 99, SourceTag: "hr-monitor", ChartedAt: at(1), Value: 70},
	}

	results, report, err := Extract([]int64{1}, events, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[1].Found {
		t.Fatal("events of stays outside the cohort must not produce results")
	}
	if report.TotalStays != 1 {
		t.Fatalf("expected report over 1 stay, got %d", report.TotalStays)
	}
}

func TestExtractIrrelevantTagsIgnored(t *testing.T) {
	cfg := baseConfig("hr-monitor")
	events := []models.ChartEvent{
		{StayID: 1, SourceTag: "resp-rate", ChartedAt: at(1), Value: 18},
		{StayID: 1, SourceTag: "hr-monitor", ChartedAt: at(4), Value: 82},
	}

	results, _, err := Extract([]int64{1}, events, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[1].Value != 82 {
		t.Fatalf("expected only configured tags to qualify, got %v", results[1].Value)
	}
}
