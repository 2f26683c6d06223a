package cohort

import (
	"testing"
	"time"
)

func TestFeatureSets(t *testing.T) {
	hr := 72.0
	observed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := []Row{
		{
			StayID:    1,
			SubjectID: 10,
			Features:  map[string]*float64{"heart-rate-first": &hr, "lactate-first": nil},
			ObservedAt: map[string]time.Time{
				"heart-rate-first": observed,
			},
		},
		{
			StayID:   2,
			Features: map[string]*float64{},
		},
	}

	sets := FeatureSets(rows, 3)
	if len(sets) != 2 {
		t.Fatalf("expected one set per row, got %d", len(sets))
	}

	first := sets[0]
	if first.StayID != 1 || first.Version != 3 {
		t.Fatalf("unexpected set header: %+v", first)
	}
	feat, ok := first.Features["heart-rate-first"]
	if !ok || feat.Value == nil || *feat.Value != 72.0 {
		t.Fatalf("expected heart rate 72, got %+v", feat)
	}
	if feat.ObservedAt == nil || !feat.ObservedAt.Equal(observed) {
		t.Fatalf("expected observation timestamp, got %+v", feat.ObservedAt)
	}

	absent := first.Features["lactate-first"]
	if absent.Value != nil {
		t.Fatal("absent features must keep a nil value, never zero")
	}
	if absent.ObservedAt != nil {
		t.Fatal("absent features have no observation timestamp")
	}

	if len(sets[1].Features) != 0 {
		t.Fatalf("expected empty feature map for stay 2, got %+v", sets[1].Features)
	}
}
