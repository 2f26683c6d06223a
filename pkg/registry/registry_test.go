package registry

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func validFeature() Feature {
	return Feature{
		Name:     "heart-rate-first",
		Sources:  []Source{{Tag: "hr-monitor"}},
		Validity: Between(20, 300),
		Policy:   "earliest",
		Anchor:   AnchorAdministrative,
	}
}

func TestFeatureValidateAcceptsWellFormed(t *testing.T) {
	if err := validFeature().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFeatureValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(f *Feature)
		wantMsg string
	}{
		{"empty name", func(f *Feature) { f.Name = "" }, "without a name"},
		{"no sources", func(f *Feature) { f.Sources = nil }, "no sources"},
		{"blank tag", func(f *Feature) { f.Sources = []Source{{Tag: ""}} }, "without a tag"},
		{"duplicate tag", func(f *Feature) {
			f.Sources = []Source{{Tag: "hr-monitor"}, {Tag: "hr-monitor"}}
		}, "twice"},
		{"unknown unit", func(f *Feature) {
			f.Sources = []Source{{Tag: "hr-monitor", Unit: "furlongs"}}
		}, "unknown unit"},
		{"inverted range", func(f *Feature) { f.Validity = Between(300, 20) }, "inverted"},
		{"unknown policy", func(f *Feature) { f.Policy = "latest" }, "unknown policy"},
		{"unknown anchor", func(f *Feature) { f.Anchor = "billing" }, "unknown anchor"},
		{"on_missing_window on admin anchor", func(f *Feature) {
			f.OnMissingWindow = MissingWindowAbsent
		}, "only applies to clinical"},
		{"clinical without on_missing_window", func(f *Feature) {
			f.Anchor = AnchorClinical
		}, "must name an on_missing_window"},
		{"unknown on_missing_window", func(f *Feature) {
			f.Anchor = AnchorClinical
			f.OnMissingWindow = "guess"
		}, "unknown on_missing_window"},
	}

	for _, tc := range cases {
		f := validFeature()
		tc.mutate(&f)
		err := f.Validate()
		if err == nil {
			t.Fatalf("%s: expected an error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.wantMsg) {
			t.Fatalf("%s: expected message containing %q, got %q", tc.name, tc.wantMsg, err.Error())
		}
	}
}

func TestRangeAccepts(t *testing.T) {
	r := Between(20, 300)
	for _, v := range []float64{20, 150, 300} {
		if !r.Accepts(v) {
			t.Fatalf("range bounds are inclusive; %v must be accepted", v)
		}
	}
	for _, v := range []float64{19.999, 300.001, -5} {
		if r.Accepts(v) {
			t.Fatalf("%v must be rejected", v)
		}
	}

	u := Unbounded()
	for _, v := range []float64{-1e9, 0, 1e9} {
		if !u.Accepts(v) {
			t.Fatalf("unbounded range must accept everything, rejected %v", v)
		}
	}
}

func TestNewRejectsDuplicateFeatureNames(t *testing.T) {
	_, err := New([]Feature{validFeature(), validFeature()})
	if err == nil {
		t.Fatal("expected an error for duplicate feature names")
	}
}

func TestNamesPreserveDeclarationOrder(t *testing.T) {
	a := validFeature()
	b := validFeature()
	b.Name = "resp-rate-first"
	b.Sources = []Source{{Tag: "resp-rate"}}

	reg, err := New([]Feature{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := reg.Names()
	if len(names) != 2 || names[0] != a.Name || names[1] != b.Name {
		t.Fatalf("unexpected order: %v", names)
	}
}

func TestBuiltinFeaturesAllValid(t *testing.T) {
	reg, err := New(Builtin())
	if err != nil {
		t.Fatalf("builtin feature set must validate: %v", err)
	}
	if reg.Len() == 0 {
		t.Fatal("builtin feature set must not be empty")
	}

	feat, ok := reg.Get("heart-rate-admission")
	if !ok {
		t.Fatal("expected the clinically anchored heart-rate feature")
	}
	if feat.Anchor != AnchorClinical {
		t.Fatalf("expected clinical anchor, got %q", feat.Anchor)
	}
	if feat.OnMissingWindow == "" {
		t.Fatal("clinically anchored builtins must name an on_missing_window policy")
	}
}

func TestDurationYAML(t *testing.T) {
	var out struct {
		Fuzz Duration `yaml:"fuzz"`
	}
	if err := yaml.Unmarshal([]byte("fuzz: 6h30m"), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Fuzz.Std() != 6*time.Hour+30*time.Minute {
		t.Fatalf("expected 6h30m, got %v", out.Fuzz.Std())
	}

	if err := yaml.Unmarshal([]byte("fuzz: twelve"), &out); err == nil {
		t.Fatal("expected an error for a malformed duration")
	}
}

func TestUnitRegistryBuildsPerSourceRules(t *testing.T) {
	f := Feature{
		Name: "temperature-first",
		Sources: []Source{
			{Tag: "temp-celsius"},
			{Tag: "temp-fahrenheit", Unit: "fahrenheit"},
		},
		Validity: Between(30, 45),
		Policy:   "earliest",
		Anchor:   AnchorAdministrative,
	}

	reg, err := f.UnitRegistry()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := reg.Normalize("temp-fahrenheit", 98.6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got < 36.99 || got > 37.01 {
		t.Fatalf("expected ~37.0, got %v", got)
	}
}
