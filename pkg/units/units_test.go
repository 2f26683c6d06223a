package units

import (
	"errors"
	"math"
	"testing"
)

func TestFahrenheitToCelsius(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{98.6, 37.0},
		{32.0, 0.0},
		{212.0, 100.0},
	}
	for _, tc := range cases {
		got := FahrenheitToCelsius.Apply(tc.in)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%vF: expected %vC, got %v", tc.in, tc.want, got)
		}
	}
}

func TestWeightAndHeightConversions(t *testing.T) {
	if got := PoundsToKilograms.Apply(150); math.Abs(got-68.0388555) > 1e-6 {
		t.Fatalf("150lb: expected ~68.04kg, got %v", got)
	}
	if got := InchesToCentimeters.Apply(70); math.Abs(got-177.8) > 1e-9 {
		t.Fatalf("70in: expected 177.8cm, got %v", got)
	}
	if got := OuncesToKilograms.Apply(16); math.Abs(got-0.45359237) > 1e-9 {
		t.Fatalf("16oz: expected 1lb in kg, got %v", got)
	}
}

func TestLookup(t *testing.T) {
	if conv, ok := Lookup(""); !ok || conv.Name != Identity.Name {
		t.Fatal("empty unit name must resolve to identity")
	}
	if conv, ok := Lookup("fahrenheit"); !ok || conv.Name != FahrenheitToCelsius.Name {
		t.Fatal("expected fahrenheit conversion")
	}
	if _, ok := Lookup("furlongs"); ok {
		t.Fatal("unknown unit name must not resolve")
	}
}

func TestRegistryValidateRejectsUnmappedTag(t *testing.T) {
	reg := NewRegistry()
	reg.Register("temp-celsius", Identity)

	if err := reg.Validate([]string{"temp-celsius"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := reg.Validate([]string{"temp-celsius", "temp-fahrenheit"})
	if err == nil {
		t.Fatal("expected an error for the unmapped tag")
	}
	var unmapped *UnmappedTagError
	if !errors.As(err, &unmapped) {
		t.Fatalf("expected UnmappedTagError, got %T", err)
	}
	if unmapped.Tag != "temp-fahrenheit" {
		t.Fatalf("error must name the offending tag, got %q", unmapped.Tag)
	}
}

func TestRegistryNormalize(t *testing.T) {
	reg := NewRegistry()
	reg.Register("weight-lbs", PoundsToKilograms)

	got, err := reg.Normalize("weight-lbs", 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-90.718474) > 1e-6 {
		t.Fatalf("200lb: expected ~90.72kg, got %v", got)
	}

	if _, err := reg.Normalize("weight-kg", 80); err == nil {
		t.Fatal("normalizing an unregistered tag must fail")
	}
}
