package store

import "testing"

func TestTableName(t *testing.T) {
	cases := []struct {
		feature string
		want    string
	}{
		{"heart-rate-first", "feature_heart_rate_first"},
		{"spo2-first", "feature_spo2_first"},
		{"Weight", "feature_weight"},
		{"ph.first", "feature_ph_first"},
	}
	for _, tc := range cases {
		if got := TableName(tc.feature); got != tc.want {
			t.Fatalf("TableName(%q): expected %q, got %q", tc.feature, tc.want, got)
		}
	}
}
