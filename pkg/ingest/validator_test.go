package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/cohortica-ai/platform/pkg/common/models"
)

func validBatch() models.IngestEventRequest {
	return models.IngestEventRequest{
		Source: "monitor",
		Events: []models.ChartEvent{
			{
				StayID:    1,
				SubjectID: 10,
				SourceTag: "hr-monitor",
				ChartedAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
				Value:     72,
			},
		},
	}
}

func newTestValidator() *Validator {
	return NewValidator([]string{"monitor", "lab"}, []string{"hr-monitor", "temp-celsius"}, 2)
}

func TestValidatorAcceptsWellFormedBatch(t *testing.T) {
	if err := newTestValidator().Validate(validBatch()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidatorRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(req *models.IngestEventRequest)
	}{
		{"missing source", func(req *models.IngestEventRequest) { req.Source = "" }},
		{"unknown source", func(req *models.IngestEventRequest) { req.Source = "fax" }},
		{"empty batch", func(req *models.IngestEventRequest) { req.Events = nil }},
		{"oversized batch", func(req *models.IngestEventRequest) {
			ev := req.Events[0]
			req.Events = []models.ChartEvent{ev, ev, ev}
		}},
		{"missing stay id", func(req *models.IngestEventRequest) { req.Events[0].StayID = 0 }},
		{"missing subject id", func(req *models.IngestEventRequest) { req.Events[0].SubjectID = 0 }},
		{"missing timestamp", func(req *models.IngestEventRequest) { req.Events[0].ChartedAt = time.Time{} }},
		{"missing tag", func(req *models.IngestEventRequest) { req.Events[0].SourceTag = "" }},
		{"unknown tag", func(req *models.IngestEventRequest) { req.Events[0].SourceTag = "urine-output" }},
	}

	for _, tc := range cases {
		req := validBatch()
		tc.mutate(&req)
		err := newTestValidator().Validate(req)
		if err == nil {
			t.Fatalf("%s: expected a validation error", tc.name)
		}
		if !IsValidationError(err) {
			t.Fatalf("%s: expected a ValidationError, got %T", tc.name, err)
		}
	}
}

func TestValidatorSourceIsCaseInsensitive(t *testing.T) {
	req := validBatch()
	req.Source = "Monitor"
	if err := newTestValidator().Validate(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidatorOpenTagListAcceptsAnything(t *testing.T) {
	v := NewValidator([]string{"monitor"}, nil, 0)
	req := validBatch()
	req.Events[0].SourceTag = "anything-goes"
	if err := v.Validate(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsValidationError(t *testing.T) {
	if IsValidationError(errors.New("plain")) {
		t.Fatal("plain errors are not validation errors")
	}
	wrapped := ValidationError{reason: errUnknownTag}
	if !errors.Is(wrapped, errUnknownTag) {
		t.Fatal("validation errors must unwrap to their reason")
	}
}
