package models

import (
	"time"

	"github.com/google/uuid"
)

// Stay is the unit of analysis: one ICU stay with its administrative bounds.
type Stay struct {
	StayID      int64      `json:"stay_id"`
	AdmissionID int64      `json:"admission_id"`
	SubjectID   int64      `json:"subject_id"`
	InTime      time.Time  `json:"in_time"`
	OutTime     *time.Time `json:"out_time,omitempty"`
	Age         *float64   `json:"age,omitempty"`
	Gender      string     `json:"gender,omitempty"`
}

// ChartEvent is one timestamped observation attributed to a stay.
// Events are immutable; the platform only reads them.
type ChartEvent struct {
	ID        int64     `json:"id"`
	StayID    int64     `json:"stay_id"`
	SubjectID int64     `json:"subject_id"`
	SourceTag string    `json:"source_tag"` // instrument/panel/era, e.g. "sysbp-arterial"
	ChartedAt time.Time `json:"charted_at"`
	Value     float64   `json:"value"`
	IsError   bool      `json:"is_error"`
}

// MonitoringWindow is the clinically estimated anchor interval for a stay.
// Both bounds nil means no proxy-signal data was found; that is a normal,
// reportable outcome, not an error.
type MonitoringWindow struct {
	StayID int64      `json:"stay_id"`
	Start  *time.Time `json:"start,omitempty"`
	End    *time.Time `json:"end,omitempty"`
}

// FeatureResult is the output of one extractor invocation for one stay.
// An absent result keeps the row with all four measurement columns NULL so
// downstream joins never lose a stay.
type FeatureResult struct {
	StayID     int64          `json:"stay_id"`
	Feature    string         `json:"feature"`
	Value      *float64       `json:"value,omitempty"`
	ObservedAt *time.Time     `json:"observed_at,omitempty"`
	SourceTag  *string        `json:"source_tag,omitempty"`
	Offset     *time.Duration `json:"offset_from_reference,omitempty"`
}

// Present reports whether the result carries a measurement.
func (r FeatureResult) Present() bool {
	return r.Value != nil
}

// QualityReport summarizes one extractor invocation. Per-entity data issues
// (bad window, out-of-range value, no candidates) are absorbed here rather
// than raised.
type QualityReport struct {
	Feature          string `json:"feature"`
	TotalStays       int    `json:"total_stays"`
	StaysWithResult  int    `json:"stays_with_result"`
	RejectedError    int    `json:"rejected_error_flag"`
	RejectedValidity int    `json:"rejected_validity"`
	RejectedWindow   int    `json:"rejected_window"`
	NoCandidates     int    `json:"stays_without_candidates"`
	InvalidWindows   int    `json:"stays_invalid_window"`
	MissingWindows   int    `json:"stays_missing_window"`
}

// ExtractionRun tracks one batch invocation over one or more features.
type ExtractionRun struct {
	ID           uuid.UUID       `json:"id"`
	Features     []string        `json:"features"`
	Status       string          `json:"status"`
	Reports      []QualityReport `json:"reports,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	RequestedBy  string          `json:"requested_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// RunEvent is the kafka payload published on run lifecycle transitions.
type RunEvent struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // queued, running, completed, failed, quality-report
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// Feature store models for the serving path.
type Feature struct {
	Name       string     `json:"name"`
	Value      *float64   `json:"value"`
	ObservedAt *time.Time `json:"observed_at,omitempty"`
	SourceTag  string     `json:"source_tag,omitempty"`
}

type FeatureSet struct {
	StayID   int64              `json:"stay_id"`
	Features map[string]Feature `json:"features"`
	Version  int                `json:"version"`
}

// IngestEventRequest is the loader-service payload for a batch of raw events.
type IngestEventRequest struct {
	Source string       `json:"source"` // monitor, lab, ehr
	Events []ChartEvent `json:"events"`
}

type IngestResponse struct {
	ID        string    `json:"id"`
	Accepted  int       `json:"accepted"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
