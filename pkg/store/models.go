package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type stayModel struct {
	StayID      int64      `gorm:"primaryKey;column:stay_id"`
	AdmissionID int64      `gorm:"column:admission_id;index"`
	SubjectID   int64      `gorm:"column:subject_id;index"`
	InTime      time.Time  `gorm:"column:in_time"`
	OutTime     *time.Time `gorm:"column:out_time"`
	Age         *float64   `gorm:"column:age"`
	Gender      string     `gorm:"column:gender"`
}

func (stayModel) TableName() string {
	return "icu_stays"
}

type chartEventModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	StayID    int64     `gorm:"column:stay_id;index"`
	SubjectID int64     `gorm:"column:subject_id;index"`
	SourceTag string    `gorm:"column:source_tag;index"`
	ChartedAt time.Time `gorm:"column:charted_at"`
	Value     float64   `gorm:"column:value"`
	IsError   bool      `gorm:"column:is_error"`
}

func (chartEventModel) TableName() string {
	return "chart_events"
}

type monitoringWindowModel struct {
	StayID int64      `gorm:"primaryKey;column:stay_id"`
	Start  *time.Time `gorm:"column:window_start"`
	End    *time.Time `gorm:"column:window_end"`
}

func (monitoringWindowModel) TableName() string {
	return "monitoring_windows"
}

// featureRow is one materialized feature result. Absent results keep the row
// with NULL measurement columns so downstream joins never lose a stay.
type featureRow struct {
	StayID        int64      `gorm:"primaryKey;column:stay_id"`
	Value         *float64   `gorm:"column:value"`
	ObservedAt    *time.Time `gorm:"column:observed_at"`
	SourceTag     *string    `gorm:"column:source_tag"`
	OffsetSeconds *float64   `gorm:"column:offset_seconds"`
}

type runModel struct {
	ID           uuid.UUID      `gorm:"primaryKey;column:id"`
	Features     datatypes.JSON `gorm:"column:features"`
	Status       string         `gorm:"column:status"`
	Reports      datatypes.JSON `gorm:"column:reports"`
	ErrorMessage string         `gorm:"column:error_message"`
	RequestedBy  string         `gorm:"column:requested_by"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	StartedAt    *time.Time     `gorm:"column:started_at"`
	CompletedAt  *time.Time     `gorm:"column:completed_at"`
}

func (runModel) TableName() string {
	return "extraction_runs"
}
