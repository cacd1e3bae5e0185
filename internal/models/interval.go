package models

import (
	"fmt"
	"time"
)

type IntervalKind string

const (
	KindStudy IntervalKind = "study"
	KindBreak IntervalKind = "break"
)

// IntervalRecord is one finished (or cut short) study or break countdown.
// Records are append-only.
type IntervalRecord struct {
	ID              string       `json:"id"`
	OwnerID         string       `json:"owner_id"`
	DurationMinutes float64      `json:"duration_minutes"`
	Kind            IntervalKind `json:"kind"`
	Label           string       `json:"label"`
	CreatedAt       time.Time    `json:"created_at"`
}

func (r IntervalRecord) Validate() error {
	if r.OwnerID == "" {
		return fmt.Errorf("interval record: owner id is required")
	}
	if r.DurationMinutes <= 0 {
		return fmt.Errorf("interval record: duration must be positive, got %.3f", r.DurationMinutes)
	}
	if r.Kind != KindStudy && r.Kind != KindBreak {
		return fmt.Errorf("interval record: unknown kind %q", r.Kind)
	}
	return nil
}

// CycleState is the controller's view of the running session.
type CycleState struct {
	Mode           SessionMode `json:"mode"`
	IsBreak        bool        `json:"is_break"`
	CycleCount     int         `json:"cycle_count"`
	StudyDuration  int         `json:"study_duration"`
	BreakDuration  int         `json:"break_duration"`
	ElapsedMinutes float64     `json:"elapsed_minutes"`
}

// SessionSummary is produced when a session is ended.
type SessionSummary struct {
	TotalStudyMinutes  float64   `json:"total_study_minutes"`
	CompletedTaskDelta int       `json:"completed_task_delta"`
	Cycles             int       `json:"cycles"`
	StartedAt          time.Time `json:"started_at"`
	EndedAt            time.Time `json:"ended_at"`
}

// DateRange bounds a query by creation date. Zero values mean unbounded.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// LastDays returns the range covering the previous n days up to now.
func LastDays(now time.Time, n int) DateRange {
	return DateRange{From: now.AddDate(0, 0, -n), To: now}
}
