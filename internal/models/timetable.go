package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableStatus represents lifecycle phases for saved timetables.
type TimetableStatus string

const (
	TimetableStatusDraft     TimetableStatus = "DRAFT"
	TimetableStatusPublished TimetableStatus = "PUBLISHED"
	TimetableStatusArchived  TimetableStatus = "ARCHIVED"
)

// Timetable is a saved, versioned generation result for one academic key
// (year, semester, branch, class and section).
type Timetable struct {
	ID          string          `db:"id" json:"id"`
	AcademicKey string          `db:"academic_key" json:"academic_key"`
	Version     int             `db:"version" json:"version"`
	Status      TimetableStatus `db:"status" json:"status"`
	Meta        types.JSONText  `db:"meta" json:"meta"`
	CreatedBy   string          `db:"created_by" json:"created_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
	PublishedAt *time.Time      `db:"published_at" json:"published_at,omitempty"`
}

// TimetableSlot is one stored entry of a division's day: a session, a break or a free period.
// Position keeps the original sequence order within the day.
type TimetableSlot struct {
	ID          string    `db:"id" json:"id"`
	TimetableID string    `db:"timetable_id" json:"timetable_id"`
	Division    string    `db:"division" json:"division"`
	DayOfWeek   int       `db:"day_of_week" json:"day_of_week"`
	Position    int       `db:"position" json:"position"`
	Kind        string    `db:"kind" json:"kind"`
	Name        string    `db:"name" json:"name"`
	Period      int       `db:"period" json:"period"`
	Span        int       `db:"span" json:"span"`
	Faculty     *string   `db:"faculty" json:"faculty,omitempty"`
	Room        *string   `db:"room" json:"room,omitempty"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	Duration    int       `db:"duration" json:"duration"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// TimetableSummary aggregates the versions stored for an academic key.
type TimetableSummary struct {
	AcademicKey string          `json:"academic_key"`
	ActiveID    *string         `json:"active_id,omitempty"`
	Versions    []TimetableMeta `json:"versions"`
}

// TimetableMeta is the lightweight list view of a version.
type TimetableMeta struct {
	ID        string          `json:"id"`
	Version   int             `json:"version"`
	Status    TimetableStatus `json:"status"`
	Unplaced  int             `json:"unplaced"`
	CreatedAt time.Time       `json:"created_at"`
}
