package dto

import (
	"strconv"
	"strings"
	"time"

	"github.com/sangmeshafzalpur/minimini/internal/models"
	"github.com/sangmeshafzalpur/minimini/internal/timetable"
)

// AcademicMeta identifies the class a timetable is generated for.
type AcademicMeta struct {
	AcademicYear string `json:"academicYear" validate:"required"`
	SemesterType string `json:"semesterType" validate:"required,oneof=Odd Even"`
	Semester     int    `json:"semester" validate:"required,min=1,max=8"`
	Branch       string `json:"branch" validate:"required"`
	ClassNo      string `json:"classNo" validate:"required"`
	Section      string `json:"section"`
}

// Key returns the academic key under which saved versions are grouped.
func (m AcademicMeta) Key() string {
	parts := []string{
		strings.TrimSpace(m.AcademicYear),
		m.SemesterType,
		strconv.Itoa(m.Semester),
		strings.TrimSpace(m.Branch),
		strings.TrimSpace(m.ClassNo),
	}
	if section := strings.TrimSpace(m.Section); section != "" {
		parts = append(parts, section)
	}
	return strings.ToUpper(strings.Join(parts, "/"))
}

// SubjectInput is one subject demand line.
type SubjectInput struct {
	Name    string `json:"name" validate:"required,max=64"`
	Type    string `json:"type" validate:"required,oneof=Theory Lab"`
	Count   int    `json:"count" validate:"min=0,max=10"`
	Faculty string `json:"faculty"`
}

// GridSettings are the shape parameters shared by generate and preview.
type GridSettings struct {
	WorkingDays   int            `json:"workingDays" validate:"required,min=1,max=6"`
	PeriodsPerDay int            `json:"periodsPerDay" validate:"required,min=1,max=12"`
	ScheduleType  string         `json:"scheduleType" validate:"required,oneof=Morning Evening"`
	Subjects      []SubjectInput `json:"subjects" validate:"dive"`
	Rooms         []string       `json:"rooms" validate:"dive,required"`
	Reproducible  *bool          `json:"reproducible,omitempty"`
	Date          string         `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// GenerateTimetableRequest instructs the engine to build a proposal for every division.
type GenerateTimetableRequest struct {
	AcademicMeta
	GridSettings
	Teachers  []string `json:"teachers" validate:"omitempty,dive,required"`
	Divisions []string `json:"divisions" validate:"required,min=1,dive,required"`
}

// PreviewDayRequest runs the engine once without a division label or a cross-division ledger.
type PreviewDayRequest struct {
	GridSettings
}

// DivisionTimetable is the week of one division.
type DivisionTimetable struct {
	Division string                  `json:"division"`
	Days     []timetable.DaySchedule `json:"days"`
}

// LoadStats compares required teaching periods against the periods available per division.
type LoadStats struct {
	Required  int `json:"required"`
	Available int `json:"available"`
}

// GenerateTimetableResponse returns a stored proposal.
type GenerateTimetableResponse struct {
	ProposalID   string                         `json:"proposalId"`
	Mode         string                         `json:"mode"`
	AcademicKey  string                         `json:"academicKey"`
	Divisions    []DivisionTimetable            `json:"divisions"`
	Warning      string                         `json:"warning,omitempty"`
	Shortfalls   map[string]timetable.Shortfall `json:"shortfalls,omitempty"`
	Load         LoadStats                      `json:"load"`
	GeneratedFor string                         `json:"generatedFor,omitempty"`
	Reproducible bool                           `json:"reproducible"`
	Cached       bool                           `json:"cached"`
	ExpiresAt    time.Time                      `json:"expiresAt"`
}

// PreviewResponse returns an unlabeled single-run week.
type PreviewResponse struct {
	Days      []timetable.DaySchedule `json:"days"`
	Warning   string                  `json:"warning,omitempty"`
	Shortfall timetable.Shortfall     `json:"shortfall"`
	Load      LoadStats               `json:"load"`
}

// SaveTimetableRequest persists a proposal as a new timetable version.
type SaveTimetableRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
	Publish    bool   `json:"publish"`
}

// TimetableQuery filters stored versions by academic key.
type TimetableQuery struct {
	AcademicKey string `form:"academicKey" json:"academicKey" validate:"required"`
}

// TimetableDocument is the metadata stored alongside a saved version.
type TimetableDocument struct {
	Academic      AcademicMeta                   `json:"academic"`
	Configuration timetable.Configuration        `json:"configuration"`
	Warning       string                         `json:"warning,omitempty"`
	Shortfalls    map[string]timetable.Shortfall `json:"shortfalls,omitempty"`
	Load          LoadStats                      `json:"load"`
	GeneratedFor  string                         `json:"generatedFor,omitempty"`
}

// TimetableDetail is a saved version with its slots regrouped per division and day.
type TimetableDetail struct {
	Timetable models.Timetable    `json:"timetable"`
	Document  TimetableDocument   `json:"document"`
	Divisions []DivisionTimetable `json:"divisions"`
}

// CreateExportRequest asks for a rendered grid of a saved timetable.
type CreateExportRequest struct {
	Format   string `json:"format" validate:"required,oneof=csv pdf"`
	Division string `json:"division"`
}

// ExportStatusResponse reports the state of an export job and, once finished, its download link.
type ExportStatusResponse struct {
	Export      models.TimetableExport `json:"export"`
	DownloadURL string                 `json:"downloadUrl,omitempty"`
	ExpiresAt   *time.Time             `json:"expiresAt,omitempty"`
}
