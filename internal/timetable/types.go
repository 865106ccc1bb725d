package timetable

import "strings"

// SubjectKind distinguishes single-period lectures from two-period lab blocks.
type SubjectKind string

const (
	KindTheory SubjectKind = "Theory"
	KindLab    SubjectKind = "Lab"
)

// UnassignedFaculty is the sentinel carried by subjects whose faculty has not been chosen yet.
const UnassignedFaculty = "Unassigned"

// Room category prefixes.
const (
	LectureRoomPrefix = "C-"
	LabRoomPrefix     = "L-"
)

// DefaultLectureRoom is used for theory sessions when no lecture room is configured.
const DefaultLectureRoom = "Class Room"

// ScheduleType anchors period 1 on the wall clock.
type ScheduleType string

const (
	ScheduleMorning ScheduleType = "Morning"
	ScheduleEvening ScheduleType = "Evening"
)

// Minutes since midnight for the first period of each schedule type.
const (
	MorningStartMinutes = 9 * 60
	EveningStartMinutes = 13 * 60
)

// Durations in minutes.
const (
	PeriodDuration    = 55
	LabDuration       = 120
	MiniBreakDuration = 30
	LunchDuration     = 45
)

// MaxTheoryPerDay caps strict theory placements per division per day.
const MaxTheoryPerDay = 4

// Break names.
const (
	MiniBreakName  = "Mini Break"
	LunchBreakName = "Lunch Break"
	FreePeriodName = "Free Period"
)

// Days lists the week in scheduling order; a run uses the first WorkingDays entries.
var Days = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// SubjectSpec is one line of demand in a configuration.
type SubjectSpec struct {
	Name    string      `json:"name"`
	Kind    SubjectKind `json:"type"`
	Count   int         `json:"count"`
	Faculty string      `json:"faculty"`
}

// Assigned reports whether the subject carries a concrete faculty identifier.
func (s SubjectSpec) Assigned() bool {
	faculty := strings.TrimSpace(s.Faculty)
	return faculty != "" && faculty != UnassignedFaculty
}

// Configuration is the read-only input of a generation run.
type Configuration struct {
	WorkingDays   int           `json:"workingDays"`
	PeriodsPerDay int           `json:"periodsPerDay"`
	ScheduleType  ScheduleType  `json:"scheduleType"`
	Subjects      []SubjectSpec `json:"subjects"`
	Rooms         []string      `json:"rooms"`
	Divisions     []string      `json:"divisions"`
}

// StartMinutes returns the clock anchor for the configured schedule type.
func (c Configuration) StartMinutes() int {
	if c.ScheduleType == ScheduleEvening {
		return EveningStartMinutes
	}
	return MorningStartMinutes
}

// DayNames returns the working days of the configuration in order.
func (c Configuration) DayNames() []string {
	n := c.WorkingDays
	if n < 0 {
		n = 0
	}
	if n > len(Days) {
		n = len(Days)
	}
	out := make([]string, n)
	copy(out, Days[:n])
	return out
}

// IsLabRoom reports whether the room identifier carries the lab prefix.
func IsLabRoom(room string) bool {
	return strings.HasPrefix(room, LabRoomPrefix)
}

// IsLectureRoom reports whether the room identifier carries the lecture prefix.
func IsLectureRoom(room string) bool {
	return strings.HasPrefix(room, LectureRoomPrefix)
}

// SlotKind classifies a scheduled slot.
type SlotKind string

const (
	SlotKindBreak  SlotKind = "break"
	SlotKindTheory SlotKind = "theory"
	SlotKindLab    SlotKind = "lab"
	SlotKindFree   SlotKind = "free"
)

// ScheduledSlot is one entry of a day's sequence: a break, a session or a free period.
type ScheduledSlot struct {
	Kind     SlotKind `json:"type"`
	Name     string   `json:"name"`
	Period   int      `json:"logicalPeriod,omitempty"`
	Span     int      `json:"spans"`
	Faculty  string   `json:"teacher,omitempty"`
	Room     string   `json:"room,omitempty"`
	Start    string   `json:"startTime"`
	End      string   `json:"endTime"`
	Duration int      `json:"duration"`
}

// IsBreak reports whether the slot is a fixed break.
func (s ScheduledSlot) IsBreak() bool { return s.Kind == SlotKindBreak }

// IsSession reports whether the slot carries a placed subject.
func (s ScheduledSlot) IsSession() bool {
	return s.Kind == SlotKindTheory || s.Kind == SlotKindLab
}

// DaySchedule is the ordered slot sequence of one working day.
type DaySchedule struct {
	Day   string          `json:"day"`
	Slots []ScheduledSlot `json:"periods"`
}

// Shortfall summarises sessions left unplaced for a division at week's end.
type Shortfall struct {
	Unplaced  int            `json:"unplaced"`
	Remaining map[string]int `json:"remaining,omitempty"`
}

// DivisionSchedule is the week produced for a single division.
type DivisionSchedule struct {
	Division  string        `json:"division"`
	Days      []DaySchedule `json:"days"`
	Shortfall Shortfall     `json:"shortfall"`
}

// Result is the outcome of an orchestrated run over every configured division.
type Result struct {
	Divisions  map[string][]DaySchedule `json:"divisions"`
	Order      []string                 `json:"order"`
	Shortfalls map[string]Shortfall     `json:"shortfalls,omitempty"`
	Warning    string                   `json:"warning,omitempty"`
	Ledger     *Ledger                  `json:"-"`
}

// requiredCounts seeds the per-division session budget. Duplicate subject names share one budget.
func requiredCounts(subjects []SubjectSpec) map[string]int {
	counts := make(map[string]int, len(subjects))
	for _, s := range subjects {
		counts[s.Name] += s.Count
	}
	return counts
}
