package timetable

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnassignedFaculty is returned when a subject still carries no concrete faculty.
	ErrUnassignedFaculty = errors.New("unassigned faculty")
	// ErrNoRooms is returned when the configuration lists no rooms at all.
	ErrNoRooms = errors.New("rooms list is empty")
)

// Options controls seeding of a run.
type Options struct {
	// Reproducible derives every seed from Date so identical inputs produce identical output.
	Reproducible bool
	// Date anchors reproducible seeds. Zero means today (UTC) according to Now.
	Date time.Time
	// Now is the clock used for the date fallback and for non-reproducible seeds.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) seedBase(day, division string) string {
	if !o.Reproducible {
		return volatileSeedKey(o.now(), day, division)
	}
	date := o.Date
	if date.IsZero() {
		date = o.now().UTC()
	}
	return SeedKey(date, day, division)
}

// Validate runs the pre-flight checks that gate a generation run.
func Validate(cfg Configuration) error {
	for _, s := range cfg.Subjects {
		if !s.Assigned() {
			return fmt.Errorf("%w: subject %q must have a faculty assigned", ErrUnassignedFaculty, s.Name)
		}
	}
	if len(cfg.Rooms) == 0 {
		return ErrNoRooms
	}
	return nil
}

// Generate schedules every division of cfg in order against one shared ledger.
// A configuration failing Validate yields a nil result.
func Generate(cfg Configuration, opts Options) (*Result, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	ledger := NewLedger()
	result := &Result{
		Divisions:  make(map[string][]DaySchedule, len(cfg.Divisions)),
		Order:      make([]string, 0, len(cfg.Divisions)),
		Shortfalls: make(map[string]Shortfall),
		Ledger:     ledger,
	}

	var warnings []string
	for _, division := range cfg.Divisions {
		schedule := generateDivision(cfg, division, ledger, opts)
		if _, seen := result.Divisions[division]; !seen {
			result.Order = append(result.Order, division)
		}
		result.Divisions[division] = schedule.Days
		if schedule.Shortfall.Unplaced > 0 {
			result.Shortfalls[division] = schedule.Shortfall
			warnings = append(warnings, shortfallWarning(division, schedule.Shortfall.Unplaced))
		}
	}
	result.Warning = strings.Join(warnings, " ")
	return result, nil
}

// GenerateDivision schedules a single division against ledger, which may be nil.
// An empty division label produces an unlabeled preview.
func GenerateDivision(cfg Configuration, division string, ledger *Ledger, opts Options) (*DivisionSchedule, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return generateDivision(cfg, division, ledger, opts), nil
}

func generateDivision(cfg Configuration, division string, ledger *Ledger, opts Options) *DivisionSchedule {
	counts := requiredCounts(cfg.Subjects)
	days := cfg.DayNames()
	schedule := &DivisionSchedule{
		Division: division,
		Days:     make([]DaySchedule, 0, len(days)),
	}
	for _, day := range days {
		schedule.Days = append(schedule.Days, allocateDay(cfg, day, ledger, counts, opts.seedBase(day, division)))
	}
	schedule.Shortfall = shortfallOf(counts)
	return schedule
}

func shortfallOf(counts map[string]int) Shortfall {
	var sf Shortfall
	for name, n := range counts {
		if n <= 0 {
			continue
		}
		if sf.Remaining == nil {
			sf.Remaining = make(map[string]int)
		}
		sf.Remaining[name] = n
		sf.Unplaced += n
	}
	return sf
}

func shortfallWarning(division string, unplaced int) string {
	label := division
	if label == "" {
		label = "Preview"
	}
	return fmt.Sprintf("Division %s: %d required sessions could not be placed; a best-effort fill was used for the remaining slots.", label, unplaced)
}

// Warning renders the shortfall notice of a single division schedule, or "" when nothing is missing.
func (d *DivisionSchedule) Warning() string {
	if d == nil || d.Shortfall.Unplaced == 0 {
		return ""
	}
	return shortfallWarning(d.Division, d.Shortfall.Unplaced)
}
