package timetable

import "sort"

type periodUsage struct {
	faculty  map[string]struct{}
	labRooms map[string]struct{}
}

func newPeriodUsage() *periodUsage {
	return &periodUsage{
		faculty:  make(map[string]struct{}),
		labRooms: make(map[string]struct{}),
	}
}

// Ledger records, per day and logical period, which faculty members and lab rooms are committed.
// A single ledger is shared by every division of one run so later divisions avoid double-booking.
// Entries are additive only. A nil *Ledger disables cross-division tracking.
type Ledger struct {
	days map[string]map[int]*periodUsage
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{days: make(map[string]map[int]*periodUsage)}
}

// Reserve marks periods [start, start+span) of day as used by faculty and room.
// Empty identifiers are ignored.
func (l *Ledger) Reserve(day, faculty, room string, start, span int) {
	if l == nil {
		return
	}
	periods, ok := l.days[day]
	if !ok {
		periods = make(map[int]*periodUsage)
		l.days[day] = periods
	}
	for p := start; p < start+span; p++ {
		usage, ok := periods[p]
		if !ok {
			usage = newPeriodUsage()
			periods[p] = usage
		}
		if faculty != "" {
			usage.faculty[faculty] = struct{}{}
		}
		if room != "" {
			usage.labRooms[room] = struct{}{}
		}
	}
}

// Conflicts reports whether faculty or room is already committed in any period of [start, start+span).
func (l *Ledger) Conflicts(day, faculty, room string, start, span int) bool {
	if l == nil {
		return false
	}
	periods := l.days[day]
	if periods == nil {
		return false
	}
	for p := start; p < start+span; p++ {
		usage := periods[p]
		if usage == nil {
			continue
		}
		if faculty != "" {
			if _, busy := usage.faculty[faculty]; busy {
				return true
			}
		}
		if room != "" {
			if _, busy := usage.labRooms[room]; busy {
				return true
			}
		}
	}
	return false
}

// Faculty returns the sorted faculty identifiers committed at day/period.
func (l *Ledger) Faculty(day string, period int) []string {
	if usage := l.usage(day, period); usage != nil {
		return sortedKeys(usage.faculty)
	}
	return nil
}

// LabRooms returns the sorted lab rooms committed at day/period.
func (l *Ledger) LabRooms(day string, period int) []string {
	if usage := l.usage(day, period); usage != nil {
		return sortedKeys(usage.labRooms)
	}
	return nil
}

func (l *Ledger) usage(day string, period int) *periodUsage {
	if l == nil || l.days[day] == nil {
		return nil
	}
	return l.days[day][period]
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
