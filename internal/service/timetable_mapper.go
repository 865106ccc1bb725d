package service

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/sangmeshafzalpur/minimini/internal/dto"
	"github.com/sangmeshafzalpur/minimini/internal/models"
	"github.com/sangmeshafzalpur/minimini/internal/timetable"
)

func buildConfiguration(grid dto.GridSettings, divisions []string) timetable.Configuration {
	subjects := make([]timetable.SubjectSpec, 0, len(grid.Subjects))
	for _, s := range grid.Subjects {
		subjects = append(subjects, timetable.SubjectSpec{
			Name:    strings.TrimSpace(s.Name),
			Kind:    timetable.SubjectKind(s.Type),
			Count:   s.Count,
			Faculty: strings.TrimSpace(s.Faculty),
		})
	}
	return timetable.Configuration{
		WorkingDays:   grid.WorkingDays,
		PeriodsPerDay: grid.PeriodsPerDay,
		ScheduleType:  timetable.ScheduleType(grid.ScheduleType),
		Subjects:      subjects,
		Rooms:         trimAll(grid.Rooms),
		Divisions:     trimAll(divisions),
	}
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// computeLoad compares required periods per division (labs count twice) with the periods the week offers.
func computeLoad(cfg timetable.Configuration) dto.LoadStats {
	var load dto.LoadStats
	for _, s := range cfg.Subjects {
		if s.Kind == timetable.KindLab {
			load.Required += 2 * s.Count
			continue
		}
		load.Required += s.Count
	}
	load.Available = len(cfg.DayNames()) * cfg.PeriodsPerDay
	return load
}

func totalUnplaced(shortfalls map[string]timetable.Shortfall) int {
	total := 0
	for _, sf := range shortfalls {
		total += sf.Unplaced
	}
	return total
}

func divisionsOf(result timetable.Result) []dto.DivisionTimetable {
	out := make([]dto.DivisionTimetable, 0, len(result.Order))
	for _, name := range result.Order {
		out = append(out, dto.DivisionTimetable{Division: name, Days: result.Divisions[name]})
	}
	return out
}

// flattenSlots turns a result into rows keyed by division, 1-based day and position within the day.
func flattenSlots(timetableID string, result timetable.Result) []models.TimetableSlot {
	var rows []models.TimetableSlot
	for _, division := range result.Order {
		for dayIdx, day := range result.Divisions[division] {
			for pos, slot := range day.Slots {
				rows = append(rows, models.TimetableSlot{
					TimetableID: timetableID,
					Division:    division,
					DayOfWeek:   dayIdx + 1,
					Position:    pos,
					Kind:        string(slot.Kind),
					Name:        slot.Name,
					Period:      slot.Period,
					Span:        slot.Span,
					Faculty:     optionalString(slot.Faculty),
					Room:        optionalString(slot.Room),
					StartTime:   slot.Start,
					EndTime:     slot.End,
					Duration:    slot.Duration,
				})
			}
		}
	}
	return rows
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// groupSlots rebuilds division weeks from stored rows. Divisions follow order first; unknown ones follow alphabetically.
func groupSlots(order []string, dayNames []string, rows []models.TimetableSlot) []dto.DivisionTimetable {
	byDivision := make(map[string]map[int][]models.TimetableSlot)
	maxDay := len(dayNames)
	for _, row := range rows {
		days, ok := byDivision[row.Division]
		if !ok {
			days = make(map[int][]models.TimetableSlot)
			byDivision[row.Division] = days
		}
		days[row.DayOfWeek] = append(days[row.DayOfWeek], row)
		if row.DayOfWeek > maxDay {
			maxDay = row.DayOfWeek
		}
	}

	names := make([]string, 0, len(byDivision))
	seen := make(map[string]bool, len(byDivision))
	for _, name := range order {
		if _, ok := byDivision[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range byDivision {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	names = append(names, rest...)

	out := make([]dto.DivisionTimetable, 0, len(names))
	for _, name := range names {
		week := make([]timetable.DaySchedule, 0, maxDay)
		for day := 1; day <= maxDay; day++ {
			dayRows := byDivision[name][day]
			sort.SliceStable(dayRows, func(i, j int) bool { return dayRows[i].Position < dayRows[j].Position })
			slots := make([]timetable.ScheduledSlot, 0, len(dayRows))
			for _, row := range dayRows {
				slots = append(slots, timetable.ScheduledSlot{
					Kind:     timetable.SlotKind(row.Kind),
					Name:     row.Name,
					Period:   row.Period,
					Span:     row.Span,
					Faculty:  derefString(row.Faculty),
					Room:     derefString(row.Room),
					Start:    row.StartTime,
					End:      row.EndTime,
					Duration: row.Duration,
				})
			}
			week = append(week, timetable.DaySchedule{Day: dayName(dayNames, day), Slots: slots})
		}
		out = append(out, dto.DivisionTimetable{Division: name, Days: week})
	}
	return out
}

func dayName(configured []string, day int) string {
	if day >= 1 && day <= len(configured) {
		return configured[day-1]
	}
	if day >= 1 && day <= len(timetable.Days) {
		return timetable.Days[day-1]
	}
	return ""
}

func decodeDocument(raw []byte) (dto.TimetableDocument, error) {
	var doc dto.TimetableDocument
	if len(raw) == 0 {
		return doc, nil
	}
	err := json.Unmarshal(raw, &doc)
	return doc, err
}
