package service

import (
	"fmt"
	"strings"

	"github.com/sangmeshafzalpur/minimini/internal/dto"
	"github.com/sangmeshafzalpur/minimini/internal/timetable"
	"github.com/sangmeshafzalpur/minimini/pkg/export"
)

const freeCell = "Free"

// GridDataset lays divisions out as the visual day grid: one row per division and day,
// one column per visual column of the day that holds a period or break. Lab cells repeat
// in both columns of their block.
func GridDataset(title string, periodsPerDay int, divisions []dto.DivisionTimetable) export.Dataset {
	if periodsPerDay <= 0 {
		periodsPerDay = maxPeriod(divisions)
	}
	columns := timetable.VisualColumns(periodsPerDay)

	headers := []string{"Division", "Day"}
	shaded := make(map[int]bool)
	var visible []timetable.SlotInfo
	for v := 1; v <= columns; v++ {
		info := timetable.SlotAt(v, periodsPerDay)
		if info.Kind == timetable.SlotNone {
			continue
		}
		if info.Kind == timetable.SlotBreak {
			shaded[len(headers)] = true
		}
		headers = append(headers, info.Name)
		visible = append(visible, info)
	}

	var rows [][]string
	for _, division := range divisions {
		for _, day := range division.Days {
			row := make([]string, 0, len(headers))
			row = append(row, division.Division, day.Day)
			for _, info := range visible {
				row = append(row, gridCell(info, day.Slots))
			}
			rows = append(rows, row)
		}
	}

	return export.Dataset{Title: title, Headers: headers, Rows: rows, Shaded: shaded}
}

func gridCell(info timetable.SlotInfo, slots []timetable.ScheduledSlot) string {
	switch info.Kind {
	case timetable.SlotBreak:
		return info.Name
	case timetable.SlotPeriod:
		for _, slot := range slots {
			if slot.IsBreak() || info.Period < slot.Period || info.Period >= slot.Period+slot.Span {
				continue
			}
			if !slot.IsSession() {
				return freeCell
			}
			return sessionLabel(slot)
		}
		return freeCell
	}
	return ""
}

func sessionLabel(slot timetable.ScheduledSlot) string {
	details := make([]string, 0, 2)
	if slot.Faculty != "" {
		details = append(details, slot.Faculty)
	}
	if slot.Room != "" {
		details = append(details, slot.Room)
	}
	if len(details) == 0 {
		return slot.Name
	}
	return fmt.Sprintf("%s (%s)", slot.Name, strings.Join(details, ", "))
}

func maxPeriod(divisions []dto.DivisionTimetable) int {
	highest := 0
	for _, division := range divisions {
		for _, day := range division.Days {
			for _, slot := range day.Slots {
				if end := slot.Period + slot.Span - 1; slot.Period > 0 && end > highest {
					highest = end
				}
			}
		}
	}
	return highest
}

func filterDivision(divisions []dto.DivisionTimetable, name string) []dto.DivisionTimetable {
	if name == "" {
		return divisions
	}
	for _, division := range divisions {
		if division.Division == name {
			return []dto.DivisionTimetable{division}
		}
	}
	return nil
}
