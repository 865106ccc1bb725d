package timetable

import "strconv"

// SlotInfoKind tells what a visual column holds.
type SlotInfoKind int

const (
	SlotNone SlotInfoKind = iota
	SlotBreak
	SlotPeriod
)

// SlotInfo describes a visual column of a day grid.
type SlotInfo struct {
	Kind     SlotInfoKind
	Name     string
	Duration int
	Period   int
}

// Visual column positions of the fixed breaks.
const (
	miniBreakColumn  = 3
	lunchBreakColumn = 6
)

// LunchThreshold is the smallest periods-per-day count that gets a lunch break.
const LunchThreshold = 5

// SlotAt maps a 1-based visual column to a break or a logical period.
// The mini break always follows period 2; with five or more periods lunch takes the fifth teaching slot.
func SlotAt(visualIndex, periodsPerDay int) SlotInfo {
	if visualIndex == miniBreakColumn {
		return SlotInfo{Kind: SlotBreak, Name: MiniBreakName, Duration: MiniBreakDuration}
	}
	hasLunch := periodsPerDay >= LunchThreshold
	if visualIndex == lunchBreakColumn && hasLunch {
		return SlotInfo{Kind: SlotBreak, Name: LunchBreakName, Duration: LunchDuration}
	}

	breaksPassed := 0
	if visualIndex > miniBreakColumn {
		breaksPassed++
	}
	if hasLunch && visualIndex > lunchBreakColumn {
		breaksPassed++
	}
	logical := visualIndex - breaksPassed
	if logical < 1 || logical > periodsPerDay {
		return SlotInfo{Kind: SlotNone}
	}
	return SlotInfo{Kind: SlotPeriod, Name: periodLabel(logical), Duration: PeriodDuration, Period: logical}
}

// VisualColumns returns the number of grid columns for a day.
func VisualColumns(periodsPerDay int) int {
	if periodsPerDay >= LunchThreshold {
		return periodsPerDay + 2
	}
	return periodsPerDay + 1
}

// VisualIndex returns the visual column of a logical period, the inverse of SlotAt.
func VisualIndex(period, periodsPerDay int) int {
	idx := period
	if period >= miniBreakColumn {
		idx++
	}
	if periodsPerDay >= LunchThreshold && period >= LunchThreshold {
		idx++
	}
	return idx
}

// breakBefore returns the break emitted immediately before a logical period, if any.
func breakBefore(period, periodsPerDay int) (SlotInfo, bool) {
	switch {
	case period == 3:
		return SlotAt(miniBreakColumn, periodsPerDay), true
	case period == LunchThreshold && periodsPerDay >= LunchThreshold:
		return SlotAt(lunchBreakColumn, periodsPerDay), true
	}
	return SlotInfo{}, false
}

// fitsLab reports whether a two-period block starting at period stays inside the day
// without straddling a break.
func fitsLab(period, periodsPerDay int) bool {
	if period+1 > periodsPerDay {
		return false
	}
	_, split := breakBefore(period+1, periodsPerDay)
	return !split
}

func periodLabel(n int) string {
	return "P" + strconv.Itoa(n)
}
