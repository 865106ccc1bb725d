package csvio

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/sangmeshafzalpur/minimini/internal/timetable"
)

// SlotRow is the flat export form of a scheduled slot.
type SlotRow struct {
	Division string `csv:"division"`
	Day      string `csv:"day"`
	Period   int    `csv:"period"`
	Span     int    `csv:"span"`
	Type     string `csv:"type"`
	Name     string `csv:"name"`
	Faculty  string `csv:"faculty"`
	Room     string `csv:"room"`
	Start    string `csv:"start"`
	End      string `csv:"end"`
}

// SlotRows flattens a result in division order; breaks keep period 0.
func SlotRows(result *timetable.Result) []*SlotRow {
	if result == nil {
		return nil
	}
	var rows []*SlotRow
	for _, division := range result.Order {
		for _, day := range result.Divisions[division] {
			for _, slot := range day.Slots {
				rows = append(rows, &SlotRow{
					Division: division,
					Day:      day.Day,
					Period:   slot.Period,
					Span:     slot.Span,
					Type:     string(slot.Kind),
					Name:     slot.Name,
					Faculty:  slot.Faculty,
					Room:     slot.Room,
					Start:    slot.Start,
					End:      slot.End,
				})
			}
		}
	}
	return rows
}

// WriteSlots writes the flat slot listing of result to out.
func WriteSlots(out io.Writer, result *timetable.Result) error {
	rows := SlotRows(result)
	if rows == nil {
		rows = []*SlotRow{}
	}
	if err := gocsv.MarshalCSV(&rows, gocsv.NewSafeCSVWriter(csv.NewWriter(out))); err != nil {
		return fmt.Errorf("write slots: %w", err)
	}
	return nil
}
