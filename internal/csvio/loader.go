package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/sangmeshafzalpur/minimini/internal/timetable"
)

// SubjectRow is one line of a subjects file: name,type,count,faculty.
type SubjectRow struct {
	Name    string `csv:"name"`
	Type    string `csv:"type"`
	Count   int    `csv:"count"`
	Faculty string `csv:"faculty"`
}

// RoomRow is one line of a rooms file.
type RoomRow struct {
	Room string `csv:"room"`
}

func newReader(in io.Reader, delim rune) *csv.Reader {
	r := csv.NewReader(in)
	r.Comma = delim
	r.TrimLeadingSpace = true
	return r
}

// LoadSubjects parses subject demand lines. Type is matched case-insensitively.
func LoadSubjects(in io.Reader, delim rune) ([]timetable.SubjectSpec, error) {
	rows := []*SubjectRow{}
	if err := gocsv.UnmarshalCSV(newReader(in, delim), &rows); err != nil {
		return nil, fmt.Errorf("parse subjects: %w", err)
	}

	subjects := make([]timetable.SubjectSpec, 0, len(rows))
	for i, row := range rows {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			return nil, fmt.Errorf("subjects line %d: name is required", i+2)
		}
		kind, err := parseKind(row.Type)
		if err != nil {
			return nil, fmt.Errorf("subjects line %d: %w", i+2, err)
		}
		if row.Count < 0 {
			return nil, fmt.Errorf("subjects line %d: count must not be negative", i+2)
		}
		subjects = append(subjects, timetable.SubjectSpec{
			Name:    name,
			Kind:    kind,
			Count:   row.Count,
			Faculty: strings.TrimSpace(row.Faculty),
		})
	}
	return subjects, nil
}

// LoadRooms parses a single-column rooms file, skipping blank entries.
func LoadRooms(in io.Reader, delim rune) ([]string, error) {
	rows := []*RoomRow{}
	if err := gocsv.UnmarshalCSV(newReader(in, delim), &rows); err != nil {
		return nil, fmt.Errorf("parse rooms: %w", err)
	}
	rooms := make([]string, 0, len(rows))
	for _, row := range rows {
		if room := strings.TrimSpace(row.Room); room != "" {
			rooms = append(rooms, room)
		}
	}
	return rooms, nil
}

// LoadSubjectsFile opens path and parses it with LoadSubjects.
func LoadSubjectsFile(path string, delim rune) ([]timetable.SubjectSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open subjects file: %w", err)
	}
	defer f.Close() //nolint:errcheck
	return LoadSubjects(f, delim)
}

// LoadRoomsFile opens path and parses it with LoadRooms.
func LoadRoomsFile(path string, delim rune) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rooms file: %w", err)
	}
	defer f.Close() //nolint:errcheck
	return LoadRooms(f, delim)
}

func parseKind(raw string) (timetable.SubjectKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "theory", "":
		return timetable.KindTheory, nil
	case "lab":
		return timetable.KindLab, nil
	default:
		return "", fmt.Errorf("unknown subject type %q", raw)
	}
}
