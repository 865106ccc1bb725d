package csvio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sangmeshafzalpur/minimini/internal/timetable"
)

func TestLoadSubjects(t *testing.T) {
	in := strings.NewReader("name,type,count,faculty\nDS,Theory,4,T1\nLAB-DBMS,lab,1,T7\n")
	subjects, err := LoadSubjects(in, ',')
	require.NoError(t, err)
	assert.Equal(t, []timetable.SubjectSpec{
		{Name: "DS", Kind: timetable.KindTheory, Count: 4, Faculty: "T1"},
		{Name: "LAB-DBMS", Kind: timetable.KindLab, Count: 1, Faculty: "T7"},
	}, subjects)
}

func TestLoadSubjectsSemicolon(t *testing.T) {
	in := strings.NewReader("name;type;count;faculty\nOS;Theory;2;T2\n")
	subjects, err := LoadSubjects(in, ';')
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, "T2", subjects[0].Faculty)
}

func TestLoadSubjectsRejectsBadRows(t *testing.T) {
	_, err := LoadSubjects(strings.NewReader("name,type,count,faculty\nDS,Seminar,4,T1\n"), ',')
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = LoadSubjects(strings.NewReader("name,type,count,faculty\n,Theory,4,T1\n"), ',')
	require.Error(t, err)

	_, err = LoadSubjects(strings.NewReader("name,type,count,faculty\nDS,Theory,-1,T1\n"), ',')
	require.Error(t, err)
}

func TestLoadRoomsSkipsBlanks(t *testing.T) {
	rooms, err := LoadRooms(strings.NewReader("room\nC-101\n\" \"\nL-201\n"), ',')
	require.NoError(t, err)
	assert.Equal(t, []string{"C-101", "L-201"}, rooms)
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	subjectsPath := filepath.Join(dir, "subjects.csv")
	roomsPath := filepath.Join(dir, "rooms.csv")
	require.NoError(t, os.WriteFile(subjectsPath, []byte("name,type,count,faculty\nDS,Theory,4,T1\n"), 0o600))
	require.NoError(t, os.WriteFile(roomsPath, []byte("room\nC-101\n"), 0o600))

	subjects, err := LoadSubjectsFile(subjectsPath, ',')
	require.NoError(t, err)
	assert.Len(t, subjects, 1)

	rooms, err := LoadRoomsFile(roomsPath, ',')
	require.NoError(t, err)
	assert.Equal(t, []string{"C-101"}, rooms)

	_, err = LoadRoomsFile(filepath.Join(dir, "missing.csv"), ',')
	require.Error(t, err)
}

func TestWriteSlots(t *testing.T) {
	result := &timetable.Result{
		Order: []string{"A"},
		Divisions: map[string][]timetable.DaySchedule{
			"A": {{Day: "Monday", Slots: []timetable.ScheduledSlot{
				{Kind: timetable.SlotKindLab, Name: "LAB", Period: 1, Span: 2, Faculty: "T7", Room: "L-201", Start: "09:00", End: "11:00"},
				{Kind: timetable.SlotKindBreak, Name: timetable.MiniBreakName, Span: 1, Start: "11:00", End: "11:30"},
			}}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSlots(&buf, result))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "division,day,period,span,type,name,faculty,room,start,end", lines[0])
	assert.Equal(t, "A,Monday,1,2,lab,LAB,T7,L-201,09:00,11:00", lines[1])
	assert.Equal(t, "A,Monday,0,1,break,Mini Break,,,11:00,11:30", lines[2])
}
