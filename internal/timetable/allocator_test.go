package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleDay(subjects []SubjectSpec, rooms []string, ppd int) Configuration {
	return Configuration{
		WorkingDays:   1,
		PeriodsPerDay: ppd,
		ScheduleType:  ScheduleMorning,
		Subjects:      subjects,
		Rooms:         rooms,
		Divisions:     []string{"A"},
	}
}

func TestAllocateDayFallbackFillsPastTheoryCap(t *testing.T) {
	cfg := singleDay([]SubjectSpec{{Name: "MATH", Kind: KindTheory, Count: 10, Faculty: "T1"}}, []string{"C-101"}, 7)
	counts := requiredCounts(cfg.Subjects)

	day := allocateDay(cfg, "Monday", NewLedger(), counts, "seed-base")

	sessions := 0
	for _, slot := range day.Slots {
		if slot.IsSession() {
			sessions++
			assert.Equal(t, "MATH", slot.Name)
			assert.Equal(t, "C-101", slot.Room)
		}
	}
	assert.Equal(t, 7, sessions)
	assert.Equal(t, 3, counts["MATH"])
	assert.Len(t, day.Slots, 9)
}

func TestAllocateDayNeverPlacesLabWithoutLabRoom(t *testing.T) {
	cfg := singleDay([]SubjectSpec{{Name: "LAB-OS", Kind: KindLab, Count: 1, Faculty: "T5"}}, []string{"C-101"}, 5)
	counts := requiredCounts(cfg.Subjects)

	day := allocateDay(cfg, "Monday", NewLedger(), counts, "seed-base")

	for _, slot := range day.Slots {
		assert.False(t, slot.IsSession())
	}
	assert.Equal(t, 1, counts["LAB-OS"])
}

func TestAllocateDayAvoidsReservedLabRoom(t *testing.T) {
	cfg := singleDay([]SubjectSpec{{Name: "LAB-OS", Kind: KindLab, Count: 1, Faculty: "T5"}}, []string{"L-201", "L-202"}, 5)
	ledger := NewLedger()
	ledger.Reserve("Monday", "T9", "L-201", 1, 2)

	day := allocateDay(cfg, "Monday", ledger, requiredCounts(cfg.Subjects), "seed-base")

	require.Equal(t, SlotKindLab, day.Slots[0].Kind)
	assert.Equal(t, "L-202", day.Slots[0].Room)
	assert.Equal(t, []string{"L-201", "L-202"}, ledger.LabRooms("Monday", 2))
	assert.Equal(t, []string{"T5", "T9"}, ledger.Faculty("Monday", 1))
}

func TestAllocateDayFallbackLabSkipsBusyFaculty(t *testing.T) {
	cfg := singleDay([]SubjectSpec{{Name: "LAB-OS", Kind: KindLab, Count: 1, Faculty: "T5"}}, []string{"L-201", "L-202"}, 5)
	ledger := NewLedger()
	ledger.Reserve("Monday", "T5", "L-201", 1, 2)

	day := allocateDay(cfg, "Monday", ledger, requiredCounts(cfg.Subjects), "seed-base")

	assert.False(t, day.Slots[0].IsSession())
	assert.False(t, day.Slots[1].IsSession())
	var lab *ScheduledSlot
	for i := range day.Slots {
		if day.Slots[i].Kind == SlotKindLab {
			lab = &day.Slots[i]
		}
	}
	require.NotNil(t, lab)
	assert.Equal(t, 3, lab.Period)
	assert.Equal(t, []string{"L-201"}, ledger.LabRooms("Monday", 1))
	assert.Equal(t, []string{"T5"}, ledger.Faculty("Monday", 3))
}

func TestAllocateDayTheoryDoesNotReserveRooms(t *testing.T) {
	cfg := singleDay([]SubjectSpec{{Name: "DS", Kind: KindTheory, Count: 1, Faculty: "T1"}}, []string{"C-101"}, 3)
	ledger := NewLedger()

	day := allocateDay(cfg, "Monday", ledger, requiredCounts(cfg.Subjects), "seed-base")

	assert.Equal(t, SlotKindTheory, day.Slots[0].Kind)
	assert.Equal(t, []string{"T1"}, ledger.Faculty("Monday", 1))
	assert.Empty(t, ledger.LabRooms("Monday", 1))
}

func TestRequiredCountsMergesDuplicateNames(t *testing.T) {
	counts := requiredCounts([]SubjectSpec{
		{Name: "DS", Kind: KindTheory, Count: 2, Faculty: "T1"},
		{Name: "DS", Kind: KindTheory, Count: 1, Faculty: "T1"},
		{Name: "OS", Kind: KindTheory, Count: 0, Faculty: "T2"},
	})
	assert.Equal(t, map[string]int{"DS": 3, "OS": 0}, counts)
}
