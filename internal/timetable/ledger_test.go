package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerReserveAndConflicts(t *testing.T) {
	l := NewLedger()
	l.Reserve("Monday", "T1", "L-201", 3, 2)

	assert.True(t, l.Conflicts("Monday", "T1", "", 3, 1))
	assert.True(t, l.Conflicts("Monday", "T1", "", 4, 1))
	assert.True(t, l.Conflicts("Monday", "", "L-201", 2, 2))
	assert.False(t, l.Conflicts("Monday", "T1", "", 5, 1))
	assert.False(t, l.Conflicts("Monday", "T2", "L-202", 3, 2))
	assert.False(t, l.Conflicts("Tuesday", "T1", "L-201", 3, 2))

	assert.Equal(t, []string{"T1"}, l.Faculty("Monday", 4))
	assert.Equal(t, []string{"L-201"}, l.LabRooms("Monday", 3))
	assert.Empty(t, l.Faculty("Monday", 1))
}

func TestLedgerIgnoresEmptyIdentifiers(t *testing.T) {
	l := NewLedger()
	l.Reserve("Monday", "T1", "", 1, 1)
	l.Reserve("Monday", "T2", "", 1, 1)

	assert.Empty(t, l.LabRooms("Monday", 1))
	assert.Equal(t, []string{"T1", "T2"}, l.Faculty("Monday", 1))
	assert.False(t, l.Conflicts("Monday", "", "", 1, 1))
}

func TestNilLedgerIsInert(t *testing.T) {
	var l *Ledger
	l.Reserve("Monday", "T1", "L-201", 1, 2)
	assert.False(t, l.Conflicts("Monday", "T1", "L-201", 1, 2))
	assert.Nil(t, l.Faculty("Monday", 1))
	assert.Nil(t, l.LabRooms("Monday", 1))
}
