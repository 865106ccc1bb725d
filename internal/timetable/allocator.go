package timetable

import "fmt"

// Sub-seed salts; every per-slot ordering derives from the day seed so a day stays reproducible.
const (
	theoryOrderSalt uint32 = 0xA5A5A5A5
	labOrderSalt    uint32 = 0x5A5A5A5A
	labPoolStep            = 101
	theoryPoolStep         = 131
	fallbackLabStep        = 171
)

type placement struct {
	subject SubjectSpec
	room    string
	span    int
}

// dayAllocator fills one day for one division. It mutates counts and ledger in place.
type dayAllocator struct {
	cfg    Configuration
	day    string
	ledger *Ledger
	counts map[string]int
	base   string
	seed   uint32

	theories     []SubjectSpec
	labs         []SubjectSpec
	lectureRooms []string
	labRooms     []string

	facultyToday map[string]struct{}
	theoryToday  int
	clock        int
}

func newDayAllocator(cfg Configuration, day string, ledger *Ledger, counts map[string]int, base string) *dayAllocator {
	seed := Seed(base)
	var theories, labs []SubjectSpec
	for _, s := range cfg.Subjects {
		switch s.Kind {
		case KindTheory:
			theories = append(theories, s)
		case KindLab:
			labs = append(labs, s)
		}
	}
	var lectureRooms, labRooms []string
	for _, r := range cfg.Rooms {
		switch {
		case IsLectureRoom(r):
			lectureRooms = append(lectureRooms, r)
		case IsLabRoom(r):
			labRooms = append(labRooms, r)
		}
	}
	return &dayAllocator{
		cfg:          cfg,
		day:          day,
		ledger:       ledger,
		counts:       counts,
		base:         base,
		seed:         seed,
		theories:     Shuffle(theories, seed^theoryOrderSalt),
		labs:         Shuffle(labs, seed^labOrderSalt),
		lectureRooms: lectureRooms,
		labRooms:     labRooms,
		facultyToday: make(map[string]struct{}),
		clock:        cfg.StartMinutes(),
	}
}

// allocateDay runs the greedy fill loop over the logical periods of a day.
func allocateDay(cfg Configuration, day string, ledger *Ledger, counts map[string]int, base string) DaySchedule {
	a := newDayAllocator(cfg, day, ledger, counts, base)
	return DaySchedule{Day: day, Slots: a.run()}
}

func (a *dayAllocator) run() []ScheduledSlot {
	ppd := a.cfg.PeriodsPerDay
	slots := make([]ScheduledSlot, 0, ppd+2)
	for lp := 1; lp <= ppd; {
		if brk, ok := breakBefore(lp, ppd); ok {
			slots = append(slots, a.breakSlot(brk))
		}
		p, ok := a.pick(lp)
		if !ok {
			slots = append(slots, a.freeSlot(lp))
			lp++
			continue
		}
		slots = append(slots, a.commit(lp, p))
		lp += p.span
	}
	return slots
}

func (a *dayAllocator) pick(lp int) (placement, bool) {
	if p, ok := a.pickLab(lp); ok {
		return p, true
	}
	if a.theoryToday < MaxTheoryPerDay {
		if p, ok := a.pickTheory(lp); ok {
			return p, true
		}
	}
	return a.pickFallback(lp)
}

func (a *dayAllocator) pickLab(lp int) (placement, bool) {
	if !fitsLab(lp, a.cfg.PeriodsPerDay) {
		return placement{}, false
	}
	pool := Shuffle(a.available(a.labs), a.seed^uint32(lp*labPoolStep))
	for _, lab := range pool {
		if a.usedToday(lab.Faculty) {
			continue
		}
		if a.ledger.Conflicts(a.day, lab.Faculty, "", lp, 2) {
			continue
		}
		room, ok := a.freeLabRoom(fmt.Sprintf("%s-%s-%d", a.base, lab.Name, lp), lp)
		if !ok {
			continue
		}
		return placement{subject: lab, room: room, span: 2}, true
	}
	return placement{}, false
}

func (a *dayAllocator) pickTheory(lp int) (placement, bool) {
	candidates := a.available(a.theories)
	if len(candidates) == 0 {
		return placement{}, false
	}
	chosen := candidates[0]
	for _, th := range Shuffle(candidates, a.seed^uint32(lp*theoryPoolStep)) {
		if a.usedToday(th.Faculty) || a.ledger.Conflicts(a.day, th.Faculty, "", lp, 1) {
			continue
		}
		chosen = th
		break
	}
	room := a.lectureRoom(fmt.Sprintf("%s-class-%d", a.base, lp))
	return placement{subject: chosen, room: room, span: 1}, true
}

// pickFallback ignores the daily theory cap and local faculty exclusivity. Labs still honour the ledger
// for both faculty and room.
func (a *dayAllocator) pickFallback(lp int) (placement, bool) {
	for _, s := range a.cfg.Subjects {
		if s.Kind == KindTheory && a.counts[s.Name] > 0 {
			room := a.lectureRoom(fmt.Sprintf("%s-class-fallback-%d", a.base, lp))
			return placement{subject: s, room: room, span: 1}, true
		}
	}
	if !fitsLab(lp, a.cfg.PeriodsPerDay) {
		return placement{}, false
	}
	var labs []SubjectSpec
	for _, s := range a.cfg.Subjects {
		if s.Kind == KindLab && a.counts[s.Name] > 0 {
			labs = append(labs, s)
		}
	}
	for _, lab := range Shuffle(labs, a.seed^uint32(lp*fallbackLabStep)) {
		if a.ledger.Conflicts(a.day, lab.Faculty, "", lp, 2) {
			continue
		}
		if room, ok := a.freeLabRoom(fmt.Sprintf("%s-%s-fallback-%d", a.base, lab.Name, lp), lp); ok {
			return placement{subject: lab, room: room, span: 2}, true
		}
	}
	return placement{}, false
}

func (a *dayAllocator) commit(lp int, p placement) ScheduledSlot {
	if remaining := a.counts[p.subject.Name] - 1; remaining > 0 {
		a.counts[p.subject.Name] = remaining
	} else {
		a.counts[p.subject.Name] = 0
	}

	isLab := p.span == 2
	duration := PeriodDuration
	kind := SlotKindTheory
	ledgerRoom := ""
	if isLab {
		duration = LabDuration
		kind = SlotKindLab
		ledgerRoom = p.room
	} else {
		a.theoryToday++
	}
	a.facultyToday[p.subject.Faculty] = struct{}{}
	a.ledger.Reserve(a.day, p.subject.Faculty, ledgerRoom, lp, p.span)

	slot := ScheduledSlot{
		Kind:     kind,
		Name:     p.subject.Name,
		Period:   lp,
		Span:     p.span,
		Faculty:  p.subject.Faculty,
		Room:     p.room,
		Start:    FormatClock(a.clock),
		End:      FormatClock(a.clock + duration),
		Duration: duration,
	}
	a.clock += duration
	return slot
}

func (a *dayAllocator) breakSlot(info SlotInfo) ScheduledSlot {
	slot := ScheduledSlot{
		Kind:     SlotKindBreak,
		Name:     info.Name,
		Span:     1,
		Start:    FormatClock(a.clock),
		End:      FormatClock(a.clock + info.Duration),
		Duration: info.Duration,
	}
	a.clock += info.Duration
	return slot
}

func (a *dayAllocator) freeSlot(lp int) ScheduledSlot {
	slot := ScheduledSlot{
		Kind:     SlotKindFree,
		Name:     FreePeriodName,
		Period:   lp,
		Span:     1,
		Start:    FormatClock(a.clock),
		End:      FormatClock(a.clock + PeriodDuration),
		Duration: PeriodDuration,
	}
	a.clock += PeriodDuration
	return slot
}

func (a *dayAllocator) available(subjects []SubjectSpec) []SubjectSpec {
	out := make([]SubjectSpec, 0, len(subjects))
	for _, s := range subjects {
		if a.counts[s.Name] > 0 {
			out = append(out, s)
		}
	}
	return out
}

func (a *dayAllocator) usedToday(faculty string) bool {
	_, ok := a.facultyToday[faculty]
	return ok
}

func (a *dayAllocator) freeLabRoom(key string, lp int) (string, bool) {
	for _, room := range Shuffle(a.labRooms, Seed(key)) {
		if !a.ledger.Conflicts(a.day, "", room, lp, 2) {
			return room, true
		}
	}
	return "", false
}

func (a *dayAllocator) lectureRoom(key string) string {
	if len(a.lectureRooms) == 0 {
		return DefaultLectureRoom
	}
	return Shuffle(a.lectureRooms, Seed(key))[0]
}

// FormatClock renders minutes since midnight as HH:MM, wrapping at 24h.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", (minutes/60)%24, minutes%60)
}
