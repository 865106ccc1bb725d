package service

import (
	"sync"
	"time"

	"github.com/sangmeshafzalpur/minimini/internal/dto"
	"github.com/sangmeshafzalpur/minimini/internal/timetable"
)

// timetableProposal is an unsaved engine result kept in memory until it is saved or expires.
type timetableProposal struct {
	ID           string
	Academic     dto.AcademicMeta
	Config       timetable.Configuration
	Result       timetable.Result
	Load         dto.LoadStats
	GeneratedFor string
	Reproducible bool
	RequestedAt  time.Time
}

func (p timetableProposal) document() dto.TimetableDocument {
	return dto.TimetableDocument{
		Academic:      p.Academic,
		Configuration: p.Config,
		Warning:       p.Result.Warning,
		Shortfalls:    p.Result.Shortfalls,
		Load:          p.Load,
		GeneratedFor:  p.GeneratedFor,
	}
}

type proposalStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]timetableProposal
}

func newProposalStore(ttl time.Duration, now func() time.Time) *proposalStore {
	if now == nil {
		now = time.Now
	}
	return &proposalStore{
		ttl:   ttl,
		now:   now,
		items: make(map[string]timetableProposal),
	}
}

// Save stores the proposal and drops any entry that already expired.
func (s *proposalStore) Save(proposal timetableProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, item := range s.items {
		if s.expired(item, now) {
			delete(s.items, id)
		}
	}
	s.items[proposal.ID] = proposal
}

func (s *proposalStore) Get(id string) (timetableProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return timetableProposal{}, false
	}
	if s.expired(proposal, s.now()) {
		s.Delete(id)
		return timetableProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func (s *proposalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *proposalStore) ExpiresAt(proposal timetableProposal) time.Time {
	return proposal.RequestedAt.Add(s.ttl)
}

func (s *proposalStore) expired(proposal timetableProposal, now time.Time) bool {
	return now.Sub(proposal.RequestedAt) > s.ttl
}
