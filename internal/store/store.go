// Package store holds the deduplicated group records: a key -> record map
// plus the insertion order, bounded by a maximum size.
package store

import (
	"sync"
	"time"
	"unicode/utf8"
)

// DefaultMaxItems is used when a store is created with a non-positive cap.
const DefaultMaxItems = 1000

type Record struct {
	Key           string    `json:"key"`
	Name          string    `json:"name"`
	MembersRaw    string    `json:"membersRaw"`
	MembersCount  int64     `json:"membersCount"`
	LastActiveRaw string    `json:"lastActiveRaw"`
	URL           string    `json:"url"`
	FirstSeenAt   time.Time `json:"firstSeenAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// Candidate is one observation of a group, before reconciliation.
type Candidate struct {
	Name          string
	MembersRaw    string
	MembersCount  int64
	LastActiveRaw string
	URL           string
}

type Store struct {
	mu      sync.RWMutex
	max     int
	records map[string]*Record
	order   []string
	now     func() time.Time
}

func New(maxItems int) *Store {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Store{
		max:     maxItems,
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// SetClock replaces the time source. Tests only.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Upsert inserts a new key or merges into an existing one and reports
// whether a record was inserted. A new key is refused silently once the
// store is full.
func (s *Store) Upsert(key string, c Candidate) bool {
	if key == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.records[key]; ok {
		merge(existing, c)
		existing.LastUpdatedAt = now
		return false
	}

	if len(s.order) >= s.max {
		return false
	}

	s.records[key] = &Record{
		Key:           key,
		Name:          c.Name,
		MembersRaw:    c.MembersRaw,
		MembersCount:  c.MembersCount,
		LastActiveRaw: c.LastActiveRaw,
		URL:           c.URL,
		FirstSeenAt:   now,
		LastUpdatedAt: now,
	}
	s.order = append(s.order, key)
	return true
}

// merge applies "longer name wins" and "fill what is still empty". Fields
// that are set never go back to empty.
func merge(r *Record, c Candidate) {
	if utf8.RuneCountInString(c.Name) > utf8.RuneCountInString(r.Name) {
		r.Name = c.Name
	}
	if r.MembersRaw == "" && c.MembersRaw != "" {
		r.MembersRaw = c.MembersRaw
		r.MembersCount = c.MembersCount
	}
	if r.LastActiveRaw == "" && c.LastActiveRaw != "" {
		r.LastActiveRaw = c.LastActiveRaw
	}
	if r.URL == "" && c.URL != "" {
		r.URL = c.URL
	}
}

// Restore loads previously persisted records in the given order, keeping
// their timestamps. Records beyond the cap and duplicate keys are dropped.
// It returns how many were added.
func (s *Store) Restore(records []Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, r := range records {
		if r.Key == "" {
			continue
		}
		if _, ok := s.records[r.Key]; ok {
			continue
		}
		if len(s.order) >= s.max {
			break
		}
		rec := r
		s.records[r.Key] = &rec
		s.order = append(s.order, r.Key)
		added++
	}
	return added
}

// Clear drops every record.
func (s *Store) Clear() {
	s.mu.Lock()
	s.records = make(map[string]*Record)
	s.order = nil
	s.mu.Unlock()
}

// List returns a copy of all records in insertion order.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, *s.records[k])
	}
	return out
}

func (s *Store) Get(key string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[key]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Store) Max() int {
	return s.max
}

// Full reports whether new keys are being refused.
func (s *Store) Full() bool {
	return s.Len() >= s.max
}
