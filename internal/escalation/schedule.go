package escalation

import (
	"sync"
	"time"
)

// ScheduleEntry maps a role to its contacts for a recurring weekly window.
// Hours are evaluated in the entry's timezone; an end hour at or before the
// start hour wraps past midnight.
type ScheduleEntry struct {
	Role      string         `json:"role" yaml:"role"`
	Days      []time.Weekday `json:"days" yaml:"days"`
	StartHour int            `json:"start_hour" yaml:"start_hour"`
	EndHour   int            `json:"end_hour" yaml:"end_hour"`
	Timezone  string         `json:"timezone" yaml:"timezone"`
	Contacts  []string       `json:"contacts" yaml:"contacts"`
}

// Schedule resolves roles to on-call contact lists by day of week and time
// of day.
type Schedule struct {
	mu      sync.RWMutex
	entries []ScheduleEntry
}

// NewSchedule creates an empty on-call schedule
func NewSchedule() *Schedule {
	return &Schedule{}
}

// Add registers a schedule entry
func (s *Schedule) Add(entry ScheduleEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

// Resolve returns the contacts on call for a role at the given instant.
// Duplicate contacts across overlapping entries are returned once.
func (s *Schedule) Resolve(role string, at time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var contacts []string

	for _, entry := range s.entries {
		if entry.Role != role {
			continue
		}
		if !entry.active(at) {
			continue
		}
		for _, c := range entry.Contacts {
			if !seen[c] {
				seen[c] = true
				contacts = append(contacts, c)
			}
		}
	}

	return contacts
}

// active reports whether the entry covers the given instant
func (e *ScheduleEntry) active(at time.Time) bool {
	loc := time.UTC
	if e.Timezone != "" {
		if l, err := time.LoadLocation(e.Timezone); err == nil {
			loc = l
		}
	}
	local := at.In(loc)

	dayMatch := len(e.Days) == 0
	for _, d := range e.Days {
		if local.Weekday() == d {
			dayMatch = true
			break
		}
	}
	if !dayMatch {
		return false
	}

	hour := local.Hour()
	if e.StartHour == e.EndHour {
		return true // full-day entry
	}
	if e.StartHour < e.EndHour {
		return hour >= e.StartHour && hour < e.EndHour
	}
	// Overnight window, e.g. 22-06
	return hour >= e.StartHour || hour < e.EndHour
}
