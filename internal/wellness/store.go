// Package wellness holds the user's current self-reported wellness metrics.
// The session controller attaches a read-only snapshot of these to each
// generation request so replies can acknowledge mood, sleep, and activity.
package wellness

import "sync"

// Snapshot is an immutable view of the user's wellness context.
type Snapshot struct {
	Mood       string  `json:"mood"`
	SleepHours float64 `json:"sleep_hours"`
	Steps      int     `json:"steps"`
	Name       string  `json:"name,omitempty"`
}

// KnownMoods are the moods the dashboard offers.
var KnownMoods = []string{"Great", "Good", "Okay", "Bad", "Awful"}

// Store is a concurrency-safe holder for the latest snapshot.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewStore() *Store {
	return &Store{snap: Snapshot{Mood: "Okay"}}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Store) SetMood(mood string) {
	s.mu.Lock()
	s.snap.Mood = mood
	s.mu.Unlock()
}

func (s *Store) SetSleepHours(hours float64) {
	s.mu.Lock()
	if hours < 0 {
		hours = 0
	}
	s.snap.SleepHours = hours
	s.mu.Unlock()
}

func (s *Store) SetSteps(steps int) {
	s.mu.Lock()
	if steps < 0 {
		steps = 0
	}
	s.snap.Steps = steps
	s.mu.Unlock()
}

func (s *Store) SetName(name string) {
	s.mu.Lock()
	s.snap.Name = name
	s.mu.Unlock()
}

// Update replaces the whole snapshot at once.
func (s *Store) Update(snap Snapshot) {
	s.mu.Lock()
	if snap.SleepHours < 0 {
		snap.SleepHours = 0
	}
	if snap.Steps < 0 {
		snap.Steps = 0
	}
	s.snap = snap
	s.mu.Unlock()
}
