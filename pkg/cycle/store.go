// Package cycle holds the state shared between the reading and cycle
// loops: the current reading, the in-progress cycle and the cycle counter.
//
// Every read-modify-write sequence is a single Store method that runs
// under the store lock, so a reading can never be attributed to the wrong
// cycle.
package cycle

import (
	"math"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/config"
)

// Reading is one accepted sensor value together with the cycle it belongs to.
type Reading struct {
	Value float64 // Never NaN
	Cycle int     // Completed cycles before this reading
}

// Record is the result of a completed cycle. It is never mutated after
// creation.
type Record struct {
	Min   float64
	Max   float64 // Maximum over the full cycle history
	Cycle int
}

// Snapshot is a point-in-time copy of the store, for status reporting.
type Snapshot struct {
	Cycle      int
	Current    float64
	HasReading bool
	HistoryLen int
	HasStart   bool // Start marker seen since the last completion
	HasEnd     bool // End marker seen since the last completion
}

// state is the in-progress cycle.
type state struct {
	history []float64 // Readings in arrival order
	peak    float64   // Max of readings dropped from history, NaN if none
	dropped int

	min, max       float64 // Tentative values captured at the markers
	hasMin, hasMax bool
}

func (s *state) reset() {
	s.history = s.history[:0]
	s.peak = math.NaN()
	s.dropped = 0
	s.min, s.max = 0, 0
	s.hasMin, s.hasMax = false, false
}

// Store is the single owner of the mutable cross-loop state.
type Store struct {
	cfg config.CycleConfig

	mu         sync.Mutex
	current    float64
	hasReading bool
	cycle      int
	state      state
}

// New creates an empty store.
func New(cfg config.CycleConfig) *Store {
	s := &Store{cfg: cfg}
	s.state.reset()
	return s
}

// WithReading records value as the current reading and appends it to the
// cycle history, then calls fn with the stored reading while still holding
// the lock. A NaN value is replaced by the reading sentinel before it is
// stored. The error returned by fn is returned as is.
func (s *Store) WithReading(value float64, fn func(r Reading) error) (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if math.IsNaN(value) || math.IsInf(value, 0) {
		value = s.cfg.ReadingSentinel
	}

	s.current = value
	s.hasReading = true
	s.appendHistory(value)

	r := Reading{Value: value, Cycle: s.cycle}
	if fn == nil {
		return r, nil
	}
	return r, fn(r)
}

func (s *Store) appendHistory(value float64) {
	st := &s.state
	if limit := s.cfg.HistoryLimit; limit > 0 && len(st.history) >= limit {
		oldest := st.history[0]
		if math.IsNaN(st.peak) || oldest > st.peak {
			st.peak = oldest
		}
		st.history = st.history[1:]
		st.dropped++
		if st.dropped == 1 {
			log.WithField("limit", limit).Warnf("Cycle %d history full, dropping oldest readings", s.cycle+1)
		}
	}
	st.history = append(st.history, value)
}

// Mark processes one controller line. A line containing the start marker
// captures the current reading as the tentative minimum; a line containing
// the end marker captures it as the tentative maximum. Both may happen on
// the same line. Once both have been captured the cycle completes: the
// counter advances, the maximum becomes the larger of the end capture and
// the whole history, and the per-cycle state is reset. fn is then called with the record while
// the lock is held.
//
// completed reports whether the line finished a cycle.
func (s *Store) Mark(line string, fn func(rec Record) error) (rec Record, completed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state
	if strings.Contains(line, s.cfg.StartMarker) {
		st.min, st.hasMin = s.tentative(), true
	}
	if strings.Contains(line, s.cfg.EndMarker) {
		st.max, st.hasMax = s.tentative(), true
	}
	if !st.hasMin || !st.hasMax {
		return Record{}, false, nil
	}

	s.cycle++
	rec = Record{
		Min:   s.aggregate(st.min),
		Max:   s.aggregate(st.finalMax()),
		Cycle: s.cycle,
	}
	st.reset()

	if fn != nil {
		err = fn(rec)
	}
	return rec, true, err
}

// tentative is the value captured by a marker: the current reading, or NaN
// when no reading has arrived yet.
func (s *Store) tentative() float64 {
	if !s.hasReading {
		return math.NaN()
	}
	return s.current
}

func (s *Store) aggregate(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return s.cfg.AggregateSentinel
	}
	return v
}

// historyMax returns the maximum over every reading of the cycle,
// including those dropped from a full history. NaN when there are none.
func (st *state) historyMax() float64 {
	m := st.peak
	for _, v := range st.history {
		if math.IsNaN(m) || v > m {
			m = v
		}
	}
	return m
}

// finalMax is the larger of the end-marker capture and the history
// maximum. NaN only when both are undefined.
func (st *state) finalMax() float64 {
	m := st.historyMax()
	if math.IsNaN(m) || st.max > m {
		m = st.max
	}
	return m
}

// Current returns the latest reading and whether one has arrived.
func (s *Store) Current() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.hasReading
}

// Cycle returns the number of completed cycles.
func (s *Store) Cycle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle
}

// History returns a copy of the readings of the in-progress cycle.
func (s *Store) History() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]float64, len(s.state.history))
	copy(result, s.state.history)
	return result
}

// Snapshot returns a copy of the store state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Cycle:      s.cycle,
		Current:    s.current,
		HasReading: s.hasReading,
		HistoryLen: len(s.state.history),
		HasStart:   s.state.hasMin,
		HasEnd:     s.state.hasMax,
	}
}
