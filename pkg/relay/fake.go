package relay

import (
	"sync"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/cycle"
)

// Fake records relayed events for test assertions.
type Fake struct {
	mu       sync.Mutex
	readings []cycle.Reading
	records  []cycle.Record
	err      error
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{}
}

// SetError makes subsequent calls fail with err (nil restores).
func (f *Fake) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Reading records r, or returns the configured error.
func (f *Fake) Reading(r cycle.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.readings = append(f.readings, r)
	return nil
}

// Cycle records rec, or returns the configured error.
func (f *Fake) Cycle(rec cycle.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

// Readings returns the recorded readings.
func (f *Fake) Readings() []cycle.Reading {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]cycle.Reading, len(f.readings))
	copy(result, f.readings)
	return result
}

// Records returns the recorded cycle records.
func (f *Fake) Records() []cycle.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]cycle.Record, len(f.records))
	copy(result, f.records)
	return result
}
