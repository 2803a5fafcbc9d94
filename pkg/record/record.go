// Package record persists continuous readings and per-cycle aggregates.
//
// Each acquisition loop owns one sink, so a write failure is attributable
// to exactly one loop.
package record

import (
	"fmt"
	"time"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/config"
	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/cycle"
)

// SessionLayout formats the session start time in file names.
const SessionLayout = "2006-01-02T15-04-05"

// ReadingSink receives every accepted reading.
type ReadingSink interface {
	WriteReading(temperature float64, cycle int) error
	Close() error
}

// CycleSink receives every completed cycle.
type CycleSink interface {
	WriteCycle(rec cycle.Record) error
	Close() error
}

// PersistenceError is a local write or open failure of a sink.
type PersistenceError struct {
	Path string
	Op   string // open, write, close
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Open creates the reading and cycle sinks of a session for the configured
// backend.
func Open(cfg config.PersistenceConfig, session string, start time.Time) (ReadingSink, CycleSink, error) {
	switch cfg.Backend {
	case "", "csv":
		readings, err := OpenReadingCSV(cfg.Dir, start)
		if err != nil {
			return nil, nil, err
		}
		cycles, err := OpenCycleCSV(cfg.Dir, start)
		if err != nil {
			readings.Close()
			return nil, nil, err
		}
		return readings, cycles, nil
	case "sqlite":
		db, err := OpenSQLite(cfg.SQLiteFile, session)
		if err != nil {
			return nil, nil, err
		}
		return db.Readings(), db.Cycles(), nil
	default:
		return nil, nil, fmt.Errorf("unknown persistence backend %q", cfg.Backend)
	}
}
