// Package relay forwards readings and cycle records to remote consumers
// and bridges remote mode commands to the controller.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/cycle"
)

// Relay forwards acquisition events. Errors are reported per event; the
// caller logs them and keeps going.
type Relay interface {
	Reading(r cycle.Reading) error
	Cycle(rec cycle.Record) error
}

// ConnectivityError reports that a remote endpoint could not be reached or
// rejected an event.
type ConnectivityError struct {
	Endpoint string
	Err      error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("relay to %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// StartupError reports a failed readiness check. Status is the HTTP status
// received, 0 when no response arrived.
type StartupError struct {
	Status int
	Err    error
}

func (e *StartupError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("collector not ready: status %d", e.Status)
	}
	return fmt.Sprintf("collector not ready: %v", e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// ReadingPayload is the wire form of a reading.
type ReadingPayload struct {
	CurrentTemp float64 `json:"current_temp"`
	Cycle       int     `json:"cycle"`
}

// CyclePayload is the wire form of a completed cycle.
type CyclePayload struct {
	TempInit  float64 `json:"temp_init"`
	TempFinal float64 `json:"temp_final"`
	Cycle     int     `json:"cycle"`
}

// FormatReading creates the JSON payload for a reading.
func FormatReading(r cycle.Reading) ([]byte, error) {
	return json.Marshal(ReadingPayload{CurrentTemp: r.Value, Cycle: r.Cycle})
}

// FormatCycle creates the JSON payload for a cycle record.
func FormatCycle(rec cycle.Record) ([]byte, error) {
	return json.Marshal(CyclePayload{TempInit: rec.Min, TempFinal: rec.Max, Cycle: rec.Cycle})
}

// Multi fans events out to several relays. Every relay is tried; the
// errors are joined.
type Multi []Relay

func (m Multi) Reading(r cycle.Reading) error {
	var errs []error
	for _, relay := range m {
		if err := relay.Reading(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Cycle(rec cycle.Record) error {
	var errs []error
	for _, relay := range m {
		if err := relay.Cycle(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
