// Package monitor watches readings and controller health and sends the
// corrective commands.
package monitor

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/command"
)

// ThresholdState is the over-temperature state of the brake.
type ThresholdState int

const (
	Normal ThresholdState = iota
	OverThreshold
)

func (s ThresholdState) String() string {
	if s == OverThreshold {
		return "over_threshold"
	}
	return "normal"
}

// Hysteresis is the half-width of the dead band around the setpoint.
const Hysteresis = 1.0

// Evaluate returns the state after observing reading, and the command to
// send for the transition. ok is false when the state does not change.
//
// Normal trips at setpoint+1 or above; OverThreshold clears at setpoint-1
// or below. Readings strictly inside the band never change the state.
func Evaluate(reading, setpoint float64, state ThresholdState) (next ThresholdState, cmd command.Command, ok bool) {
	switch state {
	case Normal:
		if reading >= setpoint+Hysteresis {
			return OverThreshold, command.OverThresholdSet, true
		}
	case OverThreshold:
		if reading <= setpoint-Hysteresis {
			return Normal, command.OverThresholdReset, true
		}
	}
	return state, "", false
}

// Threshold sends the over-threshold set and reset commands as readings
// cross the hysteresis band.
type Threshold struct {
	setpoint float64
	sender   command.Sender

	mu    sync.Mutex
	state ThresholdState
}

// NewThreshold creates a threshold monitor in the Normal state.
func NewThreshold(setpoint float64, sender command.Sender) *Threshold {
	return &Threshold{
		setpoint: setpoint,
		sender:   sender,
	}
}

// Observe evaluates one reading. The state only changes when the command
// is written; after a failed write the next reading tries again.
func (t *Threshold) Observe(reading float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, cmd, ok := Evaluate(reading, t.setpoint, t.state)
	if !ok {
		return nil
	}

	if err := t.sender.Send(cmd); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"temperature": reading,
		"setpoint":    t.setpoint,
	}).Warnf("Temperature %s", next)
	t.state = next
	return nil
}

// State returns the current threshold state.
func (t *Threshold) State() ThresholdState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Setpoint returns the configured setpoint.
func (t *Threshold) Setpoint() float64 {
	return t.setpoint
}
