// Package command holds the controller command vocabulary and the
// dispatcher that writes commands to the controller device.
package command

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/VictoriaMetrics/metrics"
	log "github.com/sirupsen/logrus"
)

// Command is a token understood by the controller firmware.
type Command string

const (
	On                 Command = "on"
	Off                Command = "off"
	OffWithoutBreaking Command = "offWithoutBreaking"
	OverThresholdSet   Command = "improperTemperatureSet"
	OverThresholdReset Command = "improperTemperatureReset"
)

// ErrUnknownCommand is returned for tokens outside the vocabulary.
var ErrUnknownCommand = errors.New("unknown command")

// Valid reports whether c belongs to the vocabulary.
func (c Command) Valid() bool {
	switch c {
	case On, Off, OffWithoutBreaking, OverThresholdSet, OverThresholdReset:
		return true
	}
	return false
}

func (c Command) String() string {
	return string(c)
}

// Parse validates a mode received from the remote command channel. Only
// on, off and offWithoutBreaking (also spelled off-without-breaking) may be
// requested remotely.
func Parse(mode string) (Command, error) {
	switch c := Command(strings.TrimSpace(mode)); c {
	case On, Off, OffWithoutBreaking:
		return c, nil
	case "off-without-breaking":
		return OffWithoutBreaking, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, mode)
	}
}

// DeviceWriteError reports a command that could not be written to the
// controller.
type DeviceWriteError struct {
	Command Command
	Err     error
}

func (e *DeviceWriteError) Error() string {
	return fmt.Sprintf("write %q to controller: %v", e.Command, e.Err)
}

func (e *DeviceWriteError) Unwrap() error {
	return e.Err
}

// Sender sends controller commands. Implemented by Dispatcher.
type Sender interface {
	Send(c Command) error
}

// Dispatcher is the single writer of commands to the controller. Writes
// from the threshold monitor, the stall monitor and the remote bridge are
// serialised. Failed writes are not retried.
type Dispatcher struct {
	mu sync.Mutex
	w  io.Writer
}

// NewDispatcher creates a dispatcher writing to w, usually the controller
// device.
func NewDispatcher(w io.Writer) *Dispatcher {
	return &Dispatcher{w: w}
}

// Send writes c to the controller.
func (d *Dispatcher) Send(c Command) error {
	if !c.Valid() {
		return &DeviceWriteError{Command: c, Err: ErrUnknownCommand}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.w == nil {
		return &DeviceWriteError{Command: c, Err: errors.New("no controller")}
	}

	n, err := d.w.Write([]byte(c))
	if err == nil && n < len(c) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &DeviceWriteError{Command: c, Err: err}
	}

	metrics.GetOrCreateCounter(fmt.Sprintf(`dyno_commands_total{command=%q}`, c)).Inc()
	log.WithField("command", c).Debug("Sent controller command")
	return nil
}
