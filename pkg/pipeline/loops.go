package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/cycle"
	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/device"
	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/monitor"
	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/record"
	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/relay"
)

// MinControllerLine is the shortest controller line, in characters, that
// is not a stall.
const MinControllerLine = 2

// ReadingLoop reads the sensor stream into the store.
type ReadingLoop struct {
	Sensor     device.Device
	Store      *cycle.Store
	Threshold  *monitor.Threshold
	Relay      relay.Relay
	Sink       record.ReadingSink
	Shutdown   *Shutdown
	RetryDelay time.Duration
}

// Run reads until shutdown is requested or the sink fails. The sink is
// closed on exit. A sink failure stops only this loop.
func (l *ReadingLoop) Run() {
	logger := log.WithField("loop", "reading")
	logger.Info("Reading loop started")

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Panic in reading loop: %v", r)
		}
		closeSink(logger, l.Sink)
		logger.Info("Reading loop stopped")
	}()

	for !l.Shutdown.Requested() {
		line, err := l.Sensor.ReadLine()
		if err != nil {
			if !errors.Is(err, device.ErrReadTimeout) {
				readFailed(logger, err, l.Shutdown, l.RetryDelay)
			}
			continue
		}

		value, ok, err := parseReading(line)
		if err != nil {
			parseErrorsTotal.Inc()
			logger.WithError(err).Warn("Skipping malformed reading")
			continue
		}
		if !ok {
			continue
		}

		if _, err := l.Store.WithReading(value, l.accept(logger)); err != nil {
			logger.WithError(err).Error("Persistence failed, stopping reading loop")
			return
		}
	}
}

// accept returns the side effects of one reading, run under the store lock.
func (l *ReadingLoop) accept(logger *log.Entry) func(r cycle.Reading) error {
	return func(r cycle.Reading) error {
		readingsTotal.Inc()
		temperature.Update(r.Value)

		if l.Threshold != nil {
			if err := l.Threshold.Observe(r.Value); err != nil {
				logger.WithError(err).Warn("Threshold command not sent")
			}
		}

		if l.Relay != nil {
			if err := l.Relay.Reading(r); err != nil {
				relayErrorsTotal.Inc()
				logger.WithError(err).Warn("Relay unreachable, continuing")
			}
		}

		logger.WithField("cycle", r.Cycle).Debugf("Sensor: %v", r.Value)

		if l.Sink == nil {
			return nil
		}
		return l.Sink.WriteReading(r.Value, r.Cycle)
	}
}

// CycleLoop reads the controller stream, detects cycle boundaries and
// stalls.
type CycleLoop struct {
	Controller     device.Device
	Store          *cycle.Store
	Stall          *monitor.StallSignal
	Relay          relay.Relay
	Sink           record.CycleSink
	Shutdown       *Shutdown
	RetryDelay     time.Duration
	StallOnTimeout bool // A read timeout counts as a stall
}

// Run reads until shutdown is requested or the sink fails. A sink failure
// also requests shutdown: without the cycle stream the run is invalid.
func (l *CycleLoop) Run() {
	logger := log.WithField("loop", "cycle")
	logger.Info("Cycle loop started")

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Panic in cycle loop: %v", r)
			l.Shutdown.Fail("cycle loop panic", fmt.Errorf("%v", r))
		}
		closeSink(logger, l.Sink)
		logger.Info("Cycle loop stopped")
	}()

	for !l.Shutdown.Requested() {
		line, err := l.Controller.ReadLine()
		if err != nil {
			if errors.Is(err, device.ErrReadTimeout) {
				if l.StallOnTimeout {
					l.raiseStall(logger, "read timeout")
				}
				continue
			}
			readFailed(logger, err, l.Shutdown, l.RetryDelay)
			continue
		}

		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) < MinControllerLine {
			l.raiseStall(logger, "short line")
			continue
		}

		logger.Debugf("Controller: %s", line)

		if _, _, err := l.Store.Mark(line, l.complete(logger)); err != nil {
			logger.WithError(err).Error("Persistence failed, stopping")
			l.Shutdown.Fail("cycle persistence failure", err)
			return
		}
	}
}

// complete returns the side effects of a completed cycle, run under the
// store lock.
func (l *CycleLoop) complete(logger *log.Entry) func(rec cycle.Record) error {
	return func(rec cycle.Record) error {
		cyclesTotal.Inc()
		logger.WithFields(log.Fields{
			"cycle": rec.Cycle,
			"min":   rec.Min,
			"max":   rec.Max,
		}).Info("Cycle complete")

		if l.Relay != nil {
			if err := l.Relay.Cycle(rec); err != nil {
				relayErrorsTotal.Inc()
				logger.WithError(err).Warn("Relay unreachable, continuing")
			}
		}

		if l.Sink == nil {
			return nil
		}
		return l.Sink.WriteCycle(rec)
	}
}

func (l *CycleLoop) raiseStall(logger *log.Entry, cause string) {
	if l.Stall != nil && l.Stall.Raise() {
		logger.WithField("cause", cause).Warn("Controller stall detected")
	}
}

// readFailed logs a device read failure and waits before the next attempt.
// The wait ends early on shutdown.
func readFailed(logger *log.Entry, err error, shutdown *Shutdown, delay time.Duration) {
	if shutdown.Requested() {
		return
	}
	logger.WithError(err).Error("Device read failed, retrying")
	if delay <= 0 {
		delay = time.Second
	}
	select {
	case <-time.After(delay):
	case <-shutdown.Done():
	}
}

type closer interface {
	Close() error
}

func closeSink(logger *log.Entry, sink closer) {
	if sink == nil {
		return
	}
	if err := sink.Close(); err != nil {
		logger.WithError(err).Error("Failed to close sink")
	}
}
