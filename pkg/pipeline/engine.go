// Package pipeline runs the acquisition engine: the reading loop, the cycle
// loop, the stall monitor and the remote command bridge, all sharing one
// cycle store and one shutdown flag.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/command"
	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/config"
	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/cycle"
	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/device"
	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/monitor"
	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/record"
	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/relay"
)

// Options wires an Engine. Sensor and Controller are required; the rest
// may be nil.
type Options struct {
	Config     *config.Config
	Sensor     device.Device
	Controller device.Device

	// Dispatcher writes to Controller when nil.
	Dispatcher *command.Dispatcher
	// Bridge is run as an extra loop when set.
	Bridge *relay.Bridge

	Relay    relay.Relay
	Readings record.ReadingSink
	Cycles   record.CycleSink
}

// Status is a point-in-time view of the engine.
type Status struct {
	Cycle         int
	CurrentTemp   float64
	HasReading    bool
	HistoryLen    int
	OverThreshold bool
	Stalled       bool
	Recovering    bool
	Shutdown      bool
}

// Engine owns the shared state and runs every loop.
type Engine struct {
	cfg        *config.Config
	sensor     device.Device
	controller device.Device

	store      *cycle.Store
	dispatcher *command.Dispatcher
	threshold  *monitor.Threshold
	signal     *monitor.StallSignal
	stall      *monitor.Stall
	bridge     *relay.Bridge
	shutdown   *Shutdown

	reading *ReadingLoop
	cycle   *CycleLoop
}

// New creates an engine. Nothing runs until Run.
func New(opts Options) *Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = command.NewDispatcher(opts.Controller)
	}

	e := &Engine{
		cfg:        cfg,
		sensor:     opts.Sensor,
		controller: opts.Controller,
		store:      cycle.New(cfg.Cycle),
		dispatcher: dispatcher,
		threshold:  monitor.NewThreshold(cfg.Monitor.Setpoint, dispatcher),
		signal:     &monitor.StallSignal{},
		bridge:     opts.Bridge,
		shutdown:   NewShutdown(),
	}
	e.stall = monitor.NewStall(e.signal, dispatcher, cfg.Monitor.StallRecovery, cfg.Monitor.StallPoll)

	e.reading = &ReadingLoop{
		Sensor:     opts.Sensor,
		Store:      e.store,
		Threshold:  e.threshold,
		Relay:      opts.Relay,
		Sink:       opts.Readings,
		Shutdown:   e.shutdown,
		RetryDelay: cfg.Sensor.RetryDelay,
	}
	e.cycle = &CycleLoop{
		Controller:     opts.Controller,
		Store:          e.store,
		Stall:          e.signal,
		Relay:          opts.Relay,
		Sink:           opts.Cycles,
		Shutdown:       e.shutdown,
		RetryDelay:     cfg.Controller.RetryDelay,
		StallOnTimeout: cfg.Monitor.StallOnTimeout,
	}

	return e
}

// Run connects the devices and runs every loop until shutdown is requested,
// either through ctx or internally. Devices are closed on shutdown so that
// blocked reads return. Run returns once every loop has exited. The sinks
// are closed by their loops, or by Run if the devices cannot be connected.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.connect(); err != nil {
		closeSink(log.NewEntry(log.StandardLogger()), e.reading.Sink)
		closeSink(log.NewEntry(log.StandardLogger()), e.cycle.Sink)
		return err
	}

	// readers block on device reads; writers send controller commands
	var readers, writers sync.WaitGroup
	run := func(wg *sync.WaitGroup, f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}

	run(&readers, e.reading.Run)
	run(&readers, e.cycle.Run)
	run(&writers, func() { e.stall.Run(e.shutdown.Context()) })
	if e.bridge != nil {
		run(&writers, func() { e.bridge.Run(e.shutdown.Context()) })
	}

	go func() {
		select {
		case <-ctx.Done():
			e.shutdown.Request("stopped")
		case <-e.shutdown.Done():
		}
	}()

	<-e.shutdown.Done()
	closeDevice(e.sensor, "sensor")
	// An interrupted stall recovery still sends "on"
	writers.Wait()
	closeDevice(e.controller, "controller")
	readers.Wait()

	log.WithField("reason", e.shutdown.Reason()).Info("Engine stopped")
	return e.shutdown.Err()
}

func (e *Engine) connect() error {
	if err := e.sensor.Connect(); err != nil {
		return fmt.Errorf("connect sensor: %w", err)
	}
	if err := e.controller.Connect(); err != nil {
		e.sensor.Close()
		return fmt.Errorf("connect controller: %w", err)
	}
	return nil
}

func closeDevice(d device.Device, name string) {
	if err := d.Close(); err != nil {
		log.WithError(err).Errorf("Failed to close %s", name)
	}
}

// Stop requests shutdown.
func (e *Engine) Stop(reason string) {
	e.shutdown.Request(reason)
}

// Done is closed when shutdown has been requested.
func (e *Engine) Done() <-chan struct{} {
	return e.shutdown.Done()
}

// Store returns the shared cycle store.
func (e *Engine) Store() *cycle.Store {
	return e.store
}

// Dispatcher returns the controller command dispatcher.
func (e *Engine) Dispatcher() *command.Dispatcher {
	return e.dispatcher
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	snap := e.store.Snapshot()
	return Status{
		Cycle:         snap.Cycle,
		CurrentTemp:   snap.Current,
		HasReading:    snap.HasReading,
		HistoryLen:    snap.HistoryLen,
		OverThreshold: e.threshold.State() == monitor.OverThreshold,
		Stalled:       e.signal.Raised(),
		Recovering:    e.stall.State() == monitor.Recovering,
		Shutdown:      e.shutdown.Requested(),
	}
}
