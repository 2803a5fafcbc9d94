package device

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/config"
)

// Mock simulates the dynamometer for development without hardware. The
// sensor endpoint streams temperatures; the controller endpoint emits cycle
// markers and reacts to commands.
type Mock struct {
	cfg *config.MockConfig

	sensorLines     chan string
	controllerLines chan string

	mu       sync.Mutex
	running  bool
	refs     int
	stop     chan struct{}
	done     chan struct{}
	commands []string

	// Simulation state
	temperature  float64
	braking      bool
	phaseElapsed time.Duration
	cycles       int
	samples      int
	paused       bool // "off" or "offWithoutBreaking" received
	stalled      bool // stall emitted, waiting for off/on recovery
	stalledCycle int  // cycle in which the last stall was emitted
	overTemp     bool
}

// NewMock creates a new simulated dynamometer.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		cfg = &config.Default().Mock
	}

	return &Mock{
		cfg:             cfg,
		sensorLines:     make(chan string, DefaultBufferSize),
		controllerLines: make(chan string, DefaultBufferSize),
		temperature:     cfg.AmbientTemp,
		stalledCycle:    -1,
	}
}

// DefaultBufferSize is the line buffer of each simulated endpoint.
const DefaultBufferSize = 100

// Sensor returns the simulated temperature sensor.
func (m *Mock) Sensor() Device {
	return &endpoint{mock: m, lines: m.sensorLines}
}

// Controller returns the simulated brake controller.
func (m *Mock) Controller() Device {
	return &endpoint{mock: m, lines: m.controllerLines, controller: true}
}

// Commands returns the commands written to the controller so far.
func (m *Mock) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]string, len(m.commands))
	copy(result, m.commands)
	return result
}

// acquire starts the simulation on first use.
func (m *Mock) acquire() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refs++
	if m.running {
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(m.stop, m.done)
}

// release stops the simulation once no endpoint uses it.
func (m *Mock) release() {
	m.mu.Lock()
	m.refs--
	if m.refs > 0 || !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stop, done := m.stop, m.done
	m.mu.Unlock()

	close(stop)
	<-done
}

func (m *Mock) run(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.SampleRate)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			sensor, controller := m.step(m.cfg.SampleRate)
			push(m.sensorLines, sensor)
			for _, line := range controller {
				push(m.controllerLines, line)
			}
		}
	}
}

// step advances the simulation by dt and returns the sensor line and any
// controller lines produced.
func (m *Mock) step(dt time.Duration) (string, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var controller []string
	frozen := m.paused || m.stalled

	if m.braking && !frozen {
		heat := m.cfg.HeatRate
		if m.overTemp {
			// Controller eases the brake while over temperature
			heat /= 2
		}
		m.temperature += heat * dt.Seconds()
	} else {
		m.temperature = math.Max(m.cfg.AmbientTemp, m.temperature-m.cfg.CoolRate*dt.Seconds())
	}

	if !frozen {
		m.phaseElapsed += dt
		switch {
		case !m.braking && m.phaseElapsed >= m.cfg.IdleDuration:
			m.braking = true
			m.phaseElapsed = 0
			controller = append(controller, "Start")
		case m.braking && m.stallDue():
			m.stalled = true
			m.stalledCycle = m.cycles
			controller = append(controller, "")
		case m.braking && m.phaseElapsed >= m.cfg.CycleDuration:
			m.braking = false
			m.phaseElapsed = 0
			m.cycles++
			controller = append(controller, "End")
		}
	}

	m.samples++
	if m.cfg.NaNEvery > 0 && m.samples%m.cfg.NaNEvery == 0 {
		return "nan", controller
	}
	return strconv.FormatFloat(m.temperature, 'f', 2, 64), controller
}

func (m *Mock) stallDue() bool {
	if m.cfg.StallEvery <= 0 || m.stalledCycle == m.cycles {
		return false
	}
	return (m.cycles+1)%m.cfg.StallEvery == 0 && m.phaseElapsed >= m.cfg.CycleDuration/2
}

// command applies a controller command to the simulation.
func (m *Mock) command(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.commands = append(m.commands, token)

	switch token {
	case "off", "offWithoutBreaking":
		m.paused = true
	case "on":
		m.paused = false
		m.stalled = false
	case "improperTemperatureSet":
		m.overTemp = true
	case "improperTemperatureReset":
		m.overTemp = false
	default:
		return fmt.Errorf("mock controller: unknown command %q", token)
	}
	return nil
}

func push(ch chan string, line string) {
	select {
	case ch <- line:
	default:
		// Channel full, drop like a serial buffer overrun
	}
}

// endpoint is one side of the Mock exposed as a Device.
type endpoint struct {
	mock       *Mock
	lines      chan string
	controller bool

	mu        sync.Mutex
	connected bool
	closed    chan struct{}
}

func (e *endpoint) Connect() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.connected {
		return fmt.Errorf("already connected")
	}
	e.connected = true
	e.closed = make(chan struct{})
	e.mock.acquire()
	return nil
}

func (e *endpoint) Close() error {
	e.mu.Lock()
	if !e.connected {
		e.mu.Unlock()
		return nil
	}
	e.connected = false
	close(e.closed)
	e.mu.Unlock()

	e.mock.release()
	return nil
}

func (e *endpoint) ReadLine() (string, error) {
	e.mu.Lock()
	connected, closed := e.connected, e.closed
	e.mu.Unlock()

	if closed == nil {
		return "", ErrNotConnected
	}
	if !connected {
		return "", ErrClosed
	}

	select {
	case line := <-e.lines:
		return line, nil
	case <-closed:
		return "", ErrClosed
	}
}

func (e *endpoint) Write(p []byte) (int, error) {
	if !e.IsConnected() {
		return 0, ErrNotConnected
	}
	if !e.controller {
		return len(p), nil
	}
	if err := e.mock.command(strings.TrimSpace(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (e *endpoint) IsConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}
