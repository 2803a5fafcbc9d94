package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	log "github.com/sirupsen/logrus"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/command"
)

var (
	stallSignals    = metrics.NewCounter("dyno_stall_signals_total")
	stallRecoveries = metrics.NewCounter("dyno_stall_recoveries_total")
)

// StallSignal records that the controller appears frozen. It has its own
// lock, separate from the cycle store.
type StallSignal struct {
	mu     sync.Mutex
	raised bool
}

// Raise sets the signal. It reports false if the signal was already set.
func (s *StallSignal) Raise() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.raised {
		return false
	}
	s.raised = true
	stallSignals.Inc()
	return true
}

// Clear resets the signal.
func (s *StallSignal) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raised = false
}

// Raised reports whether the signal is set.
func (s *StallSignal) Raised() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raised
}

// StallState is the state of the stall monitor.
type StallState int

const (
	Idle StallState = iota
	Recovering
)

func (s StallState) String() string {
	if s == Recovering {
		return "recovering"
	}
	return "idle"
}

// Stall power-cycles the controller when the stall signal is raised:
// off, wait, on, then clear the signal.
type Stall struct {
	signal   *StallSignal
	sender   command.Sender
	recovery time.Duration
	poll     time.Duration

	mu    sync.Mutex
	state StallState
}

// NewStall creates a stall monitor. recovery is the pause between "off"
// and "on"; poll is how often the signal is checked.
func NewStall(signal *StallSignal, sender command.Sender, recovery, poll time.Duration) *Stall {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	return &Stall{
		signal:   signal,
		sender:   sender,
		recovery: recovery,
		poll:     poll,
	}
}

// Run polls the signal until ctx is done.
func (m *Stall) Run(ctx context.Context) {
	logger := log.WithField("loop", "stall")
	logger.Debug("Stall monitor started")
	defer logger.Debug("Stall monitor stopped")

	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.signal.Raised() {
				m.restart(ctx, logger)
			}
		}
	}
}

// restart runs one off/wait/on sequence. Shutdown cuts the wait short but
// "on" is still sent so the controller is not left off.
func (m *Stall) restart(ctx context.Context, logger *log.Entry) {
	m.setState(Recovering)
	defer m.setState(Idle)

	logger.Warn("Controller stalled, restarting")

	if err := m.sender.Send(command.Off); err != nil {
		logger.WithError(err).Error("Failed to stop controller")
	}

	timer := time.NewTimer(m.recovery)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		logger.Info("Shutdown during stall recovery")
	}

	if err := m.sender.Send(command.On); err != nil {
		logger.WithError(err).Error("Failed to restart controller")
	}

	m.signal.Clear()
	stallRecoveries.Inc()
	logger.Info("Stall recovery complete")
}

func (m *Stall) setState(s StallState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

// State returns the current monitor state.
func (m *Stall) State() StallState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
