package device

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/config"
)

const (
	// DefaultBaudRate is the baud rate of both Arduino boards.
	DefaultBaudRate = 9600
	// MaxLineLength bounds a line with no terminator; longer input is
	// returned as a (garbled) line so the buffer cannot grow forever.
	MaxLineLength = 1024
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial represents a connection to one of the dynamometer's serial devices.
type Serial struct {
	port        string
	mode        *serial.Mode
	readTimeout time.Duration

	mu        sync.RWMutex
	conn      serial.Port
	lines     *lineReader
	connected bool
}

// New creates a new Serial device from its configuration.
func New(cfg config.SerialConfig) (*Serial, error) {
	baudRate := cfg.BaudRate
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}

	parity, err := parseParity(cfg.Parity)
	if err != nil {
		return nil, err
	}
	stopBits, err := parseStopBits(cfg.StopBits)
	if err != nil {
		return nil, err
	}

	return &Serial{
		port: cfg.Port,
		mode: &serial.Mode{
			BaudRate: baudRate,
			DataBits: 8,
			Parity:   parity,
			StopBits: stopBits,
		},
		readTimeout: cfg.ReadTimeout,
	}, nil
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(details))
	for _, p := range details {
		desc := p.Name
		if p.IsUSB {
			desc = fmt.Sprintf("%s (USB %s:%s %s)", p.Name, p.VID, p.PID, p.Product)
		}
		result = append(result, Port{
			Name:        p.Name,
			Description: strings.TrimSpace(desc),
		})
	}

	return result, nil
}

// Connect opens the serial port.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	port, err := serial.Open(d.port, d.mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	timeout := d.readTimeout
	if timeout <= 0 {
		timeout = serial.NoTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout on %s: %w", d.port, err)
	}

	d.conn = port
	d.lines = newLineReader(port)
	d.connected = true

	log.WithField("port", d.port).Infof("Opened serial port at %d baud", d.mode.BaudRate)

	return nil
}

// Close closes the connection. A ReadLine blocked on the port returns ErrClosed.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.connected = false
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("Error closing serial port %s: %v", d.port, err)
		}
	}

	return nil
}

// ReadLine reads the next line from the port.
func (d *Serial) ReadLine() (string, error) {
	d.mu.RLock()
	lines := d.lines
	connected := d.connected
	d.mu.RUnlock()

	if lines == nil {
		return "", ErrNotConnected
	}
	if !connected {
		return "", ErrClosed
	}

	line, err := lines.readLine()
	if err != nil && err != ErrReadTimeout && !d.IsConnected() {
		return "", ErrClosed
	}
	return line, err
}

// Write sends raw bytes to the device.
func (d *Serial) Write(p []byte) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return 0, ErrNotConnected
	}

	return d.conn.Write(p)
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// lineReader assembles newline-terminated lines from a reader that returns
// (0, nil) when its read timeout elapses, as go.bug.st/serial ports do.
// Not safe for concurrent use.
type lineReader struct {
	r       io.Reader
	buf     []byte
	pending []byte
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{
		r:   r,
		buf: make([]byte, 256),
	}
}

// readLine returns the next line. On timeout, a partial line is returned as
// is; with nothing pending it returns ErrReadTimeout.
func (l *lineReader) readLine() (string, error) {
	for {
		if i := bytes.IndexByte(l.pending, '\n'); i >= 0 {
			line := string(l.pending[:i])
			l.pending = l.pending[i+1:]
			return strings.TrimRight(line, "\r"), nil
		}

		if len(l.pending) >= MaxLineLength {
			return l.flush(), nil
		}

		n, err := l.r.Read(l.buf)
		if n > 0 {
			l.pending = append(l.pending, l.buf[:n]...)
		}
		if err != nil {
			l.pending = l.pending[:0]
			return "", err
		}
		if n > 0 {
			continue
		}

		if len(l.pending) > 0 {
			return l.flush(), nil
		}
		return "", ErrReadTimeout
	}
}

func (l *lineReader) flush() string {
	line := strings.TrimRight(string(l.pending), "\r")
	l.pending = l.pending[:0]
	return line
}

func parseParity(s string) (serial.Parity, error) {
	switch strings.ToLower(s) {
	case "", "none", "n":
		return serial.NoParity, nil
	case "even", "e":
		return serial.EvenParity, nil
	case "odd", "o":
		return serial.OddParity, nil
	case "mark", "m":
		return serial.MarkParity, nil
	case "space", "s":
		return serial.SpaceParity, nil
	default:
		return 0, fmt.Errorf("invalid parity %q", s)
	}
}

func parseStopBits(n int) (serial.StopBits, error) {
	switch n {
	case 0, 1:
		return serial.OneStopBit, nil
	case 2:
		return serial.TwoStopBits, nil
	default:
		return 0, fmt.Errorf("invalid stop bits %d", n)
	}
}
