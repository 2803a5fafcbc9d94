// Package device provides line-oriented access to the dynamometer's serial
// devices: the temperature sensor and the brake controller.
package device

import "errors"

var (
	// ErrReadTimeout is returned by ReadLine when the read timeout elapsed
	// with no data pending. It is distinct from an empty line.
	ErrReadTimeout = errors.New("read timeout")
	// ErrNotConnected is returned when the device has not been connected.
	ErrNotConnected = errors.New("not connected")
	// ErrClosed is returned by ReadLine after the device was closed.
	ErrClosed = errors.New("device closed")
)

// Device defines the interface for line devices (real, simulated or scripted).
type Device interface {
	Connect() error
	Close() error
	// ReadLine blocks until a newline-terminated line arrives, the read
	// timeout elapses, or the device is closed. The line is returned
	// without its terminator.
	ReadLine() (string, error)
	Write(p []byte) (int, error)
	IsConnected() bool
}

var (
	_ Device = (*Serial)(nil)
	_ Device = (*endpoint)(nil)
	_ Device = (*Fake)(nil)
)
