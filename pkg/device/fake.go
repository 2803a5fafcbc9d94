package device

import (
	"fmt"
	"sync"
)

// fakeLine is one scripted ReadLine result.
type fakeLine struct {
	text string
	err  error
}

// Fake is a scripted Device for tests. Lines fed with Feed are returned by
// ReadLine in order; writes are recorded.
type Fake struct {
	lines chan fakeLine

	mu        sync.Mutex
	connected bool
	closed    chan struct{}
	written   []string
	writeErr  error
	connErr   error
}

// NewFake creates a Fake with room for buffered scripted lines.
func NewFake() *Fake {
	return &Fake{
		lines:  make(chan fakeLine, 1024),
		closed: make(chan struct{}),
	}
}

// Feed queues lines to be returned by ReadLine.
func (f *Fake) Feed(lines ...string) {
	for _, l := range lines {
		f.lines <- fakeLine{text: l}
	}
}

// FeedTimeout queues a read timeout.
func (f *Fake) FeedTimeout() {
	f.lines <- fakeLine{err: ErrReadTimeout}
}

// FeedError queues an arbitrary read error.
func (f *Fake) FeedError(err error) {
	f.lines <- fakeLine{err: err}
}

// SetWriteError makes subsequent writes fail with err (nil restores).
func (f *Fake) SetWriteError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

// SetConnectError makes Connect fail with err.
func (f *Fake) SetConnectError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connErr = err
}

// Written returns everything written so far, one entry per Write call.
func (f *Fake) Written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]string, len(f.written))
	copy(result, f.written)
	return result
}

// Connect marks the fake connected.
func (f *Fake) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.connErr != nil {
		return f.connErr
	}
	if f.connected {
		return fmt.Errorf("already connected")
	}
	f.connected = true
	return nil
}

// Close unblocks pending and future ReadLine calls with ErrClosed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	f.connected = false
	return nil
}

// ReadLine returns the next scripted line, blocking until one is fed.
func (f *Fake) ReadLine() (string, error) {
	select {
	case <-f.closed:
		return "", ErrClosed
	default:
	}

	select {
	case l := <-f.lines:
		return l.text, l.err
	case <-f.closed:
		return "", ErrClosed
	}
}

// Write records p unless a write error is set.
func (f *Fake) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.written = append(f.written, string(p))
	return len(p), nil
}

// IsConnected reports whether Connect was called and Close was not.
func (f *Fake) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}
