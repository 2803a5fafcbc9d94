package monitor

import (
	"errors"
	"sync"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/command"
)

// fakeSender records commands and can be told to fail.
type fakeSender struct {
	mu   sync.Mutex
	sent []command.Command
	err  error
}

func (f *fakeSender) Send(c command.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return &command.DeviceWriteError{Command: c, Err: f.err}
	}
	f.sent = append(f.sent, c)
	return nil
}

func (f *fakeSender) Sent() []command.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]command.Command, len(f.sent))
	copy(result, f.sent)
	return result
}

func (f *fakeSender) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

var errUnplugged = errors.New("unplugged")
