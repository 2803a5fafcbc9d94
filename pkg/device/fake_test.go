package device

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_ScriptedLines(t *testing.T) {
	f := NewFake()
	require.NoError(t, f.Connect())

	f.Feed("36.5", "")
	f.FeedTimeout()
	f.FeedError(errors.New("framing error"))

	line, err := f.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "36.5", line)

	line, err = f.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "", line)

	_, err = f.ReadLine()
	assert.ErrorIs(t, err, ErrReadTimeout)

	_, err = f.ReadLine()
	assert.EqualError(t, err, "framing error")
}

func TestFake_Writes(t *testing.T) {
	f := NewFake()

	_, err := f.Write([]byte("on"))
	require.NoError(t, err)

	f.SetWriteError(errors.New("unplugged"))
	_, err = f.Write([]byte("off"))
	assert.Error(t, err)

	assert.Equal(t, []string{"on"}, f.Written())
}

func TestFake_CloseUnblocksRead(t *testing.T) {
	f := NewFake()
	require.NoError(t, f.Connect())

	done := make(chan error, 1)
	go func() {
		_, err := f.ReadLine()
		done <- err
	}()

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("ReadLine did not return after Close")
	}
	assert.False(t, f.IsConnected())
}
