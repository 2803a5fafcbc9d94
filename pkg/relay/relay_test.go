package relay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/cycle"
)

func TestFormatPayloads(t *testing.T) {
	payload, err := FormatReading(cycle.Reading{Value: 69.69, Cycle: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"current_temp": 69.69, "cycle": 3}`, string(payload))

	payload, err = FormatCycle(cycle.Record{Min: -2, Max: 101.5, Cycle: 4})
	require.NoError(t, err)
	assert.JSONEq(t, `{"temp_init": -2, "temp_final": 101.5, "cycle": 4}`, string(payload))
}

func TestMulti(t *testing.T) {
	a, b := NewFake(), NewFake()
	m := Multi{a, b}

	require.NoError(t, m.Reading(cycle.Reading{Value: 40}))
	require.NoError(t, m.Cycle(cycle.Record{Cycle: 1}))

	assert.Len(t, a.Readings(), 1)
	assert.Len(t, b.Readings(), 1)
	assert.Len(t, a.Records(), 1)
	assert.Len(t, b.Records(), 1)
}

func TestMulti_ErrorsDoNotStopFanOut(t *testing.T) {
	a, b := NewFake(), NewFake()
	boom := &ConnectivityError{Endpoint: "http://collector", Err: errors.New("refused")}
	a.SetError(boom)
	m := Multi{a, b}

	err := m.Reading(cycle.Reading{Value: 40})
	assert.ErrorIs(t, err, boom)

	var cerr *ConnectivityError
	assert.ErrorAs(t, err, &cerr)
	assert.Len(t, b.Readings(), 1, "later relays still receive the event")
}

func TestMulti_Empty(t *testing.T) {
	var m Multi
	assert.NoError(t, m.Reading(cycle.Reading{}))
	assert.NoError(t, m.Cycle(cycle.Record{}))
}
