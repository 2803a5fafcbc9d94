package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/command"
)

func TestEvaluate(t *testing.T) {
	const setpoint = 90.0

	tests := []struct {
		name    string
		reading float64
		state   ThresholdState
		want    ThresholdState
		wantCmd command.Command
		wantOK  bool
	}{
		{"normal below band", 50, Normal, Normal, "", false},
		{"normal at setpoint", 90, Normal, Normal, "", false},
		{"normal at setpoint+0.5", 90.5, Normal, Normal, "", false},
		{"normal at setpoint-0.5", 89.5, Normal, Normal, "", false},
		{"normal trips at setpoint+1", 91, Normal, OverThreshold, command.OverThresholdSet, true},
		{"normal trips above", 120, Normal, OverThreshold, command.OverThresholdSet, true},
		{"over stays above", 95, OverThreshold, OverThreshold, "", false},
		{"over stays at setpoint", 90, OverThreshold, OverThreshold, "", false},
		{"over stays at setpoint-0.5", 89.5, OverThreshold, OverThreshold, "", false},
		{"over clears at setpoint-1", 89, OverThreshold, Normal, command.OverThresholdReset, true},
		{"over clears below", 20, OverThreshold, Normal, command.OverThresholdReset, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, cmd, ok := Evaluate(tt.reading, setpoint, tt.state)
			assert.Equal(t, tt.want, next)
			assert.Equal(t, tt.wantCmd, cmd)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestThreshold_Hysteresis(t *testing.T) {
	sender := &fakeSender{}
	th := NewThreshold(90, sender)

	readings := []float64{36.5, 91.2, 95, 90, 89.5, 91, 89, 88, 90.9, 91, 92}
	for _, r := range readings {
		require.NoError(t, th.Observe(r))
	}

	assert.Equal(t, []command.Command{
		command.OverThresholdSet,   // 91.2
		command.OverThresholdReset, // 89
		command.OverThresholdSet,   // 91
	}, sender.Sent())
	assert.Equal(t, OverThreshold, th.State())
}

func TestThreshold_NeverRepeatsCommand(t *testing.T) {
	sender := &fakeSender{}
	th := NewThreshold(90, sender)

	for i := 0; i < 500; i++ {
		// Sweep 80..100 back and forth
		v := 80 + float64(i%40)/2
		if (i/40)%2 == 1 {
			v = 100 - float64(i%40)/2
		}
		require.NoError(t, th.Observe(v))
	}

	sent := sender.Sent()
	require.NotEmpty(t, sent)
	for i := 1; i < len(sent); i++ {
		assert.NotEqual(t, sent[i-1], sent[i], "commands must alternate")
	}
}

func TestThreshold_FailedWriteRetries(t *testing.T) {
	sender := &fakeSender{}
	th := NewThreshold(90, sender)

	sender.setErr(errUnplugged)
	err := th.Observe(100)
	var werr *command.DeviceWriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, Normal, th.State(), "state unchanged when the command was not written")

	sender.setErr(nil)
	require.NoError(t, th.Observe(100))
	assert.Equal(t, OverThreshold, th.State())
	assert.Equal(t, []command.Command{command.OverThresholdSet}, sender.Sent())
}

func TestThreshold_Setpoint(t *testing.T) {
	th := NewThreshold(75, &fakeSender{})
	assert.Equal(t, float64(75), th.Setpoint())

	require.NoError(t, th.Observe(76))
	assert.Equal(t, OverThreshold, th.State())
}
