package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/config"
)

func testMockConfig() *config.MockConfig {
	return &config.MockConfig{
		AmbientTemp:   30,
		HeatRate:      10,
		CoolRate:      5,
		CycleDuration: 2 * time.Second,
		IdleDuration:  time.Second,
		SampleRate:    500 * time.Millisecond,
	}
}

// stepN advances the simulation n times and collects controller lines.
func stepN(m *Mock, n int) (last string, controller []string) {
	for i := 0; i < n; i++ {
		s, c := m.step(m.cfg.SampleRate)
		last = s
		controller = append(controller, c...)
	}
	return last, controller
}

func TestMock_CycleMarkers(t *testing.T) {
	m := NewMock(testMockConfig())

	// Idle for one second: Start on the second step
	_, lines := stepN(m, 2)
	assert.Equal(t, []string{"Start"}, lines)

	// Brake for two seconds: End on the fourth step
	temp, lines := stepN(m, 4)
	assert.Equal(t, []string{"End"}, lines)
	assert.Equal(t, "50.00", temp) // 30 + 10°C/s * 2s
}

func TestMock_Stall(t *testing.T) {
	cfg := testMockConfig()
	cfg.StallEvery = 1
	m := NewMock(cfg)

	_, lines := stepN(m, 2)
	require.Equal(t, []string{"Start"}, lines)

	_, lines = stepN(m, 2)
	assert.Equal(t, []string{""}, lines, "stall emitted halfway through the cycle")

	// Frozen until recovered
	_, lines = stepN(m, 10)
	assert.Empty(t, lines)

	require.NoError(t, m.command("off"))
	require.NoError(t, m.command("on"))

	_, lines = stepN(m, 2)
	assert.Equal(t, []string{"End"}, lines)
	assert.Equal(t, []string{"off", "on"}, m.Commands())
}

func TestMock_PauseAndResume(t *testing.T) {
	m := NewMock(testMockConfig())

	require.NoError(t, m.command("offWithoutBreaking"))
	_, lines := stepN(m, 10)
	assert.Empty(t, lines, "no cycle starts while paused")

	require.NoError(t, m.command("on"))
	_, lines = stepN(m, 2)
	assert.Equal(t, []string{"Start"}, lines)
}

func TestMock_NaN(t *testing.T) {
	cfg := testMockConfig()
	cfg.NaNEvery = 3
	m := NewMock(cfg)

	s, _ := stepN(m, 2)
	assert.NotEqual(t, "nan", s)
	s, _ = stepN(m, 1)
	assert.Equal(t, "nan", s)
}

func TestMock_UnknownCommand(t *testing.T) {
	m := NewMock(testMockConfig())
	assert.Error(t, m.command("explode"))
}

func TestMock_ControllerWrite(t *testing.T) {
	m := NewMock(testMockConfig())
	ctrl := m.Controller()

	_, err := ctrl.Write([]byte("on"))
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, ctrl.Connect())
	defer ctrl.Close()

	n, err := ctrl.Write([]byte("improperTemperatureSet"))
	require.NoError(t, err)
	assert.Equal(t, len("improperTemperatureSet"), n)
	assert.Equal(t, []string{"improperTemperatureSet"}, m.Commands())
}
