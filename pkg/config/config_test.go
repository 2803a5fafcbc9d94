package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "COM14", cfg.Sensor.Port)
	assert.Equal(t, 9600, cfg.Sensor.BaudRate)
	assert.Equal(t, "even", cfg.Sensor.Parity)
	assert.Equal(t, "COM15", cfg.Controller.Port)
	assert.Equal(t, 220*time.Second, cfg.Controller.ReadTimeout)
	assert.True(t, cfg.Collector.Enabled)
	assert.Equal(t, "http://localhost:3000", cfg.Collector.URL)
	assert.Equal(t, float64(90), cfg.Monitor.Setpoint)
	assert.Equal(t, 5*time.Second, cfg.Monitor.StallRecovery)
	assert.True(t, cfg.Monitor.StallOnTimeout)
	assert.Equal(t, "Start", cfg.Cycle.StartMarker)
	assert.Equal(t, "End", cfg.Cycle.EndMarker)
	assert.Equal(t, 69.69, cfg.Cycle.ReadingSentinel)
	assert.Equal(t, float64(-2), cfg.Cycle.AggregateSentinel)
	assert.Equal(t, "csv", cfg.Persistence.Backend)
	assert.Empty(t, cfg.MQTT.Broker)
	assert.Empty(t, cfg.Status.Addr)
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "COM14", cfg.Sensor.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
sensor:
  port: "/dev/ttyUSB0"
  baud_rate: 115200
  parity: none
  read_timeout: 500ms

controller:
  port: "/dev/ttyACM0"
  read_timeout: 30s

collector:
  enabled: false
  url: "http://collector:3000"

mqtt:
  broker: "tcp://broker:1883"
  command_topic: "bench/mode"

monitor:
  setpoint: 120
  stall_recovery: 2s
  stall_on_timeout: false

cycle:
  start_marker: "BEGIN"
  end_marker: "FINISH"
  history_limit: 500

persistence:
  backend: sqlite
  sqlite_file: "bench.db"
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Sensor.Port)
	assert.Equal(t, 115200, cfg.Sensor.BaudRate)
	assert.Equal(t, "none", cfg.Sensor.Parity)
	assert.Equal(t, 500*time.Millisecond, cfg.Sensor.ReadTimeout)
	assert.Equal(t, "/dev/ttyACM0", cfg.Controller.Port)
	assert.Equal(t, 30*time.Second, cfg.Controller.ReadTimeout)
	assert.False(t, cfg.Collector.Enabled)
	assert.Equal(t, "http://collector:3000", cfg.Collector.URL)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "bench/mode", cfg.MQTT.CommandTopic)
	assert.Equal(t, float64(120), cfg.Monitor.Setpoint)
	assert.Equal(t, 2*time.Second, cfg.Monitor.StallRecovery)
	assert.False(t, cfg.Monitor.StallOnTimeout)
	assert.Equal(t, "BEGIN", cfg.Cycle.StartMarker)
	assert.Equal(t, "FINISH", cfg.Cycle.EndMarker)
	assert.Equal(t, 500, cfg.Cycle.HistoryLimit)
	assert.Equal(t, "sqlite", cfg.Persistence.Backend)
	assert.Equal(t, "bench.db", cfg.Persistence.SQLiteFile)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
sensor:
  port: "/dev/ttyUSB1"
cycle:
  history_limit: 0
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyUSB1", cfg.Sensor.Port)
	assert.Equal(t, 9600, cfg.Sensor.BaudRate)         // default
	assert.Equal(t, "COM15", cfg.Controller.Port)      // default
	assert.Equal(t, float64(90), cfg.Monitor.Setpoint) // default
	assert.Equal(t, 100000, cfg.Cycle.HistoryLimit)    // zero replaced
	assert.True(t, cfg.Monitor.StallOnTimeout)         // default kept
}

func TestLoad_ZeroSetpoint(t *testing.T) {
	path := t.TempDir() + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("monitor:\n  setpoint: 0\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, float64(0), cfg.Monitor.Setpoint)
	assert.Equal(t, 5*time.Second, cfg.Monitor.StallRecovery)
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Sensor.Port = "/dev/ttyUSB0"
	cfg.Monitor.Setpoint = 75
	cfg.Monitor.StallRecovery = 3 * time.Second

	path := t.TempDir() + "/config.yaml"

	err := cfg.Save(path)
	require.NoError(t, err)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Sensor.Port)
	assert.Equal(t, float64(75), loaded.Monitor.Setpoint)
	assert.Equal(t, 3*time.Second, loaded.Monitor.StallRecovery)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvSensorPort, "/dev/ttyS1")
	t.Setenv(EnvControllerPort, "/dev/ttyS2")
	t.Setenv(EnvCollectorURL, "http://10.0.0.5:3000")
	t.Setenv(EnvMQTTBroker, "tcp://10.0.0.6:1883")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvSetpoint, "85.5")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "/dev/ttyS1", cfg.Sensor.Port)
	assert.Equal(t, "/dev/ttyS2", cfg.Controller.Port)
	assert.Equal(t, "http://10.0.0.5:3000", cfg.Collector.URL)
	assert.Equal(t, "tcp://10.0.0.6:1883", cfg.MQTT.Broker)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 85.5, cfg.Monitor.Setpoint)
}

func TestApplyEnv_InvalidSetpoint(t *testing.T) {
	t.Setenv(EnvSetpoint, "hot")

	cfg := Default()
	err := cfg.ApplyEnv()
	assert.Error(t, err)
	assert.Equal(t, float64(90), cfg.Monitor.Setpoint)
}
