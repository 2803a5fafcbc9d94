package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Sensor      SerialConfig      `yaml:"sensor"`
	Controller  SerialConfig      `yaml:"controller"`
	Collector   CollectorConfig   `yaml:"collector"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Cycle       CycleConfig       `yaml:"cycle"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Status      StatusConfig      `yaml:"status"`
	Log         LogConfig         `yaml:"log"`
	Mock        MockConfig        `yaml:"mock"`
}

// SerialConfig contains serial port configuration for one device.
type SerialConfig struct {
	Port        string        `yaml:"port"`
	BaudRate    int           `yaml:"baud_rate"`
	Parity      string        `yaml:"parity"`    // none, even, odd
	StopBits    int           `yaml:"stop_bits"` // 1 or 2
	ReadTimeout time.Duration `yaml:"read_timeout"`
	RetryDelay  time.Duration `yaml:"retry_delay"` // Pause after a failed read before retrying
}

// CollectorConfig contains the remote event collector endpoint.
type CollectorConfig struct {
	Enabled bool          `yaml:"enabled"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// MQTTConfig contains broker settings for the remote command channel and
// event publication. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker       string `yaml:"broker"`
	ClientID     string `yaml:"client_id"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	CommandTopic string `yaml:"command_topic"`
	EventTopic   string `yaml:"event_topic"`
}

// MonitorConfig contains threshold and stall monitor parameters.
type MonitorConfig struct {
	Setpoint       float64       `yaml:"setpoint"`         // Over-temperature setpoint (°C)
	StallRecovery  time.Duration `yaml:"stall_recovery"`   // Pause between "off" and "on" during recovery
	StallPoll      time.Duration `yaml:"stall_poll"`       // Stall signal polling interval
	StallOnTimeout bool          `yaml:"stall_on_timeout"` // Treat a controller read timeout as a stall
}

// CycleConfig contains cycle detection parameters.
type CycleConfig struct {
	StartMarker       string  `yaml:"start_marker"`
	EndMarker         string  `yaml:"end_marker"`
	HistoryLimit      int     `yaml:"history_limit"`      // Max readings kept per cycle
	ReadingSentinel   float64 `yaml:"reading_sentinel"`   // Replaces a NaN reading
	AggregateSentinel float64 `yaml:"aggregate_sentinel"` // Replaces an undefined min/max
}

// PersistenceConfig selects and configures the local record sinks.
type PersistenceConfig struct {
	Backend    string `yaml:"backend"` // csv or sqlite
	Dir        string `yaml:"dir"`
	SQLiteFile string `yaml:"sqlite_file"`
}

// StatusConfig contains the optional HTTP status server address.
type StatusConfig struct {
	Addr string `yaml:"addr"` // Empty disables the server
}

// LogConfig contains logging parameters.
type LogConfig struct {
	Level string `yaml:"level"`
}

// MockConfig contains simulated dynamometer configuration.
type MockConfig struct {
	AmbientTemp   float64       `yaml:"ambient_temp"`   // Temperature between cycles (°C)
	HeatRate      float64       `yaml:"heat_rate"`      // °C per second while braking
	CoolRate      float64       `yaml:"cool_rate"`      // °C per second while idle
	CycleDuration time.Duration `yaml:"cycle_duration"` // Time between Start and End
	IdleDuration  time.Duration `yaml:"idle_duration"`  // Time between End and next Start
	SampleRate    time.Duration `yaml:"sample_rate"`    // Sensor line interval
	StallEvery    int           `yaml:"stall_every"`    // Emit a stall line every N cycles (0 = never)
	NaNEvery      int           `yaml:"nan_every"`      // Emit "nan" every N sensor lines (0 = never)
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Sensor: SerialConfig{
			Port:        "COM14", // "/dev/ttyUSB0" on Linux
			BaudRate:    9600,
			Parity:      "even",
			StopBits:    1,
			ReadTimeout: time.Second,
			RetryDelay:  time.Second,
		},
		Controller: SerialConfig{
			Port:        "COM15",
			BaudRate:    9600,
			Parity:      "none",
			StopBits:    1,
			ReadTimeout: 220 * time.Second,
			RetryDelay:  time.Second,
		},
		Collector: CollectorConfig{
			Enabled: true,
			URL:     "http://localhost:3000",
			Timeout: 2 * time.Second,
		},
		MQTT: MQTTConfig{
			ClientID:     "dyno",
			CommandTopic: "dyno/mode",
			EventTopic:   "dyno/events",
		},
		Monitor: MonitorConfig{
			Setpoint:       90,
			StallRecovery:  5 * time.Second,
			StallPoll:      100 * time.Millisecond,
			StallOnTimeout: true,
		},
		Cycle: CycleConfig{
			StartMarker:       "Start",
			EndMarker:         "End",
			HistoryLimit:      100000,
			ReadingSentinel:   69.69,
			AggregateSentinel: -2,
		},
		Persistence: PersistenceConfig{
			Backend:    "csv",
			Dir:        ".",
			SQLiteFile: "dyno.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Mock: MockConfig{
			AmbientTemp:   35.0,
			HeatRate:      12.0,
			CoolRate:      4.0,
			CycleDuration: 5 * time.Second,
			IdleDuration:  10 * time.Second,
			SampleRate:    200 * time.Millisecond,
			StallEvery:    7,
			NaNEvery:      150,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Environment variables recognised by ApplyEnv.
const (
	EnvSensorPort     = "DYNO_SENSOR_PORT"
	EnvControllerPort = "DYNO_CONTROLLER_PORT"
	EnvCollectorURL   = "DYNO_COLLECTOR_URL"
	EnvMQTTBroker     = "DYNO_MQTT_BROKER"
	EnvLogLevel       = "DYNO_LOG_LEVEL"
	EnvSetpoint       = "DYNO_SETPOINT"
)

// ApplyEnv overrides configuration fields from environment variables.
// Unset variables leave the field untouched.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvSensorPort); v != "" {
		c.Sensor.Port = v
	}
	if v := os.Getenv(EnvControllerPort); v != "" {
		c.Controller.Port = v
	}
	if v := os.Getenv(EnvCollectorURL); v != "" {
		c.Collector.URL = v
	}
	if v := os.Getenv(EnvMQTTBroker); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvSetpoint); v != "" {
		setpoint, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvSetpoint, v, err)
		}
		c.Monitor.Setpoint = setpoint
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
// Fields where zero is meaningful, such as the setpoint, keep the value
// Default set before unmarshalling unless the file overrides them.
func (c *Config) ensureDefaults() {
	def := Default()

	ensureSerial(&c.Sensor, def.Sensor)
	ensureSerial(&c.Controller, def.Controller)

	if c.Collector.URL == "" {
		c.Collector.URL = def.Collector.URL
	}
	if c.Collector.Timeout == 0 {
		c.Collector.Timeout = def.Collector.Timeout
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.CommandTopic == "" {
		c.MQTT.CommandTopic = def.MQTT.CommandTopic
	}
	if c.MQTT.EventTopic == "" {
		c.MQTT.EventTopic = def.MQTT.EventTopic
	}

	if c.Monitor.StallRecovery == 0 {
		c.Monitor.StallRecovery = def.Monitor.StallRecovery
	}
	if c.Monitor.StallPoll == 0 {
		c.Monitor.StallPoll = def.Monitor.StallPoll
	}

	if c.Cycle.StartMarker == "" {
		c.Cycle.StartMarker = def.Cycle.StartMarker
	}
	if c.Cycle.EndMarker == "" {
		c.Cycle.EndMarker = def.Cycle.EndMarker
	}
	if c.Cycle.HistoryLimit <= 0 {
		c.Cycle.HistoryLimit = def.Cycle.HistoryLimit
	}

	if c.Persistence.Backend == "" {
		c.Persistence.Backend = def.Persistence.Backend
	}
	if c.Persistence.Dir == "" {
		c.Persistence.Dir = def.Persistence.Dir
	}
	if c.Persistence.SQLiteFile == "" {
		c.Persistence.SQLiteFile = def.Persistence.SQLiteFile
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.CycleDuration == 0 {
		c.Mock.CycleDuration = def.Mock.CycleDuration
	}
	if c.Mock.IdleDuration == 0 {
		c.Mock.IdleDuration = def.Mock.IdleDuration
	}
	if c.Mock.HeatRate == 0 {
		c.Mock.HeatRate = def.Mock.HeatRate
	}
	if c.Mock.CoolRate == 0 {
		c.Mock.CoolRate = def.Mock.CoolRate
	}
}

func ensureSerial(c *SerialConfig, def SerialConfig) {
	if c.Port == "" {
		c.Port = def.Port
	}
	if c.BaudRate == 0 {
		c.BaudRate = def.BaudRate
	}
	if c.Parity == "" {
		c.Parity = def.Parity
	}
	if c.StopBits == 0 {
		c.StopBits = def.StopBits
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = def.RetryDelay
	}
}
