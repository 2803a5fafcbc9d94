// Command dyno acquires brake temperatures from an inertial dynamometer,
// correlates them with test cycles and restarts the controller when it
// stalls.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/config"
)

var (
	configPath     string
	useMock        bool
	sensorPort     string
	controllerPort string
	setpoint       float64
)

var rootCmd = &cobra.Command{
	Use:   "dyno",
	Short: "Dynamometer temperature acquisition and stall recovery",
	Long: `dyno reads brake temperatures from the sensor board, detects test
cycles on the controller board, records per-cycle minimum and maximum
temperatures and sends corrective commands to the controller.

Without a subcommand, dyno runs the acquisition.`,
	SilenceUsage: true,
	RunE:         runAcquisition,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&configPath, "config", "config.yaml", "Configuration file path")
	f.BoolVar(&useMock, "mock", false, "Use the simulated dynamometer instead of serial ports")
	f.StringVar(&sensorPort, "sensor", "", "Sensor serial port override (e.g., COM14 or /dev/ttyUSB0)")
	f.StringVar(&controllerPort, "controller", "", "Controller serial port override (e.g., COM15 or /dev/ttyACM0)")
	f.Float64Var(&setpoint, "setpoint", 0, "Over-temperature setpoint override in °C")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig builds the effective configuration: file, then .env and
// environment, then flags. Logging is set up from the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.WithError(err).Warn("Failed to load .env")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("sensor") {
		cfg.Sensor.Port = sensorPort
	}
	if flags.Changed("controller") {
		cfg.Controller.Port = controllerPort
	}
	if flags.Changed("setpoint") {
		cfg.Monitor.Setpoint = setpoint
	}

	setupLogging(cfg.Log.Level)
	return cfg, nil
}

func setupLogging(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.Debugf("Log level set to: %s", lvl)
}
