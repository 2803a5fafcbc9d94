package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/command"
	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/config"
	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/device"
	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/pipeline"
	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/record"
	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/relay"
	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/web"
)

// shutdownTimeout bounds the wait for the loops after a stop signal.
const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:          "run",
	Short:        "Run the acquisition (default)",
	SilenceUsage: true,
	RunE:         runAcquisition,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runAcquisition(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	session := uuid.NewString()
	start := time.Now()
	logger := log.WithField("session", session)
	logger.Info("Starting dynamometer acquisition")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sensor, controller, err := openDevices(cfg)
	if err != nil {
		return err
	}

	var relays relay.Multi
	if cfg.Collector.Enabled {
		collector := relay.NewCollector(cfg.Collector)
		if err := collector.NewSession(ctx); err != nil {
			return fmt.Errorf("startup: %w", err)
		}
		relays = append(relays, collector)
	}

	dispatcher := command.NewDispatcher(controller)

	var bridge *relay.Bridge
	if cfg.MQTT.Broker != "" {
		bridge = relay.NewBridge(dispatcher)
		client, err := relay.NewMQTT(cfg.MQTT, cfg.MQTT.ClientID+"-"+session[:8], bridge.Deliver)
		if err != nil {
			return fmt.Errorf("startup: %w", err)
		}
		defer client.Close()
		relays = append(relays, client)
	}

	readings, cycles, err := record.Open(cfg.Persistence, session, start)
	if err != nil {
		return err
	}

	engine := pipeline.New(pipeline.Options{
		Config:     cfg,
		Sensor:     sensor,
		Controller: controller,
		Dispatcher: dispatcher,
		Bridge:     bridge,
		Relay:      relays,
		Readings:   readings,
		Cycles:     cycles,
	})

	if cfg.Status.Addr != "" {
		srv := web.New(cfg.Status.Addr, session, engine)
		go func() {
			logger.Infof("Status server listening on %s", cfg.Status.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("Status server failed")
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	done := make(chan error, 1)
	go func() {
		done <- engine.Run(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		logger.Info("Stop signal received")
	}

	select {
	case err := <-done:
		return err
	case <-time.After(shutdownTimeout):
		return fmt.Errorf("acquisition did not stop within %s", shutdownTimeout)
	}
}

// openDevices creates the sensor and controller devices, serial or
// simulated. They are connected by the engine.
func openDevices(cfg *config.Config) (device.Device, device.Device, error) {
	if useMock {
		log.Info("Using simulated dynamometer")
		mock := device.NewMock(&cfg.Mock)
		return mock.Sensor(), mock.Controller(), nil
	}

	sensor, err := device.New(cfg.Sensor)
	if err != nil {
		return nil, nil, fmt.Errorf("sensor: %w", err)
	}
	controller, err := device.New(cfg.Controller)
	if err != nil {
		return nil, nil, fmt.Errorf("controller: %w", err)
	}
	return sensor, controller, nil
}
