package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/config"
	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/cycle"
)

// Collector endpoints.
const (
	PathNew           = "/new"
	PathContinuous    = "/continuous"
	PathHighestLowest = "/highestlowest"
)

// Collector posts events to the remote collector service over HTTP.
type Collector struct {
	baseURL string
	client  *http.Client
}

// NewCollector creates a collector client.
func NewCollector(cfg config.CollectorConfig) *Collector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Collector{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// NewSession performs the readiness check. Anything but 200 is a
// StartupError.
func (c *Collector) NewSession(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathNew, nil)
	if err != nil {
		return &StartupError{Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &StartupError{Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &StartupError{Status: resp.StatusCode, Err: fmt.Errorf("GET %s: %s", PathNew, resp.Status)}
	}

	log.WithField("url", c.baseURL).Info("Collector ready")
	return nil
}

// Reading posts {current_temp, cycle} to /continuous.
func (c *Collector) Reading(r cycle.Reading) error {
	payload, err := FormatReading(r)
	if err != nil {
		return fmt.Errorf("format reading: %w", err)
	}
	return c.post(PathContinuous, payload)
}

// Cycle posts {temp_init, temp_final, cycle} to /highestlowest.
func (c *Collector) Cycle(rec cycle.Record) error {
	payload, err := FormatCycle(rec)
	if err != nil {
		return fmt.Errorf("format cycle: %w", err)
	}
	return c.post(PathHighestLowest, payload)
}

func (c *Collector) post(path string, payload []byte) error {
	url := c.baseURL + path

	resp, err := c.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return &ConnectivityError{Endpoint: url, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ConnectivityError{Endpoint: url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return nil
}
