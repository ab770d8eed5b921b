// Package printer provides the printer_status and printer_set_temperature
// capabilities over a Moonraker-compatible HTTP API. Device control is the
// one capability family with side effects on hardware, so it ships with
// zero-retry policies and hard temperature ceilings.
package printer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Status is a snapshot of the printer's heaters and job state.
type Status struct {
	State        string  `json:"state"`
	Filename     string  `json:"filename,omitempty"`
	BedTemp      float64 `json:"bed_temp"`
	BedTarget    float64 `json:"bed_target"`
	NozzleTemp   float64 `json:"nozzle_temp"`
	NozzleTarget float64 `json:"nozzle_target"`
}

// Controller is the device surface the capabilities run against.
type Controller interface {
	Status(ctx context.Context) (Status, error)
	SetTemperature(ctx context.Context, bed, nozzle *float64) error
}

// ClientOptions configures the Moonraker client.
type ClientOptions struct {
	// Timeout bounds each HTTP request. Default 10s.
	Timeout time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to a Moonraker instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Moonraker client for the given base URL.
func NewClient(baseURL string, optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{Timeout: 10 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// moonrakerStatus mirrors the subset of the objects/query response we read.
type moonrakerStatus struct {
	Result struct {
		Status struct {
			HeaterBed struct {
				Temperature float64 `json:"temperature"`
				Target      float64 `json:"target"`
			} `json:"heater_bed"`
			Extruder struct {
				Temperature float64 `json:"temperature"`
				Target      float64 `json:"target"`
			} `json:"extruder"`
			PrintStats struct {
				State    string `json:"state"`
				Filename string `json:"filename"`
			} `json:"print_stats"`
		} `json:"status"`
	} `json:"result"`
}

// Status implements Controller.
func (c *Client) Status(ctx context.Context) (Status, error) {
	url := c.baseURL + "/printer/objects/query?heater_bed&extruder&print_stats"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Status{}, fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("query printer status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Status{}, fmt.Errorf("printer status returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed moonrakerStatus
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Status{}, fmt.Errorf("decode printer status: %w", err)
	}

	s := parsed.Result.Status
	return Status{
		State:        s.PrintStats.State,
		Filename:     s.PrintStats.Filename,
		BedTemp:      s.HeaterBed.Temperature,
		BedTarget:    s.HeaterBed.Target,
		NozzleTemp:   s.Extruder.Temperature,
		NozzleTarget: s.Extruder.Target,
	}, nil
}

// SetTemperature implements Controller by issuing SET_HEATER_TEMPERATURE
// commands through the gcode script endpoint. Nil targets are left alone.
func (c *Client) SetTemperature(ctx context.Context, bed, nozzle *float64) error {
	var commands []string
	if bed != nil {
		commands = append(commands, fmt.Sprintf("SET_HEATER_TEMPERATURE HEATER=heater_bed TARGET=%.1f", *bed))
	}
	if nozzle != nil {
		commands = append(commands, fmt.Sprintf("SET_HEATER_TEMPERATURE HEATER=extruder TARGET=%.1f", *nozzle))
	}
	if len(commands) == 0 {
		return nil
	}
	return c.runScript(ctx, strings.Join(commands, "\n"))
}

func (c *Client) runScript(ctx context.Context, script string) error {
	payload, err := json.Marshal(map[string]string{"script": script})
	if err != nil {
		return fmt.Errorf("encode gcode script: %w", err)
	}

	url := c.baseURL + "/printer/gcode/script"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build gcode request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send gcode script: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gcode script returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
