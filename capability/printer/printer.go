package printer

import (
	"context"
	"fmt"

	"github.com/printmind/printmind/capability"
)

// Hard ceilings regardless of what the oracle asks for. Consumer FDM
// hardware rarely tolerates more.
const (
	MaxNozzleCelsius = 300.0
	MaxBedCelsius    = 130.0
)

// NewStatusCapability exposes the controller's status as printer_status.
func NewStatusCapability(controller Controller) capability.Capability {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}

	return capability.NewFunc(
		"printer_status",
		"Read the printer's current state: heater temperatures, targets and active job.",
		schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			status, err := controller.Status(ctx)
			if err != nil {
				return nil, fmt.Errorf("printer unreachable: %w", err)
			}
			return status, nil
		},
	)
}

// SetTemperatureResult reports the targets that were applied.
type SetTemperatureResult struct {
	BedTarget    *float64 `json:"bed_target,omitempty"`
	NozzleTarget *float64 `json:"nozzle_target,omitempty"`
	Applied      bool     `json:"applied"`
}

// NewSetTemperatureCapability exposes heater control as
// printer_set_temperature. At least one target is required, and targets
// beyond the hardware ceilings are rejected before any command is sent.
func NewSetTemperatureCapability(controller Controller) capability.Capability {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"bed_celsius": map[string]any{
				"type":        "number",
				"description": "Target bed temperature in °C (0 turns the heater off)",
			},
			"nozzle_celsius": map[string]any{
				"type":        "number",
				"description": "Target nozzle temperature in °C (0 turns the heater off)",
			},
		},
	}

	return capability.NewFunc(
		"printer_set_temperature",
		"Set the printer's bed and/or nozzle target temperature.",
		schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			var bed, nozzle *float64
			if v, ok := args["bed_celsius"].(float64); ok {
				bed = &v
			}
			if v, ok := args["nozzle_celsius"].(float64); ok {
				nozzle = &v
			}

			if bed == nil && nozzle == nil {
				return nil, fmt.Errorf("at least one of bed_celsius or nozzle_celsius is required")
			}
			if bed != nil && (*bed < 0 || *bed > MaxBedCelsius) {
				return nil, fmt.Errorf("bed target %.1f°C outside safe range [0, %.0f]", *bed, MaxBedCelsius)
			}
			if nozzle != nil && (*nozzle < 0 || *nozzle > MaxNozzleCelsius) {
				return nil, fmt.Errorf("nozzle target %.1f°C outside safe range [0, %.0f]", *nozzle, MaxNozzleCelsius)
			}

			if err := controller.SetTemperature(ctx, bed, nozzle); err != nil {
				return nil, fmt.Errorf("set temperature failed: %w", err)
			}

			return SetTemperatureResult{BedTarget: bed, NozzleTarget: nozzle, Applied: true}, nil
		},
	)
}
