package gcode

import "math"

// Metrics are estimated print statistics derived from parsed G-code.
type Metrics struct {
	EstimatedTimeHours  float64 `json:"estimated_time_hours"`
	FilamentWeightGrams float64 `json:"filament_weight_g"`
	EstimatedCostUSD    float64 `json:"estimated_cost_usd"`
	LayerCount          int     `json:"layer_count"`
	TotalMoves          int     `json:"total_moves"`
	Retracts            int     `json:"retracts"`
	TemperatureChanges  int     `json:"temperature_changes"`
}

// MetricsOptions parameterize the estimate for the loaded filament.
type MetricsOptions struct {
	// FilamentDiameter in mm. Default 1.75.
	FilamentDiameter float64
	// FilamentDensity in g/cm3. Default 1.24 (PLA).
	FilamentDensity float64
	// CostPerGram in USD. Default 0.02.
	CostPerGram float64
}

func (o *MetricsOptions) applyDefaults() {
	if o.FilamentDiameter <= 0 {
		o.FilamentDiameter = 1.75
	}
	if o.FilamentDensity <= 0 {
		o.FilamentDensity = 1.24
	}
	if o.CostPerGram <= 0 {
		o.CostPerGram = 0.02
	}
}

// EstimateMetrics walks the move commands and derives time, weight and
// cost estimates. Time uses total XY travel over the mean commanded feed
// rate, a deliberately coarse model; slicer estimates remain authoritative.
func EstimateMetrics(lines []Line, opts MetricsOptions) Metrics {
	opts.applyDefaults()

	var (
		totalDistance float64
		totalExtruded float64
		speeds        []float64
		zSeen         = map[float64]bool{}
		totalMoves    int
		retracts      int
		tempChanges   int

		lastX, lastY float64
		haveXY       bool
	)

	for _, line := range lines {
		switch line.Command {
		case "M104", "M109", "M140", "M190":
			tempChanges++
		case "G1":
			totalMoves++

			if f, ok := line.Param("F"); ok {
				speeds = append(speeds, f)
			}

			x, hasX := line.Param("X")
			y, hasY := line.Param("Y")
			if haveXY && hasX && hasY {
				dx := x - lastX
				dy := y - lastY
				totalDistance += math.Sqrt(dx*dx + dy*dy)
			}
			if hasX {
				lastX = x
			}
			if hasY {
				lastY = y
			}
			if hasX && hasY {
				haveXY = true
			}

			if z, ok := line.Param("Z"); ok {
				zSeen[z] = true
			}

			if e, ok := line.Param("E"); ok {
				if e > 0 {
					totalExtruded += e
				} else if e < 0 {
					retracts++
				}
			}
		}
	}

	avgSpeed := 3000.0 // mm/min fallback
	if len(speeds) > 0 {
		sum := 0.0
		for _, s := range speeds {
			sum += s
		}
		avgSpeed = sum / float64(len(speeds))
	}

	timeHours := 0.0
	if avgSpeed > 0 {
		timeHours = totalDistance / (avgSpeed * 60)
	}

	// E values are filament length in mm; convert to volume, then mass.
	radius := opts.FilamentDiameter / 2
	volumeMM3 := totalExtruded * math.Pi * radius * radius
	volumeCM3 := volumeMM3 / 1000
	weightGrams := volumeCM3 * opts.FilamentDensity

	return Metrics{
		EstimatedTimeHours:  timeHours,
		FilamentWeightGrams: weightGrams,
		EstimatedCostUSD:    weightGrams * opts.CostPerGram,
		LayerCount:          len(zSeen),
		TotalMoves:          totalMoves,
		Retracts:            retracts,
		TemperatureChanges:  tempChanges,
	}
}
