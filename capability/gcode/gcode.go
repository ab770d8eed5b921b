package gcode

import (
	"context"
	"fmt"
	"strings"

	"github.com/printmind/printmind/capability"
)

// AnalysisResult bundles validation and metrics for the analyze_gcode
// capability.
type AnalysisResult struct {
	Report  Report  `json:"report"`
	Metrics Metrics `json:"metrics"`
}

// NewAnalyzeCapability exposes combined validation plus metric estimation
// as the analyze_gcode capability.
func NewAnalyzeCapability() capability.Capability {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{
				"type":        "string",
				"description": "Raw G-code text to analyze",
			},
			"material": map[string]any{
				"type":        "string",
				"description": "Filament material",
				"enum":        []any{"PLA", "PETG", "ABS", "TPU", "ASA"},
			},
			"printer_profile": map[string]any{
				"type":        "string",
				"description": "Printer profile name (informational)",
			},
		},
		"required": []string{"content"},
	}

	return capability.NewFunc(
		"analyze_gcode",
		"Validate G-code against material temperature limits and safety ranges, and estimate print time, filament weight and cost.",
		schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			content, _ := args["content"].(string)
			if strings.TrimSpace(content) == "" {
				return nil, fmt.Errorf("content must not be empty")
			}

			material, _ := args["material"].(string)
			if material == "" {
				material = "PLA"
			}
			printerProfile, _ := args["printer_profile"].(string)
			if printerProfile == "" {
				printerProfile = "generic"
			}

			lines := Parse(content)
			return AnalysisResult{
				Report:  Validate(lines, printerProfile, material),
				Metrics: EstimateMetrics(lines, MetricsOptions{}),
			}, nil
		},
	)
}

// NewMetricsCapability exposes metric estimation alone as gcode_metrics,
// with filament parameters adjustable per call.
func NewMetricsCapability() capability.Capability {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{
				"type":        "string",
				"description": "Raw G-code text",
			},
			"filament_diameter": map[string]any{
				"type":        "number",
				"description": "Filament diameter in mm (default 1.75)",
			},
			"filament_density": map[string]any{
				"type":        "number",
				"description": "Filament density in g/cm3 (default 1.24)",
			},
			"cost_per_gram": map[string]any{
				"type":        "number",
				"description": "Filament cost per gram in USD (default 0.02)",
			},
		},
		"required": []string{"content"},
	}

	return capability.NewFunc(
		"gcode_metrics",
		"Estimate print time, filament weight and material cost from G-code without validating it.",
		schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			content, _ := args["content"].(string)
			if strings.TrimSpace(content) == "" {
				return nil, fmt.Errorf("content must not be empty")
			}

			opts := MetricsOptions{}
			if v, ok := args["filament_diameter"].(float64); ok {
				opts.FilamentDiameter = v
			}
			if v, ok := args["filament_density"].(float64); ok {
				opts.FilamentDensity = v
			}
			if v, ok := args["cost_per_gram"].(float64); ok {
				opts.CostPerGram = v
			}

			return EstimateMetrics(Parse(content), opts), nil
		},
	)
}
