package gcode

import "fmt"

// MaterialProfile holds the safe temperature envelope for one filament.
type MaterialProfile struct {
	TempMin float64
	TempMax float64
	BedTemp float64
}

// materialProfiles covers the common filaments. Unknown materials fall
// back to PLA, the most conservative envelope.
var materialProfiles = map[string]MaterialProfile{
	"PLA":  {TempMin: 190, TempMax: 215, BedTemp: 50},
	"PETG": {TempMin: 230, TempMax: 250, BedTemp: 70},
	"ABS":  {TempMin: 240, TempMax: 260, BedTemp: 100},
	"TPU":  {TempMin: 220, TempMax: 240, BedTemp: 50},
	"ASA":  {TempMin: 250, TempMax: 270, BedTemp: 100},
}

// safeRanges bounds per-parameter values regardless of material.
var safeRanges = map[string][2]float64{
	"E": {-50, 1000}, // negative values are retracts
	"F": {1, 10000},
	"X": {-500, 500},
	"Y": {-500, 500},
	"Z": {0, 500},
	"S": {0, 300},
}

// dangerousCommands abort or kill the machine mid-print.
var dangerousCommands = map[string]bool{
	"M112": true, // emergency stop
	"M410": true, // quick stop
}

// Report is the outcome of validating a G-code program.
type Report struct {
	Valid          bool     `json:"valid"`
	Errors         []string `json:"errors"`
	Warnings       []string `json:"warnings"`
	LinesAnalyzed  int      `json:"total_lines_analyzed"`
	Material       string   `json:"material"`
	PrinterProfile string   `json:"printer_profile"`
}

// Validate checks parsed G-code against the material's temperature
// envelope and generic safety ranges. Errors mark conditions likely to
// damage hardware or ruin the print; warnings mark quality risks.
func Validate(lines []Line, printerProfile, material string) Report {
	profile, ok := materialProfiles[material]
	if !ok {
		material = "PLA"
		profile = materialProfiles["PLA"]
	}

	report := Report{
		Errors:         []string{},
		Warnings:       []string{},
		LinesAnalyzed:  len(lines),
		Material:       material,
		PrinterProfile: printerProfile,
	}

	for _, line := range lines {
		switch line.Command {
		case "M104", "M109":
			if temp, ok := line.Param("S"); ok && temp > 0 {
				if temp > profile.TempMax+20 {
					report.Errors = append(report.Errors, fmt.Sprintf(
						"line %d: nozzle temperature %.0f°C is dangerously high for %s (max recommended %.0f°C)",
						line.Number, temp, material, profile.TempMax))
				} else if temp < profile.TempMin-10 {
					report.Warnings = append(report.Warnings, fmt.Sprintf(
						"line %d: nozzle temperature %.0f°C is low for %s (min recommended %.0f°C)",
						line.Number, temp, material, profile.TempMin))
				}
			}
		case "M140", "M190":
			if temp, ok := line.Param("S"); ok && temp > 0 && temp > profile.BedTemp+30 {
				report.Warnings = append(report.Warnings, fmt.Sprintf(
					"line %d: bed temperature %.0f°C is high (recommended %.0f°C for %s)",
					line.Number, temp, profile.BedTemp, material))
			}
		case "G1":
			if speed, ok := line.Param("F"); ok {
				if speed > 9000 {
					report.Warnings = append(report.Warnings, fmt.Sprintf(
						"line %d: high speed %.0f mm/min (>150 mm/s may cause quality issues)",
						line.Number, speed))
				} else if speed < 100 {
					report.Warnings = append(report.Warnings, fmt.Sprintf(
						"line %d: very low speed %.0f mm/min", line.Number, speed))
				}
			}
			if e, ok := line.Param("E"); ok {
				if e > 100 {
					report.Errors = append(report.Errors, fmt.Sprintf(
						"line %d: suspicious E value %.2f (likely slicer error)", line.Number, e))
				} else if e < -10 {
					report.Warnings = append(report.Warnings, fmt.Sprintf(
						"line %d: large retract %.2f mm", line.Number, e))
				}
			}
		}

		if dangerousCommands[line.Command] {
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"line %d: dangerous command %s detected", line.Number, line.Command))
		}

		for param, value := range line.Params {
			bounds, ok := safeRanges[param]
			if !ok {
				continue
			}
			if value < bounds[0] || value > bounds[1] {
				report.Errors = append(report.Errors, fmt.Sprintf(
					"line %d: parameter %s=%.2f out of safe range [%.0f, %.0f]",
					line.Number, param, value, bounds[0], bounds[1]))
			}
		}
	}

	report.Valid = len(report.Errors) == 0
	return report
}
