// Package gcode provides local analysis of sliced G-code: parsing,
// safety validation against material profiles, and print metric estimation
// (time, filament weight, cost). It backs the analyze_gcode and
// gcode_metrics capabilities; no printer connection is involved.
package gcode

import (
	"strconv"
	"strings"
	"unicode"
)

// Line is one parsed G-code statement.
type Line struct {
	Number  int                `json:"line_number"`
	Command string             `json:"command"`
	Params  map[string]float64 `json:"params,omitempty"`
	Comment string             `json:"comment,omitempty"`
}

// Parse converts raw G-code text into structured lines. Comments are
// stripped and kept; blank and comment-only lines are skipped. Parameters
// are single-letter keys with numeric values (X10.5, F3000, S200).
func Parse(content string) []Line {
	var lines []Line

	for i, raw := range strings.Split(content, "\n") {
		comment := ""
		commandPart := raw
		if idx := strings.Index(raw, ";"); idx >= 0 {
			commandPart = raw[:idx]
			comment = strings.TrimSpace(raw[idx+1:])
		}

		commandPart = strings.TrimSpace(commandPart)
		if commandPart == "" {
			continue
		}

		tokens := strings.Fields(commandPart)
		cmd := strings.ToUpper(tokens[0])

		var params map[string]float64
		for _, token := range tokens[1:] {
			if len(token) < 2 || !unicode.IsLetter(rune(token[0])) {
				continue
			}
			value, ok := parseFloat(token[1:])
			if !ok {
				continue
			}
			if params == nil {
				params = map[string]float64{}
			}
			params[strings.ToUpper(token[:1])] = value
		}

		lines = append(lines, Line{
			Number:  i + 1,
			Command: cmd,
			Params:  params,
			Comment: comment,
		})
	}

	return lines
}

// Param returns the parameter value and whether it is present.
func (l Line) Param(key string) (float64, bool) {
	v, ok := l.Params[key]
	return v, ok
}

func parseFloat(s string) (float64, bool) {
	// strconv.ParseFloat accepts "NaN" and "Inf", which are never valid
	// in G-code coordinates.
	lower := strings.ToLower(s)
	if strings.Contains(lower, "nan") || strings.Contains(lower, "inf") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
