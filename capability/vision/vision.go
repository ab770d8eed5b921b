// Package vision provides the inspect_image capability: defect detection
// on photos of in-progress or finished prints. Detection itself sits
// behind the Detector interface so deployments can plug in a local model
// or a hosted vision service; the package owns severity assessment and
// remediation advice for the defect taxonomy.
package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/printmind/printmind/capability"
)

// Detection is one defect found in an image.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Detector finds print defects in raw image bytes.
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]Detection, error)
}

// Severity buckets, ordered.
const (
	SeverityNone     = "none"
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

var criticalDefects = map[string]bool{
	"spaghetti":   true,
	"layer_shift": true,
}

var highDefects = map[string]bool{
	"warping":        true,
	"stringing":      true,
	"over_extrusion": true,
}

var mediumDefects = map[string]bool{
	"under_extrusion": true,
	"blobs":           true,
	"zits":            true,
}

var remediations = map[string]string{
	"spaghetti":       "Stop the print. Check bed adhesion and first layer calibration before restarting.",
	"layer_shift":     "Check belt tension and pulley grub screws; reduce travel speed and acceleration.",
	"warping":         "Increase bed temperature, use a brim or enclosure, and clean the build surface.",
	"stringing":       "Lower nozzle temperature by 5-10°C and increase retraction distance.",
	"over_extrusion":  "Lower the flow rate and verify the filament diameter setting.",
	"under_extrusion": "Check for partial nozzle clogs and raise nozzle temperature slightly.",
	"blobs":           "Tune retraction and enable coasting or wipe in the slicer.",
	"zits":            "Randomize the seam position and tune retraction settings.",
}

// AssessSeverity maps a defect list to the worst applicable severity.
func AssessSeverity(defects []string) string {
	severity := SeverityNone
	for _, d := range defects {
		label := strings.ToLower(strings.ReplaceAll(d, " ", "_"))
		switch {
		case criticalDefects[label]:
			return SeverityCritical
		case highDefects[label]:
			severity = SeverityHigh
		case mediumDefects[label] && severity != SeverityHigh:
			severity = SeverityMedium
		case severity == SeverityNone:
			severity = SeverityLow
		}
	}
	return severity
}

// Recommendations returns remediation advice for known defects.
func Recommendations(defects []string) []string {
	var recs []string
	seen := map[string]bool{}
	for _, d := range defects {
		label := strings.ToLower(strings.ReplaceAll(d, " ", "_"))
		if rec, ok := remediations[label]; ok && !seen[label] {
			seen[label] = true
			recs = append(recs, rec)
		}
	}
	return recs
}

// InspectionResult is the structured output of inspect_image.
type InspectionResult struct {
	Defects         []string    `json:"defects_detected"`
	Detections      []Detection `json:"detections"`
	Severity        string      `json:"severity"`
	Recommendations []string    `json:"recommendations"`
}

// NewInspectCapability exposes the detector as the inspect_image
// capability. The image arrives base64-encoded in the arguments.
func NewInspectCapability(detector Detector) capability.Capability {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"image_base64": map[string]any{
				"type":        "string",
				"description": "Base64-encoded photo of the print",
			},
		},
		"required": []string{"image_base64"},
	}

	return capability.NewFunc(
		"inspect_image",
		"Inspect a photo of a print for defects (stringing, warping, layer shifts) and return severity plus remediation advice.",
		schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			encoded, _ := args["image_base64"].(string)
			image, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, fmt.Errorf("image_base64 is not valid base64: %w", err)
			}
			if len(image) == 0 {
				return nil, fmt.Errorf("image is empty")
			}

			detections, err := detector.Detect(ctx, image)
			if err != nil {
				return nil, fmt.Errorf("defect detection failed: %w", err)
			}

			labels := map[string]bool{}
			for _, d := range detections {
				labels[strings.ToLower(strings.ReplaceAll(d.Label, " ", "_"))] = true
			}
			defects := make([]string, 0, len(labels))
			for l := range labels {
				defects = append(defects, l)
			}
			sort.Strings(defects)

			return InspectionResult{
				Defects:         defects,
				Detections:      detections,
				Severity:        AssessSeverity(defects),
				Recommendations: Recommendations(defects),
			}, nil
		},
	)
}

// StaticDetector returns a fixed detection set, useful for tests and for
// deployments without a vision backend.
type StaticDetector struct {
	Detections []Detection
	Err        error
}

// Detect implements Detector.
func (d *StaticDetector) Detect(ctx context.Context, image []byte) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.Detections, d.Err
}
