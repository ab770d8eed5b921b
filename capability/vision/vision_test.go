package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssessSeverity(t *testing.T) {
	tests := []struct {
		name    string
		defects []string
		want    string
	}{
		{"no defects", nil, SeverityNone},
		{"critical wins", []string{"stringing", "spaghetti"}, SeverityCritical},
		{"space normalized", []string{"layer shift"}, SeverityCritical},
		{"high", []string{"warping"}, SeverityHigh},
		{"medium", []string{"blobs"}, SeverityMedium},
		{"unknown defect is low", []string{"mystery"}, SeverityLow},
		{"high beats medium", []string{"blobs", "stringing"}, SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssessSeverity(tt.defects))
		})
	}
}

func TestRecommendationsDeduplicated(t *testing.T) {
	recs := Recommendations([]string{"stringing", "stringing", "warping", "mystery"})
	assert.Len(t, recs, 2)
}

func TestInspectCapability(t *testing.T) {
	detector := &StaticDetector{Detections: []Detection{
		{Label: "stringing", Confidence: 0.91},
		{Label: "Stringing", Confidence: 0.85},
		{Label: "blobs", Confidence: 0.55},
	}}
	c := NewInspectCapability(detector)
	assert.Equal(t, "inspect_image", c.Name())

	image := base64.StdEncoding.EncodeToString([]byte("fake-jpeg-bytes"))
	out, err := c.Call(context.Background(), map[string]any{"image_base64": image})
	require.NoError(t, err)

	result, ok := out.(InspectionResult)
	require.True(t, ok)
	assert.Equal(t, []string{"blobs", "stringing"}, result.Defects)
	assert.Equal(t, SeverityHigh, result.Severity)
	assert.Len(t, result.Recommendations, 2)
}

func TestInspectCapabilityRejectsBadBase64(t *testing.T) {
	c := NewInspectCapability(&StaticDetector{})
	_, err := c.Call(context.Background(), map[string]any{"image_base64": "!!! not base64 !!!"})
	require.Error(t, err)
}

func TestInspectCapabilityPropagatesDetectorError(t *testing.T) {
	c := NewInspectCapability(&StaticDetector{Err: errors.New("model unavailable")})
	image := base64.StdEncoding.EncodeToString([]byte("img"))
	_, err := c.Call(context.Background(), map[string]any{"image_base64": image})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}
