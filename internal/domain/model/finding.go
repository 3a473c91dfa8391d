package model

import "fmt"

// BoundingBox locates a finding within the source image, in pixels.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Finding is one detected item of interest. Label and Confidence are always
// set; everything else is optional. Classification output is normalized into
// this shape at the adapter boundary so nothing downstream has to branch on
// representation.
type Finding struct {
	ID           int64          `json:"id,omitempty"`
	StudyID      int64          `json:"study_id,omitempty"`
	Label        string         `json:"label"`
	Confidence   float64        `json:"confidence"`
	BBox         *BoundingBox   `json:"bbox,omitempty"`
	ModelName    string         `json:"model_name,omitempty"`
	ModelVersion string         `json:"model_version,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// Validate checks the two required fields.
func (f *Finding) Validate() error {
	if f.Label == "" {
		return fmt.Errorf("finding label empty: %w", errInvalidFinding)
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return fmt.Errorf("finding confidence %.3f out of [0,1]: %w", f.Confidence, errInvalidFinding)
	}
	return nil
}

var errInvalidFinding = fmt.Errorf("invalid finding")

// ClampConfidence forces confidence into [0,1]; provider output is not trusted.
func (f *Finding) ClampConfidence() {
	if f.Confidence < 0 {
		f.Confidence = 0
	}
	if f.Confidence > 1 {
		f.Confidence = 1
	}
}
