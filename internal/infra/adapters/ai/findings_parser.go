package ai

import (
	"encoding/json"
	"regexp"

	"mediview-ai-service/internal/domain/model"
)

// maxFindings caps how many findings a single classification may yield.
const maxFindings = 5

var jsonArrayRe = regexp.MustCompile(`(?s)\[.*\]`)

type rawFinding struct {
	Label      string             `json:"label"`
	Confidence float64            `json:"confidence"`
	BBox       *model.BoundingBox `json:"bbox"`
	Extra      map[string]any     `json:"extra"`
}

// parseFindings extracts a JSON findings array from free-form model output and
// normalizes each entry. Model output is not trusted: missing labels get a
// placeholder, confidences are clamped into [0,1]. When no array can be
// parsed at all, a single "manual review" finding is returned so a garbled
// response still yields something actionable rather than an error.
func parseFindings(text, modelName, modelVersion string) []model.Finding {
	match := jsonArrayRe.FindString(text)
	if match != "" {
		var raw []rawFinding
		if err := json.Unmarshal([]byte(match), &raw); err == nil {
			findings := make([]model.Finding, 0, len(raw))
			for _, item := range raw {
				if len(findings) == maxFindings {
					break
				}
				f := model.Finding{
					Label:        item.Label,
					Confidence:   item.Confidence,
					BBox:         item.BBox,
					ModelName:    modelName,
					ModelVersion: modelVersion,
					Extra:        item.Extra,
				}
				if f.Label == "" {
					f.Label = "unknown finding"
				}
				f.ClampConfidence()
				findings = append(findings, f)
			}
			return findings
		}
	}

	return []model.Finding{{
		Label:      "analysis completed - manual review recommended",
		Confidence: 0.5,
		ModelName:  modelName,
	}}
}
