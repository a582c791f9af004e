package segment

import (
	"strings"

	"medpassport/internal/types"
)

// Placeholder values for fields a line heuristic cannot know.
const (
	DetectedSpecialty = "Detected from CV"
	CheckCV           = "Check CV"
	Imported          = "Imported"
	DefaultSpecialty  = "General Medicine"
)

// RotationKeywords mark a line as naming a workplace.
var RotationKeywords = []string{"hospital", "clinic", "centre", "center", "szpital"}

// RotationCandidates returns one candidate per line that names a workplace.
func RotationCandidates(text string) []types.RotationCandidate {
	candidates := []types.RotationCandidate{}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		for _, kw := range RotationKeywords {
			if strings.Contains(lower, kw) {
				candidates = append(candidates, types.RotationCandidate{
					Hospital:  trimmed,
					Specialty: DetectedSpecialty,
					Dates:     CheckCV,
					Grade:     CheckCV,
				})
				break
			}
		}
	}
	return candidates
}

// Preview truncates a parse result's rotations to limit, keeping the total.
func Preview(result types.ParseResult, limit int) types.ParseResult {
	result.TotalRotations = len(result.Rotations)
	if limit > 0 && len(result.Rotations) > limit {
		result.Rotations = result.Rotations[:limit]
	}
	return result
}

// WithRawText attaches text to a result that found no rotation candidates,
// so the form can offer the CV text for copy-paste instead.
func WithRawText(result types.ParseResult, text string) types.ParseResult {
	if result.TotalRotations == 0 && len(result.Rotations) == 0 {
		result.Text = text
	}
	return result
}

// ImportedRotation converts a confirmed candidate into a rotation row.
func ImportedRotation(email string, c types.RotationCandidate) types.Rotation {
	specialty := strings.TrimSpace(c.Specialty)
	if specialty == "" || specialty == DetectedSpecialty {
		specialty = DefaultSpecialty
	}
	return types.Rotation{
		UserEmail: email,
		Hospital:  strings.TrimSpace(c.Hospital),
		Specialty: specialty,
		Dates:     Imported,
		Grade:     Imported,
	}
}
