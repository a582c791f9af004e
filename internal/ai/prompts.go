package ai

import (
	"fmt"
	"strings"
)

// DefaultClassifySystemPrompt frames the model as an extractor, not a writer.
const DefaultClassifySystemPrompt = `You extract structured career data from a doctor's CV. You never invent facts.

Rules:
- Copy hospital names, procedure names and titles exactly as they appear in the text
- Leave a field empty when the text does not state it
- A rotation is a clinical placement at a hospital, clinic or centre
- A procedure level is one of Observed, Supervised, Independent, Assessor
- A project type is one of Audit, QIP, Research, Publication, Presentation
- Registrations are licences or council registrations (GMC, PWZ, AHPRA, USMLE)
- Return empty lists when a category does not appear in the text`

// DefaultClassifyUserPrompt is formatted with the chunk text.
const DefaultClassifyUserPrompt = `Extract every rotation, procedure, academic project and registration from this CV excerpt.

Respond with a JSON object with exactly the keys "rotations", "procedures", "projects" and "registrations".

CV excerpt:
---
%s
---`

// resolvePrompt prefers a configured prompt over the built-in one.
func resolvePrompt(fromConfig, fromDefault string) string {
	if strings.TrimSpace(fromConfig) != "" {
		return fromConfig
	}
	return fromDefault
}

// formatUserPrompt fills the %s placeholder, or appends the chunk when a
// custom prompt has none.
func formatUserPrompt(template, chunk string) string {
	if strings.Count(template, "%s") == 1 {
		return fmt.Sprintf(template, chunk)
	}
	return template + "\n\n" + chunk
}
