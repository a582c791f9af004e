package formatters

import (
	"strings"
	"testing"

	"medpassport/internal/equivalency"
	"medpassport/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryDispatchesByType(t *testing.T) {
	registry := NewFormatterRegistry()

	doc := types.Document{Filename: "cv.pdf", MIMEType: "application/pdf", Text: "Royal London Hospital", Words: 3, Characters: 21, Pages: 1}
	out, err := registry.Format(doc, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "=== EXTRACTED DOCUMENT ===")
	assert.Contains(t, out, "Pages: 1")

	out, err = registry.Format(doc, "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"mime_type": "application/pdf"`)

	_, err = registry.Format(map[string]string{"a": "b"}, "markdown")
	assert.ErrorContains(t, err, "no formatter found")

	_, err = registry.Format(doc, "yaml")
	assert.Error(t, err)
}

func TestParseResultFormatters(t *testing.T) {
	result := types.ParseResult{
		Mode:           "keyword",
		Rotations:      []types.RotationCandidate{{Hospital: "Szpital | Kraków", Specialty: "Detected from CV", Dates: "Check CV", Grade: "Check CV"}},
		TotalRotations: 4,
		Procedures:     []types.ProcedureCandidate{{Procedure: "Cannulation", Level: "Independent", Count: 40}},
		Registrations:  []string{"GMC 1234567"},
	}

	text, err := GlobalRegistry.Format(result, "text")
	require.NoError(t, err)
	assert.Contains(t, text, "=== ROTATIONS (1 of 4) ===")
	assert.Contains(t, text, "- Cannulation [Independent] x40")
	assert.Contains(t, text, "- GMC 1234567")

	md, err := GlobalRegistry.Format(result, "markdown")
	require.NoError(t, err)
	assert.Contains(t, md, `| Szpital \| Kraków | Detected from CV | Check CV | Check CV |`)
	assert.Contains(t, md, "| Cannulation | Independent | 40 |")
}

func TestParseResultShowsRawTextWhenNothingFound(t *testing.T) {
	result := types.ParseResult{Mode: "keyword", Text: "Dr A Nowak\nInternal medicine, 2019"}

	text, err := GlobalRegistry.Format(result, "text")
	require.NoError(t, err)
	assert.Contains(t, text, "None found.")
	assert.Contains(t, text, "CV text to copy from:\nDr A Nowak\nInternal medicine, 2019")

	md, err := GlobalRegistry.Format(result, "markdown")
	require.NoError(t, err)
	assert.Contains(t, md, "```\nDr A Nowak\nInternal medicine, 2019\n```")
}

func TestComparisonFormatters(t *testing.T) {
	cmp := equivalency.Default().Compare("Tier 1", []string{"United Kingdom", "Atlantis"})

	text, err := GlobalRegistry.Format(cmp, "text")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(text), "\n")
	assert.Equal(t, "=== Tier 1: Junior (Intern/FY1) ===", lines[0])
	assert.Equal(t, "United Kingdom  Foundation Year 1", lines[len(lines)-2])
	assert.Equal(t, "Atlantis        "+equivalency.NotMapped, lines[len(lines)-1])

	md, err := GlobalRegistry.Format(cmp, "markdown")
	require.NoError(t, err)
	assert.Contains(t, md, "| United Kingdom | Foundation Year 1 |")
}

func TestSupportedFormatsSorted(t *testing.T) {
	assert.Equal(t, []string{"json", "markdown", "text"}, GlobalRegistry.GetSupportedFormats())
}
