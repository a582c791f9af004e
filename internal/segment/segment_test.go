package segment

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"medpassport/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCV = `Dr Anna Kowalska

GMC registration number 7654321, full licence to practise.

Foundation Year 1, Royal Free Hospital, London
Acute medicine and general surgery rotations.

Completed audit on VTE prophylaxis compliance, presented as a poster at the regional conference.

Procedures: cannulation, arterial blood gas sampling, lumbar puncture under supervision.

Hobbies include running and chess, and I enjoy cooking for friends on weekends.`

func TestClassifyPriority(t *testing.T) {
	s := New(0)

	tests := []struct {
		block string
		want  types.Category
		ok    bool
	}{
		{"GMC registration at the Royal Free Hospital", types.CategoryRegistration, true},
		{"Audit of cannulation practice", types.CategoryProcedure, true},
		{"Research project on the acute medical ward", types.CategoryAcademic, true},
		{"Szpital Bielański, oddział internistyczny", types.CategoryRotation, true},
		{"Enjoys long walks", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.block, func(t *testing.T) {
			got, ok := s.Classify(tt.block)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSegment(t *testing.T) {
	sections := New(40).Segment(sampleCV)

	require.Len(t, sections[types.CategoryRegistration], 1)
	assert.Contains(t, sections[types.CategoryRegistration][0], "Dr Anna Kowalska")
	assert.Contains(t, sections[types.CategoryRegistration][0], "GMC registration")

	require.Len(t, sections[types.CategoryRotation], 1)
	assert.Contains(t, sections[types.CategoryRotation][0], "Royal Free Hospital")

	require.Len(t, sections[types.CategoryAcademic], 1)
	require.Len(t, sections[types.CategoryProcedure], 1)

	for _, blocks := range sections {
		for _, b := range blocks {
			assert.NotContains(t, b, "Hobbies", "unmatched blocks are discarded")
		}
	}
}

func TestSegmentCountsRunesNotBytes(t *testing.T) {
	// 20 runes, 30 bytes: too short to close a block on its own.
	short := "Szpital ąęśćżźółńąęś"
	require.Equal(t, 20, utf8.RuneCountInString(short))
	require.Greater(t, len(short), 25)

	sections := New(25).Segment(short + "\n\nOddział chirurgii")
	require.Len(t, sections[types.CategoryRotation], 1)
	assert.Equal(t, short+"\n\nOddział chirurgii", sections[types.CategoryRotation][0])
}

func TestSegmentKeepsShortTrailingBlock(t *testing.T) {
	sections := New(500).Segment("Clinic letters\n\nshort")
	require.Len(t, sections[types.CategoryRotation], 1)
	assert.Equal(t, "Clinic letters\n\nshort", sections[types.CategoryRotation][0])
}

func TestParagraphs(t *testing.T) {
	got := Paragraphs("a\nb\n\n\n  \nc\r\n\r\nd  ")
	assert.Equal(t, []string{"a\nb", "c", "d"}, got)
}

func TestRotationCandidatesIncludeHospitalLine(t *testing.T) {
	text := "Curriculum Vitae\n  St Thomas' Hospital - Cardiology  \nCentrum Medyczne\nSZPITAL Wolski\n"

	got := RotationCandidates(text)

	require.Len(t, got, 2)
	assert.Equal(t, types.RotationCandidate{
		Hospital:  "St Thomas' Hospital - Cardiology",
		Specialty: DetectedSpecialty,
		Dates:     CheckCV,
		Grade:     CheckCV,
	}, got[0])
	assert.Equal(t, "SZPITAL Wolski", got[1].Hospital)
}

func TestPreview(t *testing.T) {
	var lines []string
	for i := 0; i < 8; i++ {
		lines = append(lines, "Clinic "+string(rune('A'+i)))
	}
	result, err := NewKeywordParser(New(40)).Parse(context.Background(), strings.Join(lines, "\n"))
	require.NoError(t, err)

	preview := Preview(result, 5)
	assert.Len(t, preview.Rotations, 5)
	assert.Equal(t, 8, preview.TotalRotations)
	assert.Equal(t, "Clinic A", preview.Rotations[0].Hospital)
}

func TestWithRawText(t *testing.T) {
	text := "Dr A Nowak\nInternal medicine"

	empty := WithRawText(Preview(types.ParseResult{Rotations: []types.RotationCandidate{}}, 5), text)
	assert.Equal(t, text, empty.Text)

	found := Preview(types.ParseResult{Rotations: RotationCandidates("City Clinic")}, 5)
	assert.Empty(t, WithRawText(found, text).Text)
}

func TestImportedRotation(t *testing.T) {
	r := ImportedRotation("doc@example.com", types.RotationCandidate{Hospital: " Royal Free Hospital ", Specialty: DetectedSpecialty})
	assert.Equal(t, types.Rotation{
		UserEmail: "doc@example.com",
		Hospital:  "Royal Free Hospital",
		Specialty: DefaultSpecialty,
		Dates:     Imported,
		Grade:     Imported,
	}, r)

	r = ImportedRotation("doc@example.com", types.RotationCandidate{Hospital: "Clinic", Specialty: "Dermatology"})
	assert.Equal(t, "Dermatology", r.Specialty)
}

func TestKeywordParserCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewKeywordParser(New(40)).Parse(ctx, "Hospital")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWindows(t *testing.T) {
	assert.Nil(t, Windows("   ", 10))

	text := strings.Repeat("a", 25)
	chunks := Windows(text, 10)
	assert.Equal(t, []string{strings.Repeat("a", 10), strings.Repeat("a", 10), strings.Repeat("a", 5)}, chunks)

	lined := "line one\nline two\nline three"
	chunks = Windows(lined, 12)
	assert.Equal(t, "line one", chunks[0])
	assert.Equal(t, lined, strings.Join(chunks, "\n"))

	assert.Len(t, Windows(strings.Repeat("ż", 30), 10), 3, "windows count runes")
}
