// Package segment splits CV text into categorized blocks and rotation candidates.
package segment

import (
	"context"
	"strings"
	"unicode/utf8"

	"medpassport/internal/types"
)

// DefaultKeywords are matched case-insensitively as substrings.
var DefaultKeywords = map[types.Category][]string{
	types.CategoryRegistration: {
		"registration", "gmc", "licence", "license", "licensed", "medical council",
		"prawo wykonywania zawodu", "pwz", "ahpra", "usmle", "plab", "board certified",
	},
	types.CategoryProcedure: {
		"procedure", "cannulation", "cannula", "intubation", "lumbar puncture", "central line",
		"chest drain", "arterial line", "arterial blood gas", "catheter", "suturing",
		"endoscopy", "logbook", "performed",
	},
	types.CategoryAcademic: {
		"audit", "qip", "quality improvement", "research", "publication", "published",
		"journal", "poster", "presentation", "conference", "abstract", "thesis",
	},
	types.CategoryRotation: {
		"hospital", "clinic", "centre", "center", "szpital", "ward", "department",
		"rotation", "placement", "trust", "foundation year", "fy1", "fy2",
	},
}

// Segmenter groups paragraphs into blocks and labels each block with the
// first category whose keywords it contains.
type Segmenter struct {
	minBlockLength int
	keywords       map[types.Category][]string
}

// New returns a Segmenter using DefaultKeywords.
func New(minBlockLength int) *Segmenter {
	return NewWithKeywords(minBlockLength, DefaultKeywords)
}

// NewWithKeywords returns a Segmenter with custom keyword sets.
func NewWithKeywords(minBlockLength int, keywords map[types.Category][]string) *Segmenter {
	lowered := make(map[types.Category][]string, len(keywords))
	for cat, words := range keywords {
		for _, w := range words {
			lowered[cat] = append(lowered[cat], strings.ToLower(w))
		}
	}
	return &Segmenter{minBlockLength: minBlockLength, keywords: lowered}
}

// Classify returns the category of a block in registration, procedure,
// academic, rotation priority order.
func (s *Segmenter) Classify(block string) (types.Category, bool) {
	lower := strings.ToLower(block)
	for _, cat := range types.Categories {
		for _, kw := range s.keywords[cat] {
			if strings.Contains(lower, kw) {
				return cat, true
			}
		}
	}
	return "", false
}

// Segment splits text on blank lines, accumulates paragraphs until a block
// reaches the minimum length, and files each block under its category.
// Unmatched blocks are discarded. Blocks never overlap.
func (s *Segmenter) Segment(text string) types.Segmentation {
	result := make(types.Segmentation)

	var block []string
	flush := func() {
		joined := strings.TrimSpace(strings.Join(block, "\n\n"))
		block = block[:0]
		if joined == "" {
			return
		}
		if cat, ok := s.Classify(joined); ok {
			result[cat] = append(result[cat], joined)
		}
	}

	for _, para := range Paragraphs(text) {
		block = append(block, para)
		if utf8.RuneCountInString(strings.TrimSpace(strings.Join(block, "\n\n"))) >= s.minBlockLength {
			flush()
		}
	}
	flush()

	return result
}

// Paragraphs splits text on blank lines and drops empty paragraphs.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var (
		paragraphs []string
		current    []string
	)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				paragraphs = append(paragraphs, strings.Join(current, "\n"))
				current = current[:0]
			}
			continue
		}
		current = append(current, strings.TrimRight(line, " \t"))
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, strings.Join(current, "\n"))
	}
	return paragraphs
}

// Parser turns CV text into candidates for the form.
type Parser interface {
	Parse(ctx context.Context, text string) (types.ParseResult, error)
	Mode() string
}

// KeywordParser is the offline parser. It never calls out of process.
type KeywordParser struct {
	segmenter *Segmenter
}

// NewKeywordParser returns a keyword-only parser.
func NewKeywordParser(segmenter *Segmenter) *KeywordParser {
	return &KeywordParser{segmenter: segmenter}
}

// Mode reports "keyword".
func (p *KeywordParser) Mode() string { return "keyword" }

// Parse segments text and extracts rotation candidates without any
// provider call. Only a cancelled context makes it fail.
func (p *KeywordParser) Parse(ctx context.Context, text string) (types.ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return types.ParseResult{}, err
	}

	sections := p.segmenter.Segment(text)
	rotations := RotationCandidates(text)

	return types.ParseResult{
		Mode:           p.Mode(),
		Characters:     len([]rune(text)),
		Rotations:      rotations,
		TotalRotations: len(rotations),
		Procedures:     []types.ProcedureCandidate{},
		Projects:       []types.ProjectCandidate{},
		Registrations:  append([]string{}, sections[types.CategoryRegistration]...),
		Sections:       sections,
	}, nil
}
