package formatters

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"medpassport/internal/equivalency"
	"medpassport/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// GlobalRegistry holds the default formatters
var GlobalRegistry = NewFormatterRegistry()

// Data type names used as registry keys.
const (
	TypeDocument    = "Document"
	TypeParseResult = "ParseResult"
	TypeComparison  = "Comparison"
	TypeAny         = "any"
)

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", TypeAny, &JSONFormatter{})
	registry.RegisterFormatter("text", TypeDocument, &DocumentTextFormatter{})
	registry.RegisterFormatter("markdown", TypeDocument, &DocumentMarkdownFormatter{})
	registry.RegisterFormatter("text", TypeParseResult, &ParseTextFormatter{})
	registry.RegisterFormatter("markdown", TypeParseResult, &ParseMarkdownFormatter{})
	registry.RegisterFormatter("text", TypeComparison, &ComparisonTextFormatter{})
	registry.RegisterFormatter("markdown", TypeComparison, &ComparisonMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters[TypeAny]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.Document:
		return TypeDocument
	case types.ParseResult:
		return TypeParseResult
	case equivalency.Comparison:
		return TypeComparison
	default:
		return TypeAny
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return TypeAny
}

// DocumentTextFormatter prints extracted text with a short header
type DocumentTextFormatter struct{}

func (f *DocumentTextFormatter) Format(data any) (string, error) {
	doc, ok := data.(types.Document)
	if !ok {
		return "", fmt.Errorf("expected Document, got %T", data)
	}

	var output strings.Builder
	output.WriteString("=== EXTRACTED DOCUMENT ===\n")
	fmt.Fprintf(&output, "File: %s (%s)\n", doc.Filename, doc.MIMEType)
	fmt.Fprintf(&output, "Words: %d  Characters: %d", doc.Words, doc.Characters)
	if doc.Pages > 0 {
		fmt.Fprintf(&output, "  Pages: %d", doc.Pages)
	}
	output.WriteString("\n\n")
	output.WriteString(doc.Text)
	output.WriteString("\n")
	return output.String(), nil
}

func (f *DocumentTextFormatter) SupportedType() string {
	return TypeDocument
}

// DocumentMarkdownFormatter prints extracted text as a fenced block
type DocumentMarkdownFormatter struct{}

func (f *DocumentMarkdownFormatter) Format(data any) (string, error) {
	doc, ok := data.(types.Document)
	if !ok {
		return "", fmt.Errorf("expected Document, got %T", data)
	}

	var output strings.Builder
	fmt.Fprintf(&output, "# %s\n\n", doc.Filename)
	fmt.Fprintf(&output, "- **Type:** %s\n", doc.MIMEType)
	fmt.Fprintf(&output, "- **Words:** %d\n", doc.Words)
	fmt.Fprintf(&output, "- **Characters:** %d\n", doc.Characters)
	if doc.Pages > 0 {
		fmt.Fprintf(&output, "- **Pages:** %d\n", doc.Pages)
	}
	output.WriteString("\n```text\n")
	output.WriteString(doc.Text)
	output.WriteString("\n```\n")
	return output.String(), nil
}

func (f *DocumentMarkdownFormatter) SupportedType() string {
	return TypeDocument
}

// ParseTextFormatter lists the candidates found in a CV
type ParseTextFormatter struct{}

func (f *ParseTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.ParseResult)
	if !ok {
		return "", fmt.Errorf("expected ParseResult, got %T", data)
	}

	var output strings.Builder
	output.WriteString("=== CV PARSE RESULT ===\n")
	fmt.Fprintf(&output, "Mode: %s\n", result.Mode)
	if result.Filename != "" {
		fmt.Fprintf(&output, "File: %s\n", result.Filename)
	}
	if result.Chunks > 0 {
		fmt.Fprintf(&output, "Chunks: %d (dropped %d)\n", result.Chunks, result.Dropped)
	}
	output.WriteString("\n")

	fmt.Fprintf(&output, "=== ROTATIONS (%d of %d) ===\n", len(result.Rotations), result.TotalRotations)
	for i, r := range result.Rotations {
		fmt.Fprintf(&output, "%d. %s\n   Specialty: %s\n   Dates: %s\n   Grade: %s\n", i+1, r.Hospital, r.Specialty, r.Dates, r.Grade)
	}
	if len(result.Rotations) == 0 {
		output.WriteString("None found.\n")
	}
	if result.Text != "" {
		output.WriteString("\nNo clear hospital names found. CV text to copy from:\n")
		output.WriteString(result.Text)
		output.WriteString("\n")
	}

	if len(result.Procedures) > 0 {
		output.WriteString("\n=== PROCEDURES ===\n")
		for _, p := range result.Procedures {
			fmt.Fprintf(&output, "- %s", p.Procedure)
			if p.Level != "" {
				fmt.Fprintf(&output, " [%s]", p.Level)
			}
			if p.Count > 0 {
				fmt.Fprintf(&output, " x%d", p.Count)
			}
			output.WriteString("\n")
		}
	}

	if len(result.Projects) > 0 {
		output.WriteString("\n=== ACADEMIC & QIP ===\n")
		for _, p := range result.Projects {
			fmt.Fprintf(&output, "- %s: %s\n", p.Type, p.Title)
		}
	}

	if len(result.Registrations) > 0 {
		output.WriteString("\n=== REGISTRATIONS ===\n")
		for _, r := range result.Registrations {
			fmt.Fprintf(&output, "- %s\n", r)
		}
	}

	return output.String(), nil
}

func (f *ParseTextFormatter) SupportedType() string {
	return TypeParseResult
}

// ParseMarkdownFormatter renders candidates as markdown tables
type ParseMarkdownFormatter struct{}

func (f *ParseMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.ParseResult)
	if !ok {
		return "", fmt.Errorf("expected ParseResult, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# CV Parse Result\n\n")
	fmt.Fprintf(&output, "**Mode:** %s\n\n", result.Mode)

	fmt.Fprintf(&output, "## Rotations (%d of %d)\n\n", len(result.Rotations), result.TotalRotations)
	if len(result.Rotations) == 0 {
		output.WriteString("None found.\n\n")
		if result.Text != "" {
			output.WriteString("No clear hospital names found. CV text to copy from:\n\n```\n" + result.Text + "\n```\n\n")
		}
	} else {
		output.WriteString("| Hospital | Specialty | Dates | Grade |\n|---|---|---|---|\n")
		for _, r := range result.Rotations {
			fmt.Fprintf(&output, "| %s | %s | %s | %s |\n", cell(r.Hospital), cell(r.Specialty), cell(r.Dates), cell(r.Grade))
		}
		output.WriteString("\n")
	}

	if len(result.Procedures) > 0 {
		output.WriteString("## Procedures\n\n| Procedure | Level | Count |\n|---|---|---|\n")
		for _, p := range result.Procedures {
			count := ""
			if p.Count > 0 {
				count = fmt.Sprint(p.Count)
			}
			fmt.Fprintf(&output, "| %s | %s | %s |\n", cell(p.Procedure), cell(p.Level), count)
		}
		output.WriteString("\n")
	}

	if len(result.Projects) > 0 {
		output.WriteString("## Academic & QIP\n\n")
		for _, p := range result.Projects {
			fmt.Fprintf(&output, "- **%s:** %s\n", p.Type, p.Title)
		}
		output.WriteString("\n")
	}

	if len(result.Registrations) > 0 {
		output.WriteString("## Registrations\n\n")
		for _, r := range result.Registrations {
			fmt.Fprintf(&output, "- %s\n", r)
		}
	}

	return output.String(), nil
}

func (f *ParseMarkdownFormatter) SupportedType() string {
	return TypeParseResult
}

// ComparisonTextFormatter prints one tier's titles per country
type ComparisonTextFormatter struct{}

func (f *ComparisonTextFormatter) Format(data any) (string, error) {
	cmp, ok := data.(equivalency.Comparison)
	if !ok {
		return "", fmt.Errorf("expected Comparison, got %T", data)
	}

	var output strings.Builder
	fmt.Fprintf(&output, "=== %s ===\n", cmp.Tier)
	if cmp.Responsibilities != "" {
		fmt.Fprintf(&output, "Responsibilities: %s\n", cmp.Responsibilities)
	}
	output.WriteString("\n")

	width := 0
	for _, row := range cmp.Rows {
		width = max(width, len([]rune(row.Country)))
	}
	for _, row := range cmp.Rows {
		fmt.Fprintf(&output, "%-*s  %s\n", width, row.Country, row.Title)
	}
	return output.String(), nil
}

func (f *ComparisonTextFormatter) SupportedType() string {
	return TypeComparison
}

// ComparisonMarkdownFormatter renders a comparison as a table
type ComparisonMarkdownFormatter struct{}

func (f *ComparisonMarkdownFormatter) Format(data any) (string, error) {
	cmp, ok := data.(equivalency.Comparison)
	if !ok {
		return "", fmt.Errorf("expected Comparison, got %T", data)
	}

	var output strings.Builder
	fmt.Fprintf(&output, "# %s\n\n", cmp.Tier)
	if cmp.Responsibilities != "" {
		fmt.Fprintf(&output, "_%s_\n\n", cmp.Responsibilities)
	}
	output.WriteString("| Country | Title |\n|---|---|\n")
	for _, row := range cmp.Rows {
		fmt.Fprintf(&output, "| %s | %s |\n", cell(row.Country), cell(row.Title))
	}
	return output.String(), nil
}

func (f *ComparisonMarkdownFormatter) SupportedType() string {
	return TypeComparison
}

// cell escapes pipes so a value stays inside its markdown table cell.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
