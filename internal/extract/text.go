package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"medpassport/internal/types"
)

// TextExtractor passes plain text and markdown through unchanged.
type TextExtractor struct{}

func (TextExtractor) Name() string                  { return "text/plain" }
func (TextExtractor) SupportedTypes() []string      { return []string{"text/plain", "text/markdown"} }
func (TextExtractor) SupportedExtensions() []string { return []string{".txt", ".md", ".markdown", ".text"} }

func (TextExtractor) Extract(_ context.Context, data []byte) (types.Document, error) {
	if !utf8.Valid(data) {
		return types.Document{}, fmt.Errorf("text file is not valid UTF-8")
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return types.Document{Text: strings.TrimSpace(text)}, nil
}
