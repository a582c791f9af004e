// Package extract turns uploaded CV files into plain text.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"medpassport/internal/errors"
	"medpassport/internal/types"

	"github.com/gabriel-vasile/mimetype"
)

// Extractor is implemented by every file-type handler.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (types.Document, error)
	SupportedTypes() []string
	SupportedExtensions() []string
	Name() string
}

// Registry resolves an extractor by extension first, then by sniffed MIME type.
type Registry struct {
	byMIME      map[string]Extractor
	byExtension map[string]Extractor
	maxBytes    int64
}

// NewRegistry returns a registry with the PDF, DOCX and plain text extractors.
func NewRegistry(maxBytes int64) *Registry {
	r := &Registry{
		byMIME:      make(map[string]Extractor),
		byExtension: make(map[string]Extractor),
		maxBytes:    maxBytes,
	}
	r.Register(PDFExtractor{})
	r.Register(DOCXExtractor{})
	r.Register(TextExtractor{})
	return r
}

// Register indexes e by its MIME types and extensions. A later
// registration replaces an earlier one for the same key.
func (r *Registry) Register(e Extractor) {
	for _, mt := range e.SupportedTypes() {
		if key := strings.ToLower(strings.TrimSpace(mt)); key != "" {
			r.byMIME[key] = e
		}
	}
	for _, ext := range e.SupportedExtensions() {
		if key := strings.ToLower(strings.TrimSpace(ext)); key != "" {
			r.byExtension[key] = e
		}
	}
}

// Resolve picks the extractor for a file.
func (r *Registry) Resolve(mimeType, extension string) (Extractor, bool) {
	if e, ok := r.byExtension[strings.ToLower(extension)]; ok {
		return e, true
	}

	mt := strings.ToLower(mimeType)
	if i := strings.Index(mt, ";"); i > 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if e, ok := r.byMIME[mt]; ok {
		return e, true
	}
	return nil, false
}

// Supported reports whether a filename has a registered extension.
func (r *Registry) Supported(filename string) bool {
	_, ok := r.byExtension[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extract pulls text out of data. The filename is only used for dispatch.
func (r *Registry) Extract(ctx context.Context, filename string, data []byte) (types.Document, error) {
	if r.maxBytes > 0 && int64(len(data)) > r.maxBytes {
		return types.Document{}, errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("file exceeds %d bytes", r.maxBytes), nil).WithContext("filename", filename)
	}

	detected := mimetype.Detect(data)
	ext := strings.ToLower(filepath.Ext(filename))

	e, ok := r.Resolve(detected.String(), ext)
	if !ok {
		return types.Document{}, errors.NewValidationError(errors.ErrCodeUnsupportedDocument,
			"only PDF and DOCX documents are supported", nil).
			WithContext("filename", filename).
			WithContext("mime_type", detected.String())
	}

	doc, err := e.Extract(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return types.Document{}, ctx.Err()
		}
		return types.Document{}, errors.NewIOError(errors.ErrCodeExtractionFailed,
			"could not read text from document", err).
			WithContext("filename", filename).
			WithContext("extractor", e.Name())
	}

	doc.Filename = filepath.Base(filename)
	doc.MIMEType = detected.String()
	doc.Words, doc.Characters = Counts(doc.Text)
	return doc, nil
}

// RequireText rejects a document with no readable text, such as a scanned
// PDF without a text layer.
func RequireText(doc types.Document) error {
	if strings.TrimSpace(doc.Text) == "" {
		return errors.NewIOError(errors.ErrCodeExtractionFailed, "No text could be read from the document", nil).
			WithContext("filename", doc.Filename)
	}
	return nil
}

// Counts returns the word and character counts of text.
func Counts(text string) (words int, chars int) {
	inWord := false
	for _, r := range text {
		chars++
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}
	return words, chars
}
