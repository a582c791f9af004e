package extract

import (
	"bytes"
	"context"
	"strings"

	"medpassport/internal/types"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor reads the text layer of each page. Pages that fail to decode
// are skipped.
type PDFExtractor struct{}

func (PDFExtractor) Name() string                  { return "document/pdf" }
func (PDFExtractor) SupportedTypes() []string      { return []string{"application/pdf"} }
func (PDFExtractor) SupportedExtensions() []string { return []string{".pdf"} }

func (PDFExtractor) Extract(ctx context.Context, data []byte) (types.Document, error) {
	rdr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return types.Document{}, err
	}

	n := rdr.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return types.Document{}, err
		}

		pg := rdr.Page(i)
		if pg.V.IsNull() {
			continue
		}
		txt, err := pg.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, strings.TrimRight(txt, " \n"))
	}

	return types.Document{
		Text:  strings.Join(pages, "\n"),
		Pages: n,
	}, nil
}
