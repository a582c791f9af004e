package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"medpassport/internal/types"
)

// maxDocumentXML bounds the decompressed size of word/document.xml.
const maxDocumentXML = 64 << 20

// DOCXExtractor joins the document's paragraphs with newlines. Empty
// paragraphs are kept so paragraph spacing survives as blank lines.
type DOCXExtractor struct{}

func (DOCXExtractor) Name() string { return "document/docx" }
func (DOCXExtractor) SupportedTypes() []string {
	return []string{"application/vnd.openxmlformats-officedocument.wordprocessingml.document"}
}
func (DOCXExtractor) SupportedExtensions() []string { return []string{".docx"} }

func (DOCXExtractor) Extract(ctx context.Context, data []byte) (types.Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return types.Document{}, err
	}

	body, err := readZipFile(zr, "word/document.xml")
	if err != nil {
		return types.Document{}, err
	}
	if err := ctx.Err(); err != nil {
		return types.Document{}, err
	}

	paragraphs, err := docxParagraphs(body)
	if err != nil {
		return types.Document{}, err
	}

	return types.Document{
		Text:       strings.TrimSpace(strings.Join(paragraphs, "\n")),
		Paragraphs: len(paragraphs),
	}, nil
}

// docxParagraphs returns the text of every <w:p> in document order,
// including paragraphs nested in table cells.
func docxParagraphs(body []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var (
		paragraphs []string
		current    strings.Builder
		inPara     int
		inText     bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if inPara == 0 {
					current.Reset()
				}
				inPara++
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				inPara--
				if inPara == 0 {
					paragraphs = append(paragraphs, strings.TrimRight(current.String(), " "))
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && inPara > 0 {
				current.Write(t)
			}
		}
	}

	return paragraphs, nil
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		data, err := io.ReadAll(io.LimitReader(rc, maxDocumentXML+1))
		if err != nil {
			return nil, err
		}
		if len(data) > maxDocumentXML {
			return nil, fmt.Errorf("%s exceeds %d bytes", name, maxDocumentXML)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}
