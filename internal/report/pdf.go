package report

import (
	"bytes"
	"fmt"
	"unicode"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	pdfLineHeight = 6.0
	pdfFont       = "Helvetica"
)

// renderPDF writes an A4 document with a heading per section. The core
// fonts only cover Windows-1252, so all text goes through latin1Safe.
func renderPDF(p Portfolio) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Global Medical Passport", true)
	pdf.SetAuthor(p.Email, true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont(pdfFont, "B", 18)
	pdf.CellFormat(0, 10, "Global Medical Passport", "", 1, "L", false, 0, "")
	pdf.SetFont(pdfFont, "", 9)
	pdf.CellFormat(0, 5, latin1Safe("Generated "+p.GeneratedAt.UTC().Format("2 Jan 2006 15:04 MST")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	for _, s := range p.Sections() {
		writePDFSection(pdf, s)
	}

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePDFSection(pdf *fpdf.Fpdf, s Section) {
	pdf.SetFont(pdfFont, "B", 13)
	pdf.SetFillColor(31, 78, 121)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(0, 8, latin1Safe(s.Title), "", 1, "L", true, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(1)

	if len(s.Rows) == 0 {
		pdf.SetFont(pdfFont, "I", 10)
		pdf.CellFormat(0, pdfLineHeight, "Nothing recorded.", "", 1, "L", false, 0, "")
		pdf.Ln(3)
		return
	}

	if s.Name == SectionIdentity {
		for _, row := range s.Rows {
			pdf.SetFont(pdfFont, "B", 10)
			pdf.CellFormat(45, pdfLineHeight, latin1Safe(row[0]), "", 0, "L", false, 0, "")
			pdf.SetFont(pdfFont, "", 10)
			pdf.MultiCell(0, pdfLineHeight, latin1Safe(row[1]), "", "L", false)
		}
		pdf.Ln(3)
		return
	}

	for _, row := range s.Rows {
		pdf.SetFont(pdfFont, "B", 10)
		pdf.MultiCell(0, pdfLineHeight, latin1Safe(row[0]), "", "L", false)
		pdf.SetFont(pdfFont, "", 10)
		for i := 1; i < len(row) && i < len(s.Columns); i++ {
			if row[i] == "" {
				continue
			}
			pdf.MultiCell(0, pdfLineHeight, latin1Safe(fmt.Sprintf("    %s: %s", s.Columns[i], row[i])), "", "L", false)
		}
		pdf.Ln(1)
	}
	pdf.Ln(2)
}

// foldFallback covers letters that have no decomposition onto ASCII.
var foldFallback = map[rune]rune{
	'ł': 'l', 'Ł': 'L',
	'đ': 'd', 'Đ': 'D',
	'ı': 'i',
	'‐': '-', '‑': '-', '−': '-',
}

// latin1Safe returns s encoded as Windows-1252 bytes. Runes the code page
// lacks lose their diacritics, then fall back to a fixed map, then to '?'.
func latin1Safe(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	folded := make([]rune, 0, len(s))
	for _, r := range s {
		if _, ok := charmap.Windows1252.EncodeRune(r); ok {
			folded = append(folded, r)
			continue
		}
		if stripped, _, err := transform.String(stripMarks, string(r)); err == nil && encodable(stripped) && stripped != "" {
			folded = append(folded, []rune(stripped)...)
			continue
		}
		if alt, ok := foldFallback[r]; ok {
			folded = append(folded, alt)
			continue
		}
		folded = append(folded, '?')
	}

	out, err := charmap.Windows1252.NewEncoder().String(string(folded))
	if err != nil {
		return string(folded)
	}
	return out
}

func encodable(s string) bool {
	for _, r := range s {
		if _, ok := charmap.Windows1252.EncodeRune(r); !ok {
			return false
		}
	}
	return true
}
