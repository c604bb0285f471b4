package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Entry is a single long-form export record: a heading, key/value metadata
// lines, and a free-form body rendered as wrapped paragraphs.
type Entry struct {
	Heading string
	Meta    []string
	Body    string
}

// PDFExporter renders entries into a "memory book" style PDF, one entry per
// section.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with a title page header and the entries.
func (e *PDFExporter) Render(title string, entries []Entry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("pdf requires at least one entry")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 16)
		pdf.CellFormat(0, 12, title, "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	for i, entry := range entries {
		if i > 0 {
			pdf.Ln(6)
		}
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, entry.Heading, "", 1, "L", false, 0, "")

		pdf.SetFont("Arial", "I", 9)
		for _, meta := range entry.Meta {
			pdf.CellFormat(0, 5, meta, "", 1, "L", false, 0, "")
		}
		pdf.Ln(2)

		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, entry.Body, "", "L", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
