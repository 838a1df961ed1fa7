package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// signatureHeader marks the column registers leave blank for wet signatures.
const signatureHeader = "Firma"

// PDFExporter renders datasets as printable tables. Course registers are
// signed on paper, so the signature column gets extra width and rows are
// tall enough to write in.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("dataset has no headers")
	}

	orientation := "P"
	if len(data.Headers) > 5 {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		footer := fmt.Sprintf("Generato il %s - Pagina %d/{nb}", time.Now().Format("02/01/2006"), pdf.PageNo())
		pdf.CellFormat(0, 8, footer, "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 9, title, "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	pageWidth, _ := pdf.GetPageSize()
	widths := columnWidths(data.Headers, pageWidth-20)

	rowHeight := 7.0
	if hasSignatureColumn(data.Headers) {
		rowHeight = 10
	}

	pdf.SetFont("Arial", "B", 10)
	for i, header := range data.Headers {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			pdf.CellFormat(widths[i], rowHeight, row[header], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(headers []string, usable float64) []float64 {
	weights := make([]float64, len(headers))
	total := 0.0
	for i, header := range headers {
		weights[i] = 1
		if header == signatureHeader {
			weights[i] = 1.8
		}
		total += weights[i]
	}
	widths := make([]float64, len(headers))
	for i, weight := range weights {
		widths[i] = usable * weight / total
	}
	return widths
}

func hasSignatureColumn(headers []string) bool {
	for _, header := range headers {
		if header == signatureHeader {
			return true
		}
	}
	return false
}
