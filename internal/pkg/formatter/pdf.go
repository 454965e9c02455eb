package formatter

import (
	"bytes"
	"fmt"
	"os"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfContentType   = "application/pdf"
	pdfFileExtension = ".pdf"

	// pdfFontName is the family name registered with gofpdf for the
	// UTF-8 font.
	pdfFontName = "DejaVuSans"
)

// Font locations: next to the binary in the container, then the source tree.
var pdfFontPaths = []string{
	"ttf/DejaVuSans.ttf",
	"internal/pkg/formatter/ttf/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

type PDFFormatter struct {
	fontPaths []string
}

func NewPDFFormatter() *PDFFormatter {
	return &PDFFormatter{fontPaths: pdfFontPaths}
}

func (pf *PDFFormatter) resolveFontPath() string {
	for _, p := range pf.fontPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (pf *PDFFormatter) Format(t Transcript) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	// Core fonts only cover Latin-1; manuals and answers may not.
	fontName := "Arial"
	if fontPath := pf.resolveFontPath(); fontPath != "" {
		pdf.AddUTF8Font(pdfFontName, "", fontPath)
		pdf.AddUTF8Font(pdfFontName, "B", fontPath)
		fontName = pdfFontName
	}

	pdf.SetFont(fontName, "B", 18)
	pdf.Cell(0, 10, baseTitle)
	pdf.Ln(10)
	pdf.SetFont(fontName, "", 9)
	pdf.Cell(0, 6, header(t))
	pdf.Ln(10)

	for i, turn := range t.Turns {
		pdf.SetFont(fontName, "B", 11)
		pdf.MultiCell(0, 6, fmt.Sprintf("%d. %s", i+1, turnMeta(turn)), "", "", false)
		pdf.SetFont(fontName, "", 11)
		pdf.MultiCell(0, 6, "User: "+turn.UserInput, "", "", false)
		pdf.MultiCell(0, 6, "Assistant: "+turn.Response, "", "", false)
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (pf *PDFFormatter) ContentType() string {
	return pdfContentType
}

func (pf *PDFFormatter) FileExtension() string {
	return pdfFileExtension
}
