// Package render lays out briefing text as a PDF document.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	margin       = 25.4 // one inch, in mm
	titleSize    = 18
	bodySize     = 11
	lineHeight   = 5.5
	paragraphGap = 3
)

// Document is the laid out content of one briefing.
type Document struct {
	Title      string
	Paragraphs [][]string
}

// Layout splits text into blank-line-delimited paragraphs. Lines inside a
// paragraph are kept as explicit line breaks.
func Layout(text string, date time.Time) Document {
	doc := Document{Title: "Daily Brief - " + date.Format("2006-01-02")}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, section := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(section) == "" {
			continue
		}
		doc.Paragraphs = append(doc.Paragraphs, strings.Split(strings.Trim(section, "\n"), "\n"))
	}
	return doc
}

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render writes text as a Letter-size PDF at path and returns the path. The
// title carries date.
//
// Text is set in the core Helvetica font, so it is translated to the cp1252
// code page first: runes outside it (arrows, CJK, emoji) print as '.'.
func (r *Renderer) Render(text, path string, date time.Time) (string, error) {
	doc := Layout(text, date)

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle(doc.Title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", titleSize)
	pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", bodySize)
	for _, para := range doc.Paragraphs {
		pdf.MultiCell(0, lineHeight, tr(strings.Join(para, "\n")), "", "L", false)
		pdf.Ln(paragraphGap)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("failed to write pdf %s: %w", path, err)
	}
	return path, nil
}
