package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
)

var textSizes = map[string]float64{"small": 8, "medium": 10, "large": 12}

// writePDF draws the table with a repeated header row on every page.
func writePDF(w io.Writer, t Table, o Options) error {
	orientation := "P"
	if o.Orientation == "landscape" {
		orientation = "L"
	}
	size, ok := textSizes[o.TextSize]
	if !ok {
		size = textSizes["small"]
	}
	lineH := size * 0.55

	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(false, 10)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(strings.ReplaceAll(s, "Σ", "Sum")) }
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Helvetica", "", 7)
		pdf.CellFormat(0, 5, fmt.Sprintf("%d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pageW, pageH := pdf.GetPageSize()
	left, _, right, bottom := pdf.GetMargins()
	usable := pageW - left - right
	sum := 0.0
	for _, wgt := range t.Widths {
		sum += wgt
	}
	widths := make([]float64, len(t.Widths))
	for i, wgt := range t.Widths {
		widths[i] = usable * wgt / sum
	}

	fit := func(s string, width float64) string {
		s = text(s)
		for len(s) > 0 && pdf.GetStringWidth(s) > width-1 {
			s = s[:len(s)-1]
		}
		return s
	}
	header := func() {
		pdf.SetFont("Helvetica", "B", size)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range t.Header {
			pdf.CellFormat(widths[i], lineH, fit(h, widths[i]), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(lineH)
		pdf.SetFont("Helvetica", "", size)
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", size+4)
	pdf.CellFormat(0, lineH*2, text(t.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", size)
	for _, kv := range t.Info {
		pdf.CellFormat(40, lineH, text(kv[0]+":"), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, lineH, text(kv[1]), "", 1, "L", false, 0, "")
	}
	if len(t.Info) > 0 {
		pdf.Ln(lineH)
	}
	if len(t.Header) > 0 {
		header()
	}
	rowH := lineH
	if o.Signature {
		rowH = lineH * 1.8
	}
	for _, r := range t.Rows {
		if pdf.GetY()+rowH > pageH-bottom-5 {
			pdf.AddPage()
			header()
		}
		for i, v := range r {
			align := "L"
			if widths[i] < usable*0.05 {
				align = "C"
			}
			pdf.CellFormat(widths[i], rowH, fit(v, widths[i]), "1", 0, align, false, 0, "")
		}
		pdf.Ln(rowH)
	}
	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}
