// PDF rendering for the export formatter. Each record starts a fresh page;
// when a record's daily table exceeds the page's content area, continuation
// pages are inserted and the table resumes at the top margin.
package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// Fixed layout in points on US Letter, measured from the top-left corner.
const (
	pdfMargin     = 72.0 // 1 inch
	pdfHeaderStep = 18.0
	pdfRowStep    = 12.0

	colDateX = 72.0
	colTminX = 180.0
	colTmaxX = 270.0
	colCodeX = 360.0

	// Right edges for the numeric columns.
	colTminRight = 240.0
	colTmaxRight = 330.0
	colCodeRight = 420.0
)

// WritePDF renders records into a paginated tabular document.
func WritePDF(w io.Writer, records []Record) error {
	pdf := gofpdf.New("P", "pt", "Letter", "")
	_, pageH := pdf.GetPageSize()
	bottom := pageH - pdfMargin

	for _, r := range records {
		pdf.AddPage()

		// ASCII only: the default gofpdf font encoding is cp1252 and raw
		// UTF-8 punctuation renders as mojibake.
		pdf.SetFont("Helvetica", "B", 14)
		pdf.Text(pdfMargin, pdfMargin, fmt.Sprintf("WeatherWise Export - Request #%d", r.ID))

		pdf.SetFont("Helvetica", "", 10)
		pdf.Text(pdfMargin, pdfMargin+pdfHeaderStep,
			fmt.Sprintf("%s (%.4f,%.4f)", derefOr(r.ResolvedName, ""), r.Latitude, r.Longitude))
		pdf.Text(pdfMargin, pdfMargin+pdfHeaderStep+15,
			fmt.Sprintf("Range: %s to %s", r.DateFrom, r.DateTo))

		y := pdfMargin + 58
		pdf.SetFont("Helvetica", "B", 10)
		pdf.Text(colDateX, y, "Date")
		pdf.Text(colTminX, y, "Tmin (C)")
		pdf.Text(colTmaxX, y, "Tmax (C)")
		pdf.Text(colCodeX, y, "Code")
		y += pdfRowStep + 2

		pdf.SetFont("Helvetica", "", 10)
		for _, d := range r.Weather.Daily {
			if y > bottom {
				pdf.AddPage()
				pdf.SetFont("Helvetica", "", 10)
				y = pdfMargin
			}
			pdf.Text(colDateX, y, d.Date)
			textRight(pdf, colTminRight, y, fmtFloat(d.TminC))
			textRight(pdf, colTmaxRight, y, fmtFloat(d.TmaxC))
			textRight(pdf, colCodeRight, y, fmtInt(d.Weathercode))
			y += pdfRowStep
		}
	}

	return pdf.Output(w)
}

// textRight draws s so that its right edge sits at x.
func textRight(pdf *gofpdf.Fpdf, x, y float64, s string) {
	pdf.Text(x-pdf.GetStringWidth(s), y, s)
}
