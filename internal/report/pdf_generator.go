package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/spf13/afero"

	"github.com/user/coco_analyzer_go/internal/analysis"
)

const (
	inchToMm               = 25.4
	pdfPageWidthLandscape  = 11 * inchToMm // Letter landscape
	pdfPageHeightLandscape = 8.5 * inchToMm
	pdfMargin              = 0.5 * inchToMm
	pdfContentWidth        = pdfPageWidthLandscape - (2 * pdfMargin)
)

// Image keys understood by BuildPDFReport.
const (
	ImageComparison = "comparison"
	ImageHeatmap    = "heatmap"
)

// ReportData is everything the summary report prints.
type ReportData struct {
	Directory  string
	TrialCount int
	Divisor    float64
	ReferenceX float64
	Threshold  float64
	Sigma      float64
	Results    *analysis.AggregationResults
	Rankings   []analysis.Ranking
	Images     map[string][]byte // PNG bytes by ImageComparison / ImageHeatmap
}

// pdfStyler holds reusable styling and state for PDF generation
type pdfStyler struct {
	pdf         *gofpdf.Fpdf
	styles      map[string]func()
	lineHeight  float64
	currentY    float64 // manually tracked for flowing content
	pageHeight  float64
	contentTopY float64
}

func newPDFStyler(pdf *gofpdf.Fpdf) *pdfStyler {
	s := &pdfStyler{
		pdf:         pdf,
		styles:      make(map[string]func()),
		lineHeight:  6, // mm
		pageHeight:  pdfPageHeightLandscape - pdfMargin,
		contentTopY: pdfMargin,
	}
	s.currentY = s.contentTopY
	s.defineStyles()
	return s
}

func (s *pdfStyler) defineStyles() {
	s.styles["h1"] = func() {
		s.pdf.SetFont("Arial", "B", 16)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["h2"] = func() {
		s.pdf.SetFont("Arial", "B", 14)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["normal"] = func() {
		s.pdf.SetFont("Arial", "", 10)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["warning"] = func() {
		s.pdf.SetFont("Arial", "", 9)
		s.pdf.SetTextColor(160, 80, 0)
	}
	s.styles["tableHeader"] = func() {
		s.pdf.SetFont("Arial", "B", 9)
		s.pdf.SetFillColor(200, 200, 200)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["tableCell"] = func() {
		s.pdf.SetFont("Arial", "", 9)
		s.pdf.SetTextColor(50, 50, 50)
	}
	s.styles["tableCellMuted"] = func() { // groups that never reach the threshold
		s.pdf.SetFont("Arial", "I", 9)
		s.pdf.SetTextColor(130, 130, 130)
	}
}

func (s *pdfStyler) applyStyle(styleName string) {
	if fn, ok := s.styles[styleName]; ok {
		fn()
	} else {
		s.styles["normal"]()
	}
}

func (s *pdfStyler) newPage() {
	s.pdf.AddPage()
	s.currentY = s.contentTopY
}

func (s *pdfStyler) checkAddPage(neededHeight float64) {
	if s.currentY+neededHeight > s.pageHeight {
		s.newPage()
	}
}

func (s *pdfStyler) writeParagraph(text string, styleName string, align string) {
	s.applyStyle(styleName)
	lines := s.pdf.SplitLines([]byte(text), pdfContentWidth)
	s.checkAddPage(float64(max(len(lines), 1)) * s.lineHeight)

	s.pdf.SetXY(pdfMargin, s.currentY)
	s.pdf.MultiCell(pdfContentWidth, s.lineHeight, text, "", align, false)
	s.currentY = s.pdf.GetY() + 1
}

func (s *pdfStyler) addSpacer(height float64) {
	s.checkAddPage(height)
	s.currentY += height
}

func (s *pdfStyler) addImage(imageBytes []byte, imageName string, width, height float64, caption string) {
	s.pdf.RegisterImageOptionsReader(imageName, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(imageBytes))

	if width > pdfContentWidth {
		ratio := pdfContentWidth / width
		width = pdfContentWidth
		height *= ratio
	}

	captionHeight := 0.0
	if caption != "" {
		captionHeight = s.lineHeight + 1
	}
	s.checkAddPage(height + captionHeight)

	x := pdfMargin + (pdfContentWidth-width)/2
	s.pdf.ImageOptions(imageName, x, s.currentY, width, height, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	s.currentY += height

	if caption != "" {
		s.addSpacer(1)
		s.writeParagraph(caption, "normal", "C")
	}
	s.addSpacer(2)
}

// writeTable draws a header row and body rows. widthsRel are fractions of
// the content width. styleFor may pick a cell style per row.
func (s *pdfStyler) writeTable(headers []string, widthsRel []float64, rows [][]string, styleFor func(row int) string) {
	widths := make([]float64, len(widthsRel))
	for i, rel := range widthsRel {
		widths[i] = rel * pdfContentWidth
	}

	header := func() {
		s.applyStyle("tableHeader")
		x := pdfMargin
		for i, h := range headers {
			s.pdf.SetXY(x, s.currentY)
			s.pdf.CellFormat(widths[i], s.lineHeight, h, "1", 0, "C", true, 0, "")
			x += widths[i]
		}
		s.currentY += s.lineHeight
	}

	s.checkAddPage(s.lineHeight * math.Min(float64(len(rows))+1, 6))
	header()

	for r, row := range rows {
		if s.currentY+s.lineHeight > s.pageHeight {
			s.newPage()
			header()
		}
		style := "tableCell"
		if styleFor != nil {
			style = styleFor(r)
		}
		s.applyStyle(style)

		x := pdfMargin
		for i, cell := range row {
			s.pdf.SetXY(x, s.currentY)
			s.pdf.CellFormat(widths[i], s.lineHeight, cell, "1", 0, "C", false, 0, "")
			x += widths[i]
		}
		s.currentY += s.lineHeight
	}
}

// BuildPDFReport writes the summary report to w.
func BuildPDFReport(w io.Writer, data ReportData) error {
	pdf := gofpdf.New("L", "mm", "Letter", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.AddPage()

	styler := newPDFStyler(pdf)

	styler.writeParagraph("COCO Group Comparison Report", "h1", "C")
	styler.addSpacer(3)
	styler.writeParagraph(fmt.Sprintf("Directory: %s", data.Directory), "normal", "L")
	styler.writeParagraph(fmt.Sprintf("Trials per group: %d    Normalization divisor: %g", data.TrialCount, data.Divisor), "normal", "L")
	styler.writeParagraph(fmt.Sprintf("Reference x: %g    Reach threshold: %g    Smoothing sigma: %g", data.ReferenceX, data.Threshold, data.Sigma), "normal", "L")
	styler.addSpacer(5)

	if data.Results == nil || len(data.Results.Series) == 0 {
		styler.writeParagraph("No aggregated groups to display.", "normal", "L")
		writeWarnings(styler, data.Results)
		return outputPDF(pdf, w)
	}

	styler.writeParagraph("Legend Ranking", "h2", "L")
	rankRows := make([][]string, len(data.Rankings))
	for i, r := range data.Rankings {
		rankRows[i] = []string{
			strconv.Itoa(r.Rank + 1),
			r.Group,
			formatValue(r.ValueAtReference),
			formatReach(r.ReachX),
		}
	}
	styler.writeTable(
		[]string{"Rank", "Group", fmt.Sprintf("Value at x=%g", data.ReferenceX), fmt.Sprintf("First x with value >= %g", data.Threshold)},
		[]float64{0.1, 0.4, 0.25, 0.25},
		rankRows,
		func(row int) string {
			if analysis.IsUnreached(data.Rankings[row].ReachX) {
				return "tableCellMuted"
			}
			return "tableCell"
		},
	)
	styler.addSpacer(5)

	styler.writeParagraph("Trial Coverage", "h2", "L")
	coverageRows := make([][]string, 0, len(data.Results.Series)+len(data.Results.EmptyGroups))
	for _, s := range data.Results.Series {
		coverageRows = append(coverageRows, []string{
			s.Group,
			strconv.Itoa(len(s.Loaded)),
			formatIndices(s.Missing),
		})
	}
	for _, g := range data.Results.EmptyGroups {
		coverageRows = append(coverageRows, []string{g, "0", "all (omitted)"})
	}
	styler.writeTable([]string{"Group", "Loaded", "Missing trials"}, []float64{0.3, 0.15, 0.55}, coverageRows, nil)
	styler.addSpacer(5)

	writeWarnings(styler, data.Results)

	imgWidth := pdfContentWidth * 0.9
	plotDefs := []struct {
		Key     string
		Title   string
		Caption string
		Height  float64
	}{
		{ImageComparison, "Group Comparison", "Normalized target hit rate per group, legend ordered by rank", imgWidth / 2},
		{ImageHeatmap, "Per-trial Final Values", "Last value of each trial; gray cells are missing trials", imgWidth / 2},
	}
	for _, def := range plotDefs {
		styler.newPage()
		styler.writeParagraph(def.Title, "h2", "L")
		if img, ok := data.Images[def.Key]; ok && len(img) > 0 {
			styler.addImage(img, def.Key, imgWidth, def.Height, def.Caption)
		} else {
			styler.writeParagraph(fmt.Sprintf("%s plot not available.", def.Title), "normal", "L")
		}
	}

	return outputPDF(pdf, w)
}

// SavePDFReport writes the report to path, creating its directory.
func SavePDFReport(fsys afero.Fs, path string, data ReportData) error {
	return WriteFile(fsys, path, func(w io.Writer) error {
		return BuildPDFReport(w, data)
	})
}

func writeWarnings(styler *pdfStyler, results *analysis.AggregationResults) {
	if results == nil || len(results.Warnings) == 0 {
		return
	}
	styler.writeParagraph("Warnings", "h2", "L")
	for _, w := range results.Warnings {
		styler.writeParagraph("- "+w, "warning", "L")
	}
	styler.addSpacer(3)
}

func outputPDF(pdf *gofpdf.Fpdf, w io.Writer) error {
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatReach(x float64) string {
	if analysis.IsUnreached(x) {
		return "unreached"
	}
	return strconv.FormatFloat(x, 'g', 4, 64)
}

func formatIndices(idx []int) string {
	if len(idx) == 0 {
		return "none"
	}
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
