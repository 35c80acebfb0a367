// Package reportpdf renders a batch's item-result annotations (spec §6
// "Batch output") as a human-readable PDF report: a markdown table is
// generated in memory, then walked via goldmark's AST and laid out with
// fpdf — the teacher's only non-extraction PDF capability, repurposed
// here rather than left unused.
package reportpdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/ternarybob/extractionengine/internal/model"
)

// Renderer converts batch results into a PDF report.
type Renderer struct {
	logger arbor.ILogger
}

// NewRenderer returns a Renderer.
func NewRenderer(logger arbor.ILogger) *Renderer {
	return &Renderer{logger: logger}
}

// RenderBatch builds a one-page-per-overflow PDF report: a title, then
// one row per item giving path, elapsed seconds, cache hit, confidence,
// and estimated cost (spec §6).
func (r *Renderer) RenderBatch(title string, results []model.ItemResult) ([]byte, error) {
	markdown := buildMarkdown(title, results)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 9)

	md := goldmark.New(
		goldmark.WithExtensions(extension.Table),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)

	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	renderer := &pdfRenderer{pdf: pdf, source: source, font: "Arial", size: 9}
	if err := ast.Walk(doc, renderer.walk); err != nil {
		return nil, fmt.Errorf("failed to render batch report: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	if r.logger != nil {
		r.logger.Debug().Int("items", len(results)).Int("pdf_size", buf.Len()).Msg("batch report rendered")
	}

	return buf.Bytes(), nil
}

func buildMarkdown(title string, results []model.ItemResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	b.WriteString("| Item | Label | Path | Elapsed (s) | Cache Hit | Confidence | Est. Cost |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, res := range results {
		status := "ok"
		if res.Err != nil {
			status = res.Err.Error()
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %.3f | %v | %.2f | %.4f (%s) |\n",
			res.ItemIndex, res.Label, res.Path.String(), res.ElapsedSeconds, res.CacheHit, res.Confidence, res.EstimatedCost, status)
	}
	return b.String()
}

// pdfRenderer is a condensed version of the teacher's generic markdown
// renderer, scoped to the node kinds a tabular report actually produces:
// a heading and one table. Lists, emphasis, and code blocks are out of
// scope for this report shape.
type pdfRenderer struct {
	pdf    *fpdf.Fpdf
	source []byte
	font   string
	size   float64
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n.Kind() {
	case ast.KindHeading:
		return r.handleHeading(n.(*ast.Heading), entering)
	case ast.KindText:
		return r.handleText(n.(*ast.Text), entering)
	case extast.KindTable:
		return r.handleTable(n.(*extast.Table), entering)
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleHeading(n *ast.Heading, entering bool) (ast.WalkStatus, error) {
	if entering {
		r.pdf.Ln(6)
		size := 14.0
		if n.Level > 1 {
			size = 11
		}
		r.pdf.SetFont(r.font, "B", size)
	} else {
		r.pdf.Ln(6)
		r.pdf.SetFont(r.font, "", r.size)
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleText(n *ast.Text, entering bool) (ast.WalkStatus, error) {
	if entering {
		// Table cell text is rendered directly by handleTable; only
		// standalone text nodes (the heading) reach here.
		if n.Parent() != nil && n.Parent().Kind() == ast.KindHeading {
			r.pdf.Write(5, string(n.Text(r.source)))
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleTable(n *extast.Table, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	var rows [][]string
	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		tr, ok := row.(*extast.TableRow)
		if !ok {
			if header, ok := row.(*extast.TableHeader); ok {
				rows = append(rows, r.extractRow(header))
			}
			continue
		}
		rows = append(rows, r.extractRow(tr))
	}

	r.renderTable(rows)
	return ast.WalkSkipChildren, nil
}

func (r *pdfRenderer) extractRow(n ast.Node) []string {
	var cells []string
	for cell := n.FirstChild(); cell != nil; cell = cell.NextSibling() {
		var text strings.Builder
		for c := cell.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				text.Write(t.Text(r.source))
			}
		}
		cells = append(cells, text.String())
	}
	return cells
}

func (r *pdfRenderer) renderTable(rows [][]string) {
	if len(rows) == 0 {
		return
	}

	numCols := len(rows[0])
	pageWidth, _ := r.pdf.GetPageSize()
	left, _, right, _ := r.pdf.GetMargins()
	usable := pageWidth - left - right
	colWidth := usable / float64(numCols)

	r.pdf.Ln(4)
	for i, row := range rows {
		if i == 0 {
			r.pdf.SetFont(r.font, "B", r.size)
		} else {
			r.pdf.SetFont(r.font, "", r.size)
		}
		for _, cell := range row {
			r.pdf.CellFormat(colWidth, 6, cell, "1", 0, "L", false, 0, "")
		}
		r.pdf.Ln(-1)
	}
}
