package textextract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/submissions-tracker/internal/common"
)

// approximate advance of one glyph in points, used to turn x offsets into spaces
const glyphWidth = 5.5

var pdfcpuOnce sync.Once

// extractPDF validates the file with pdfcpu, then reads the text layer with
// ledongthuc/pdf and falls back to pdftotext when that yields nothing or the
// layer has lost its positions.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) (string, int, string, error) {
	pages, err := pageCount(data)
	if err != nil {
		return "", 0, "", common.UnreadableDocument("corrupt pdf", err)
	}
	if pages == 0 {
		return "", 0, "", common.UnreadableDocument("pdf has no pages", nil)
	}

	text, err := e.readTextLayer(data)
	if err != nil {
		e.logger.Warn("pdf text layer read failed, trying pdftotext", "error", err)
	}
	if strings.TrimSpace(strings.ReplaceAll(text, PageBreak, "")) != "" {
		return text, pages, MethodPDFText, nil
	}

	text, err = e.pdfToText(ctx, data)
	if err != nil {
		return "", pages, MethodPdfToText, common.UnreadableDocument("no text layer", err)
	}
	return text, pages, MethodPdfToText, nil
}

func pageCount(data []byte) (int, error) {
	pdfcpuOnce.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), conf)
}

func (e *Extractor) readTextLayer(data []byte) (text string, err error) {
	// ledongthuc/pdf panics on some malformed object streams
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	n := r.NumPage()
	if e.cfg.MaxPages > 0 && n > e.cfg.MaxPages {
		n = e.cfg.MaxPages
	}

	var b strings.Builder
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		lines, err := e.pageLines(p, i)
		if err != nil {
			return "", err
		}
		if b.Len() > 0 {
			b.WriteString("\n" + PageBreak + "\n")
		}
		for _, l := range lines {
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// pageLines reads one page by rows. GetTextByRow only follows absolute Tm
// positioning, so pages placed with Td, TD or T* are rebuilt from the
// glyph positions of Page.Content instead.
func (e *Extractor) pageLines(p pdf.Page, page int) ([]string, error) {
	rows, err := p.GetTextByRow()
	if err == nil && !collapsed(rows) {
		// pdf y grows upwards
		sort.SliceStable(rows, func(a, c int) bool { return rows[a].Position > rows[c].Position })
		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			lines = append(lines, layoutRow(row.Content))
		}
		return lines, nil
	}
	if err != nil {
		e.logger.Debug("page rows read failed, using glyph positions", "page", page, "error", err)
	} else {
		e.logger.Debug("page rows lost their positions, using glyph positions", "page", page)
	}
	lines := contentLines(p.Content().Text)
	if collapsedLines(lines, rows) {
		return nil, fmt.Errorf("page %d: %w", page, errLayoutLost)
	}
	return lines, nil
}

var errLayoutLost = errors.New("text layer has no usable positions")

// collapsed reports rows where two visible fragments share one x offset,
// which is what GetTextByRow yields for relatively positioned text.
func collapsed(rows pdf.Rows) bool {
	for _, row := range rows {
		seen := make(map[float64]bool, len(row.Content))
		for _, t := range row.Content {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			if seen[t.X] {
				return true
			}
			seen[t.X] = true
		}
	}
	return false
}

// collapsedLines reports a rebuild that is still a single line although the
// row reader saw several separately placed fragments.
func collapsedLines(lines []string, rows pdf.Rows) bool {
	if len(lines) != 1 {
		return false
	}
	n := 0
	for _, row := range rows {
		for _, t := range row.Content {
			if strings.TrimSpace(t.S) != "" {
				n++
			}
		}
	}
	return n > 1
}

// contentLines groups glyphs into fragments and rows. Glyphs of fonts
// without a Widths array all report the x of their string, so a glyph
// continues the current fragment when it starts where the previous one ended
// or at the same x.
func contentLines(glyphs []pdf.Text) []string {
	type rowAt struct {
		y     float64
		texts pdf.TextHorizontal
	}
	var (
		rows  []*rowAt
		cur   *pdf.Text
		lastX float64
		lastW float64
	)
	flush := func() {
		if cur == nil {
			return
		}
		y := math.Round(cur.Y)
		var row *rowAt
		for _, r := range rows {
			if r.y == y {
				row = r
				break
			}
		}
		if row == nil {
			row = &rowAt{y: y}
			rows = append(rows, row)
		}
		row.texts = append(row.texts, *cur)
		cur = nil
	}
	for _, g := range glyphs {
		if g.S == "" || g.S == "\n" {
			continue
		}
		if cur != nil && math.Round(g.Y) == math.Round(cur.Y) {
			gap := g.X - (lastX + lastW)
			if g.X == lastX || (gap > -2 && gap < 1.5) {
				cur.S += g.S
				cur.W += g.W
				lastX, lastW = g.X, g.W
				continue
			}
		}
		flush()
		cur = &pdf.Text{X: g.X, Y: g.Y, W: g.W, S: g.S}
		lastX, lastW = g.X, g.W
	}
	flush()

	// pdf y grows upwards
	sort.SliceStable(rows, func(a, c int) bool { return rows[a].y > rows[c].y })
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, layoutRow(r.texts))
	}
	return lines
}

// layoutRow rebuilds one visual line, turning horizontal gaps into spaces so
// that table columns stay separated by runs of two or more spaces.
func layoutRow(texts pdf.TextHorizontal) string {
	sort.Stable(texts)
	var b strings.Builder
	end := math.Inf(-1)
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		if b.Len() > 0 {
			gap := t.X - end
			switch {
			case gap >= 2*glyphWidth:
				spaces := int(gap / glyphWidth)
				if spaces < 2 {
					spaces = 2
				}
				b.WriteString(strings.Repeat(" ", spaces))
			case gap >= glyphWidth/3:
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
		w := t.W
		if w <= 0 {
			w = float64(len([]rune(t.S))) * glyphWidth
		}
		end = t.X + w
	}
	return b.String()
}

func (e *Extractor) pdfToText(ctx context.Context, data []byte) (string, error) {
	f, err := os.CreateTemp("", "submission-*.pdf")
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.Remove(f.Name()); err != nil {
			e.logger.Warn("failed to remove temp file", "path", f.Name(), "error", err)
		}
	}()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", f.Name(), "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w: %s", err, truncate(string(errb), 512))
	}
	// pdftotext separates pages with a form feed
	return strings.ReplaceAll(string(out), "\f", "\n"+PageBreak+"\n"), nil
}
