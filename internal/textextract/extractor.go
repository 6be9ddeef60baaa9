package textextract

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/submissions-tracker/constants"
	"github.com/joseph-ayodele/submissions-tracker/internal/common"
)

// Method names reported in Document.Method.
const (
	MethodPlainText = "plain-text"
	MethodPDFText   = "pdf-text"
	MethodPdfToText = "pdftotext"
)

type Config struct {
	Pdftotext string        // binary name or absolute path; if empty -> "pdftotext"
	Timeout   time.Duration // cap for the pdftotext fallback, 0 = none
	MaxPages  int           // 0 = no limit
}

// Document is the normalized text of one input.
type Document struct {
	Lines    []string
	Pages    int
	Method   string
	Duration time.Duration
}

// Text joins the normalized lines back together.
func (d *Document) Text() string {
	var b bytes.Buffer
	for i, l := range d.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l)
	}
	return b.String()
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// WithRunner swaps the command runner used for the pdftotext fallback.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// Extract turns document bytes into normalized lines. It fails with an
// UNREADABLE_DOCUMENT AppError when the bytes are not a decodable document
// or carry no text.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (*Document, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(filename))
	e.logger.Debug("starting text extraction", "filename", filename, "ext", ext, "bytes", len(data))

	if len(data) == 0 {
		return nil, common.UnreadableDocument("empty document", nil)
	}

	var (
		raw    string
		pages  = 1
		method string
	)
	switch {
	case isPDF(data):
		text, n, m, err := e.extractPDF(ctx, data)
		if err != nil {
			e.logger.Warn("pdf extraction failed", "filename", filename, "error", err)
			return nil, err
		}
		raw, pages, method = text, n, m
	case ext == "pdf":
		return nil, common.UnreadableDocument("missing %PDF header", nil)
	case isPlainText(data):
		raw, method = string(data), MethodPlainText
	default:
		return nil, common.UnreadableDocument("unrecognized document format", nil)
	}

	lines := Normalize(raw)
	if !hasText(lines) {
		e.logger.Warn("document has no extractable text", "filename", filename, "method", method)
		return nil, common.UnreadableDocument("no extractable text layer", nil)
	}

	doc := &Document{Lines: lines, Pages: pages, Method: method, Duration: time.Since(start)}
	e.logger.Debug("text extraction done",
		"filename", filename,
		"method", method,
		"pages", pages,
		"lines", len(lines),
		"duration_ms", doc.Duration.Milliseconds(),
	)
	return doc, nil
}

func isPDF(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte("%PDF-"))
}

func isPlainText(data []byte) bool {
	return utf8.Valid(data) && bytes.IndexByte(data, 0) < 0
}

func hasText(lines []string) bool {
	for _, l := range lines {
		if l != "" && l != PageBreak {
			return true
		}
	}
	return false
}
