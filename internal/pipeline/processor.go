package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/submissions-tracker/constants"
	"github.com/joseph-ayodele/submissions-tracker/internal/entity"
	"github.com/joseph-ayodele/submissions-tracker/internal/fields"
	"github.com/joseph-ayodele/submissions-tracker/internal/identity"
	"github.com/joseph-ayodele/submissions-tracker/internal/table"
	"github.com/joseph-ayodele/submissions-tracker/internal/textextract"
)

// Parsed is the in-memory result of running a document through extraction.
type Parsed struct {
	Record   *entity.Record
	Warnings []entity.Warning
	Method   string
	Pages    int
	Duration time.Duration
}

// Processor coordinates text extraction, field and table recovery, identity
// and assembly. It has no side effects beyond logging.
type Processor struct {
	Logger *slog.Logger
	Text   *textextract.Extractor
	Fields *fields.Extractor
	Table  *table.Extractor
	IDs    *identity.Generator
}

func NewProcessor(logger *slog.Logger, text *textextract.Extractor, fx *fields.Extractor, tx *table.Extractor, ids *identity.Generator) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if fx == nil {
		fx = fields.NewExtractor(nil, logger)
	}
	if tx == nil {
		tx = table.NewExtractor(logger)
	}
	if ids == nil {
		ids = identity.NewGenerator()
	}
	return &Processor{Logger: logger, Text: text, Fields: fx, Table: tx, IDs: ids}
}

// Parse turns document bytes into a record. The only fatal extraction error
// is an unreadable document.
func (p *Processor) Parse(ctx context.Context, data []byte, filename string) (*Parsed, error) {
	start := time.Now()
	doc, err := p.Text.Extract(ctx, data, filename)
	if err != nil {
		p.Logger.Error("processor.text.failed", "filename", filename, "err", err)
		return nil, err
	}
	p.Logger.Info("processor.text.ok",
		"filename", filename,
		"method", doc.Method,
		"pages", doc.Pages,
		"lines", len(doc.Lines),
	)

	fr := p.Fields.Extract(doc.Lines)
	tr := p.Table.Extract(doc.Lines)
	projectID, _ := fr.Get(constants.FieldProjectID)
	id := p.IDs.Generate(data, filename, projectID)

	rec, warnings, err := Assemble(id, fr, tr)
	if err != nil {
		p.Logger.Error("processor.assemble.failed", "filename", filename, "err", err)
		return nil, err
	}
	for _, w := range warnings {
		p.Logger.Warn("processor.extract.warning", "submission_id", rec.SubmissionID, "warning", w.String())
	}
	p.Logger.Info("processor.assemble.ok",
		"submission_id", rec.SubmissionID,
		"fields", len(fr.Fields),
		"info", len(rec.Info),
		"samples", rec.TotalSamples,
		"warnings", len(warnings),
	)
	return &Parsed{
		Record:   rec,
		Warnings: warnings,
		Method:   doc.Method,
		Pages:    doc.Pages,
		Duration: time.Since(start),
	}, nil
}
