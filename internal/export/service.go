package export

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/submissions-tracker/constants"
	"github.com/joseph-ayodele/submissions-tracker/internal/common"
	"github.com/joseph-ayodele/submissions-tracker/internal/entity"
)

//go:embed schema.json
var schemaJSON []byte

// Source yields every stored record with its children.
type Source interface {
	ExportAll(ctx context.Context) ([]entity.Record, error)
}

// Document is the JSON export envelope.
type Document struct {
	ExportedAt       time.Time       `json:"exported_at"`
	TotalSubmissions int             `json:"total_submissions"`
	Submissions      []entity.Record `json:"submissions"`
}

// Service serializes the full submission graph.
type Service struct {
	source Source
	schema *jsonschema.Schema
	logger *slog.Logger
	now    func() time.Time
}

func NewService(source Source, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add export schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile export schema: %w", err)
	}
	return &Service{source: source, schema: schema, logger: logger, now: time.Now}, nil
}

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (constants.ExportFormat, error) {
	switch f := constants.ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case constants.ExportJSON, constants.ExportXLSX:
		return f, nil
	case "":
		return constants.ExportJSON, nil
	default:
		return "", common.InvalidInput(fmt.Sprintf("unsupported export format %q", s), nil)
	}
}

// Export renders every submission in the requested format.
func (s *Service) Export(ctx context.Context, format constants.ExportFormat) ([]byte, error) {
	switch format {
	case constants.ExportJSON, "":
		return s.ExportJSON(ctx)
	case constants.ExportXLSX:
		return s.ExportXLSX(ctx)
	default:
		return nil, common.InvalidInput(fmt.Sprintf("unsupported export format %q", format), nil)
	}
}

// ExportJSON returns the indented JSON document, checked against the
// export schema before it is handed out.
func (s *Service) ExportJSON(ctx context.Context) ([]byte, error) {
	start := time.Now()
	recs, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	doc := Document{
		ExportedAt:       s.now().UTC(),
		TotalSubmissions: len(recs),
		Submissions:      recs,
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	if err := s.validate(out); err != nil {
		s.logger.Error("export.json.invalid", "error", err)
		return nil, common.NewAppError(common.CodeInternal, "export does not match schema", err)
	}
	s.logger.Info("export.json.ok",
		"submissions", len(recs),
		"bytes", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (s *Service) validate(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal export: %w", err)
	}
	return s.schema.Validate(v)
}

func (s *Service) load(ctx context.Context) ([]entity.Record, error) {
	recs, err := s.source.ExportAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}
	if recs == nil {
		recs = []entity.Record{}
	}
	for i := range recs {
		if recs[i].Samples == nil {
			recs[i].Samples = []entity.Sample{}
		}
		if recs[i].Info == nil {
			recs[i].Info = []entity.InfoEntry{}
		}
	}
	return recs, nil
}
