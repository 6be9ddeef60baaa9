// Package submissions is the entry point for processing submission forms and
// querying what has been stored.
package submissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/submissions-tracker/constants"
	"github.com/joseph-ayodele/submissions-tracker/internal/archive"
	"github.com/joseph-ayodele/submissions-tracker/internal/common"
	"github.com/joseph-ayodele/submissions-tracker/internal/entity"
	"github.com/joseph-ayodele/submissions-tracker/internal/export"
	"github.com/joseph-ayodele/submissions-tracker/internal/identity"
	"github.com/joseph-ayodele/submissions-tracker/internal/metrics"
	"github.com/joseph-ayodele/submissions-tracker/internal/pipeline"
	"github.com/joseph-ayodele/submissions-tracker/internal/repository"
)

// ProcessResult is the outcome of Process. For a duplicate, SubmissionID and
// Record describe the submission already stored and Warnings is empty.
type ProcessResult struct {
	Status       constants.ProcessStatus `json:"status"`
	SubmissionID string                  `json:"submission_id"`
	Record       *entity.Record          `json:"record,omitempty"`
	Warnings     []entity.Warning        `json:"warnings"`
	Duration     time.Duration           `json:"-"`
}

// DuplicateCheck is the outcome of CheckDuplicate.
type DuplicateCheck struct {
	FileHash     string `json:"file_hash"`
	IsDuplicate  bool   `json:"is_duplicate"`
	SubmissionID string `json:"submission_id,omitempty"`
}

// ListOptions narrows List. Limit 0 means the default page size, a negative
// Limit returns everything.
type ListOptions struct {
	ProjectID string
	Limit     int
}

type Service struct {
	proc    *pipeline.Processor
	repo    repository.SubmissionRepository
	export  *export.Service
	archive archive.Store
	metrics metrics.Recorder
	logger  *slog.Logger
}

type Option func(*Service)

// WithArchive keeps a copy of every newly created document in store.
func WithArchive(store archive.Store) Option {
	return func(s *Service) { s.archive = store }
}

// WithMetrics reports processing outcomes to rec.
func WithMetrics(rec metrics.Recorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

func NewService(proc *pipeline.Processor, repo repository.SubmissionRepository, logger *slog.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ex, err := export.NewService(repo, logger)
	if err != nil {
		return nil, err
	}
	s := &Service{
		proc:    proc,
		repo:    repo,
		export:  ex,
		metrics: (*metrics.Metrics)(nil),
		logger:  logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Process extracts a record from data and stores it. Bytes that are already
// stored are reported as a duplicate without being parsed again.
func (s *Service) Process(ctx context.Context, data []byte, filename string) (*ProcessResult, error) {
	start := time.Now()
	log := common.LoggerFrom(ctx, s.logger).With("filename", filename)

	if res, err := s.existing(ctx, identity.Fingerprint(data)); err != nil {
		return nil, s.fail(log, "lookup", err)
	} else if res != nil {
		res.Duration = time.Since(start)
		s.metrics.Processed(res.Status, 0, res.Duration)
		log.Info("service.process.duplicate", "submission_id", res.SubmissionID)
		return res, nil
	}

	parsed, err := s.proc.Parse(ctx, data, filename)
	if err != nil {
		return nil, s.fail(log, "parse", err)
	}
	rec := parsed.Record

	saved, err := s.repo.Save(ctx, rec)
	if err != nil {
		return nil, s.fail(log, "save", err)
	}

	res := &ProcessResult{Status: saved.Status, SubmissionID: saved.SubmissionID, Warnings: []entity.Warning{}}
	if saved.Status == constants.StatusDuplicate {
		// lost a race with a concurrent save of the same bytes
		if res.Record, err = s.repo.FindByID(ctx, saved.SubmissionID); err != nil {
			return nil, s.fail(log, "load duplicate", err)
		}
	} else {
		res.Record = rec
		res.Warnings = parsed.Warnings
		s.archiveDocument(ctx, log, rec, data)
	}

	res.Duration = time.Since(start)
	s.metrics.Processed(res.Status, len(res.Warnings), res.Duration)
	log.Info("service.process.ok",
		"submission_id", res.SubmissionID,
		"status", res.Status,
		"samples", res.Record.TotalSamples,
		"warnings", len(res.Warnings),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// ProcessFile reads path and processes its contents.
func (s *Service) ProcessFile(ctx context.Context, path string) (*ProcessResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.InvalidInput(fmt.Sprintf("cannot read %s", path), err)
	}
	return s.Process(ctx, data, filepath.Base(path))
}

func (s *Service) existing(ctx context.Context, fileHash string) (*ProcessResult, error) {
	sub, err := s.repo.FindByHash(ctx, fileHash)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec, err := s.repo.FindByID(ctx, sub.SubmissionID)
	if err != nil {
		return nil, err
	}
	return &ProcessResult{
		Status:       constants.StatusDuplicate,
		SubmissionID: sub.SubmissionID,
		Record:       rec,
		Warnings:     []entity.Warning{},
	}, nil
}

func (s *Service) fail(log *slog.Logger, stage string, err error) error {
	code := common.CodeOf(err)
	if code == "" {
		code = common.CodeInternal
	}
	s.metrics.Failed(code)
	log.Error("service.process.failed", "stage", stage, "code", code, "error", err)
	return err
}

func (s *Service) archiveDocument(ctx context.Context, log *slog.Logger, rec *entity.Record, data []byte) {
	if s.archive == nil {
		return
	}
	key, err := archive.Key(rec.FileHash, rec.PDFFilename)
	if err != nil {
		log.Warn("service.archive.skipped", "submission_id", rec.SubmissionID, "error", err)
		return
	}
	ct := constants.ContentTypeForExt(filepath.Ext(rec.PDFFilename))
	if _, err := s.archive.Put(ctx, key, data, ct); err != nil {
		// the record is already committed; a missing copy is not fatal
		log.Warn("service.archive.failed", "submission_id", rec.SubmissionID, "key", key, "error", err)
		return
	}
	log.Debug("service.archive.ok", "submission_id", rec.SubmissionID, "key", key, "driver", s.archive.Driver())
}

// CheckDuplicate reports whether data has already been stored, without
// parsing it.
func (s *Service) CheckDuplicate(ctx context.Context, data []byte) (*DuplicateCheck, error) {
	out := &DuplicateCheck{FileHash: identity.Fingerprint(data)}
	sub, err := s.repo.FindByHash(ctx, out.FileHash)
	switch {
	case errors.Is(err, common.ErrNotFound):
		return out, nil
	case err != nil:
		return nil, err
	}
	out.IsDuplicate = true
	out.SubmissionID = sub.SubmissionID
	return out, nil
}

// Get returns the record stored under a submission id or uuid.
func (s *Service) Get(ctx context.Context, id string) (*entity.Record, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context, opts ListOptions) ([]entity.Submission, error) {
	return s.repo.List(ctx, repository.ListFilter{ProjectID: opts.ProjectID, Limit: opts.Limit})
}

// Search does a case-insensitive substring match over the submission fields
// and info values. An empty query lists everything.
func (s *Service) Search(ctx context.Context, text string) ([]entity.Submission, error) {
	return s.repo.Search(ctx, text)
}

func (s *Service) Statistics(ctx context.Context) (*entity.Statistics, error) {
	return s.repo.Statistics(ctx)
}

func (s *Service) Projects(ctx context.Context) ([]entity.ProjectCount, error) {
	return s.repo.Projects(ctx)
}

func (s *Service) SampleStats(ctx context.Context, id string) (*entity.SampleStats, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	return s.repo.SampleStats(ctx, id)
}

// Update changes the descriptive fields of a stored submission. An empty
// value clears the field.
func (s *Service) Update(ctx context.Context, id string, patch repository.SubmissionPatch) (*entity.Record, error) {
	v := common.NewValidator().Field("submission_id", id, common.Required, common.MaxLength(64))
	for _, f := range []struct {
		name string
		val  *string
	}{
		{"project_id", patch.ProjectID},
		{"owner", patch.Owner},
		{"source_organism", patch.SourceOrganism},
	} {
		if f.val != nil {
			v.Field(f.name, *f.val, common.MaxLength(256))
		}
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, common.InvalidInput("nothing to update", nil)
	}
	rec, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	common.LoggerFrom(ctx, s.logger).Info("service.update.ok", "submission_id", rec.SubmissionID)
	return rec, nil
}

// Delete removes a submission with its samples and info entries, and drops
// the archived copy of the document when there is one.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	log := common.LoggerFrom(ctx, s.logger)
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, rec.SubmissionID); err != nil {
		return err
	}
	s.metrics.Deleted()
	log.Info("service.delete.ok", "submission_id", rec.SubmissionID)

	if s.archive != nil {
		if key, err := archive.Key(rec.FileHash, rec.PDFFilename); err == nil {
			if err := s.archive.Delete(ctx, key); err != nil {
				log.Warn("service.archive.delete_failed", "submission_id", rec.SubmissionID, "key", key, "error", err)
			}
		}
	}
	return nil
}

// Export serializes every stored submission.
func (s *Service) Export(ctx context.Context, format constants.ExportFormat) ([]byte, error) {
	return s.export.Export(ctx, format)
}

// Document returns the archived copy of a submission's source document.
func (s *Service) Document(ctx context.Context, id string) ([]byte, error) {
	if s.archive == nil {
		return nil, common.NotFound("document archive is disabled")
	}
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := archive.Key(rec.FileHash, rec.PDFFilename)
	if err != nil {
		return nil, common.NewAppError(common.CodeInternal, "invalid archive key", err)
	}
	_, data, err := s.archive.Get(ctx, key)
	if errors.Is(err, archive.ErrNotFound) {
		return nil, common.NotFound(fmt.Sprintf("no archived document for %s", rec.SubmissionID))
	}
	if err != nil {
		return nil, common.StorageUnavailable("archive read failed", err)
	}
	return data, nil
}

func requireID(id string) error {
	v := common.NewValidator().Field("submission_id", id, common.Required, common.MaxLength(64))
	return common.ValidateAndReturnError(v)
}
