package repository

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqlgraph"

	"github.com/joseph-ayodele/submissions-tracker/constants"
	"github.com/joseph-ayodele/submissions-tracker/internal/common"
	"github.com/joseph-ayodele/submissions-tracker/internal/entity"
)

const (
	maxIDSuffix  = 99
	recentLimit  = 5
	defaultLimit = 100
)

var submissionColumns = []string{
	"submission_id", "uuid", "short_ref", "file_hash", "pdf_filename",
	"scanned_at", "created_at", "project_id", "owner", "source_organism",
	"sequencing_type", "sample_type", "total_samples",
}

// newestFirst orders by capture time, then insertion time. Ids suffixed
// within one second sort by length before text so _10 follows _9.
var newestFirst = order(entsql.DescExpr, "scanned_at", "created_at", "LENGTH(submission_id)", "submission_id")

var oldestFirst = order(asc, "scanned_at", "created_at", "LENGTH(submission_id)", "submission_id")

func asc(q entsql.Querier) entsql.Querier { return q }

// order builds raw expressions so the terms render the same on every dialect.
func order(dir func(entsql.Querier) entsql.Querier, terms ...string) []entsql.Querier {
	out := make([]entsql.Querier, len(terms))
	for i, t := range terms {
		out[i] = dir(entsql.Expr(t))
	}
	return out
}

var sampleColumns = []string{
	"submission_id", "sample_index", "sample_name", "volume_ul",
	"qubit_conc", "nanodrop_conc", "a260_280_ratio", "a260_230_ratio",
}

// ListFilter narrows List. A zero Limit means the default page size and a
// negative one means no limit.
type ListFilter struct {
	ProjectID string
	Limit     int
}

// SubmissionPatch lists the descriptive fields Update may change. A nil
// field is left alone and an empty string clears the column. Identity and
// file hash are fixed once stored.
type SubmissionPatch struct {
	ProjectID      *string
	Owner          *string
	SourceOrganism *string
}

func (p SubmissionPatch) Empty() bool {
	return p.ProjectID == nil && p.Owner == nil && p.SourceOrganism == nil
}

// SaveResult is the outcome of Save. For a duplicate, SubmissionID is the id
// of the submission already holding the same file hash.
type SaveResult struct {
	Status       constants.ProcessStatus
	SubmissionID string
}

type SubmissionRepository interface {
	Save(ctx context.Context, rec *entity.Record) (SaveResult, error)
	FindByID(ctx context.Context, id string) (*entity.Record, error)
	FindByHash(ctx context.Context, fileHash string) (*entity.Submission, error)
	List(ctx context.Context, filter ListFilter) ([]entity.Submission, error)
	Search(ctx context.Context, text string) ([]entity.Submission, error)
	Statistics(ctx context.Context) (*entity.Statistics, error)
	Projects(ctx context.Context) ([]entity.ProjectCount, error)
	SampleStats(ctx context.Context, id string) (*entity.SampleStats, error)
	Update(ctx context.Context, id string, patch SubmissionPatch) (*entity.Record, error)
	Delete(ctx context.Context, id string) error
	ExportAll(ctx context.Context) ([]entity.Record, error)
}

type submissionRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time

	// afterSubmissionInsert runs inside the save transaction between the
	// submission row and its children.
	afterSubmissionInsert func(ctx context.Context) error
}

func NewSubmissionRepository(db *DB, logger *slog.Logger) SubmissionRepository {
	if logger == nil {
		logger = db.logger
	}
	return &submissionRepository{db: db, logger: logger, now: time.Now}
}

// Save stores rec with its samples and info entries in one transaction. A
// record whose file hash is already stored is reported as a duplicate and
// nothing is written. On success rec carries the final submission id and
// creation time.
func (r *submissionRepository) Save(ctx context.Context, rec *entity.Record) (SaveResult, error) {
	var res SaveResult
	err := r.db.withRetry(ctx, "save submission", func(ctx context.Context) error {
		var err error
		res, err = r.save(ctx, rec)
		return err
	})
	if err != nil {
		r.logger.Error("failed to save submission", "submission_id", rec.SubmissionID, "error", err)
		return SaveResult{}, err
	}
	r.logger.Info("submission saved", "submission_id", res.SubmissionID, "status", res.Status, "samples", rec.TotalSamples)
	return res, nil
}

func (r *submissionRepository) save(ctx context.Context, rec *entity.Record) (SaveResult, error) {
	if r.db.cfg.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.db.cfg.TxTimeout)
		defer cancel()
	}
	tx, err := r.db.Driver.Tx(ctx)
	if err != nil {
		return SaveResult{}, classify("begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	existing, err := r.findOne(ctx, tx, entsql.EQ("file_hash", rec.FileHash))
	switch {
	case err == nil:
		r.logger.Info("duplicate document", "file_hash", rec.FileHash, "submission_id", existing.SubmissionID)
		return SaveResult{Status: constants.StatusDuplicate, SubmissionID: existing.SubmissionID}, nil
	case !errors.Is(err, common.ErrNotFound):
		return SaveResult{}, classify("check duplicate", err)
	}

	id, err := r.uniqueID(ctx, tx, rec.SubmissionID)
	if err != nil {
		return SaveResult{}, err
	}
	now := r.now().UTC()

	if err := r.insertSubmission(ctx, tx, rec, id, now); err != nil {
		if sqlgraph.IsUniqueConstraintError(err) {
			// a concurrent writer got there first; the retry sees its row
			return SaveResult{}, common.StorageConflict("insert submission", err)
		}
		return SaveResult{}, classify("insert submission", err)
	}
	if r.afterSubmissionInsert != nil {
		if err := r.afterSubmissionInsert(ctx); err != nil {
			return SaveResult{}, classify("insert submission", err)
		}
	}
	if err := r.insertSamples(ctx, tx, id, rec.Samples); err != nil {
		return SaveResult{}, classify("insert samples", err)
	}
	if err := r.insertInfo(ctx, tx, id, rec.Info); err != nil {
		return SaveResult{}, classify("insert submission info", err)
	}
	if err := tx.Commit(); err != nil {
		return SaveResult{}, classify("commit", err)
	}
	committed = true

	if id != rec.SubmissionID {
		r.logger.Info("submission id taken, suffixed", "requested", rec.SubmissionID, "assigned", id)
	}
	rec.SubmissionID = id
	rec.CreatedAt = now
	rec.TotalSamples = len(rec.Samples)
	return SaveResult{Status: constants.StatusCreated, SubmissionID: id}, nil
}

// uniqueID returns base, or base with the first free numeric suffix.
func (r *submissionRepository) uniqueID(ctx context.Context, conn dialect.ExecQuerier, base string) (string, error) {
	id := base
	for n := 2; ; n++ {
		taken, err := r.exists(ctx, conn, id)
		if err != nil {
			return "", classify("check submission id", err)
		}
		if !taken {
			return id, nil
		}
		if n > maxIDSuffix {
			return "", common.StorageConflict(fmt.Sprintf("no free submission id for %s", base), nil)
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}
}

func (r *submissionRepository) exists(ctx context.Context, conn dialect.ExecQuerier, id string) (bool, error) {
	b := r.db.builder()
	q := b.Select("submission_id").From(b.Table(tableSubmissions)).
		Where(entsql.EQ("submission_id", id)).Limit(1)
	found := false
	err := query(ctx, conn, q, func(rows *entsql.Rows) error {
		found = true
		return nil
	})
	return found, err
}

func (r *submissionRepository) insertSubmission(ctx context.Context, conn dialect.ExecQuerier, rec *entity.Record, id string, now time.Time) error {
	q := r.db.builder().Insert(tableSubmissions).Columns(submissionColumns...).Values(
		id, rec.UUID, rec.ShortRef, rec.FileHash, rec.PDFFilename,
		rec.ScannedAt.UTC(), now, rec.ProjectID, rec.Owner, rec.SourceOrganism,
		rec.SequencingType, rec.SampleType, len(rec.Samples),
	)
	return exec(ctx, conn, q, nil)
}

func (r *submissionRepository) insertSamples(ctx context.Context, conn dialect.ExecQuerier, id string, samples []entity.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	q := r.db.builder().Insert(tableSamples).Columns(sampleColumns...)
	for _, s := range samples {
		q.Values(id, s.Index, s.Name, s.VolumeUL, s.QubitConc, s.NanodropConc, s.A260280, s.A260230)
	}
	return exec(ctx, conn, q, nil)
}

func (r *submissionRepository) insertInfo(ctx context.Context, conn dialect.ExecQuerier, id string, info []entity.InfoEntry) error {
	if len(info) == 0 {
		return nil
	}
	q := r.db.builder().Insert(tableInfo).Columns("submission_id", "key", "value")
	for _, e := range info {
		q.Values(id, e.Key, e.Value)
	}
	return exec(ctx, conn, q, nil)
}

// FindByID returns the full record for a submission id or uuid.
func (r *submissionRepository) FindByID(ctx context.Context, id string) (*entity.Record, error) {
	conn := r.db.Driver
	sub, err := r.findOne(ctx, conn, entsql.Or(entsql.EQ("submission_id", id), entsql.EQ("uuid", id)))
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			r.logger.Error("failed to load submission", "submission_id", id, "error", err)
		}
		return nil, classify("find submission", err)
	}
	samples, err := r.samplesFor(ctx, conn, sub.SubmissionID)
	if err != nil {
		return nil, classify("load samples", err)
	}
	info, err := r.infoFor(ctx, conn, sub.SubmissionID)
	if err != nil {
		return nil, classify("load submission info", err)
	}
	return &entity.Record{
		Submission: *sub,
		Samples:    samples[sub.SubmissionID],
		Info:       info[sub.SubmissionID],
	}, nil
}

func (r *submissionRepository) FindByHash(ctx context.Context, fileHash string) (*entity.Submission, error) {
	sub, err := r.findOne(ctx, r.db.Driver, entsql.EQ("file_hash", fileHash))
	if err != nil {
		return nil, classify("find by hash", err)
	}
	return sub, nil
}

func (r *submissionRepository) findOne(ctx context.Context, conn dialect.ExecQuerier, where *entsql.Predicate) (*entity.Submission, error) {
	b := r.db.builder()
	q := b.Select(submissionColumns...).From(b.Table(tableSubmissions)).Where(where).Limit(1)
	var out *entity.Submission
	err := query(ctx, conn, q, func(rows *entsql.Rows) error {
		s, err := scanSubmission(rows)
		out = &s
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, common.NotFound("submission not found")
	}
	return out, nil
}

// List returns submissions newest first.
func (r *submissionRepository) List(ctx context.Context, filter ListFilter) ([]entity.Submission, error) {
	var where *entsql.Predicate
	if filter.ProjectID != "" {
		where = entsql.EQ("project_id", filter.ProjectID)
	}
	limit := filter.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	out, err := r.listWhere(ctx, where, limit)
	if err != nil {
		r.logger.Error("failed to list submissions", "project_id", filter.ProjectID, "error", err)
		return nil, classify("list submissions", err)
	}
	return out, nil
}

// Search matches text case-insensitively against project, owner, organism,
// filename, submission id and every info value.
func (r *submissionRepository) Search(ctx context.Context, text string) ([]entity.Submission, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return r.List(ctx, ListFilter{Limit: -1})
	}
	b := r.db.builder()
	infoHits := b.Select("submission_id").From(b.Table(tableInfo)).Where(entsql.ContainsFold("value", text))
	where := entsql.Or(
		entsql.ContainsFold("project_id", text),
		entsql.ContainsFold("owner", text),
		entsql.ContainsFold("source_organism", text),
		entsql.ContainsFold("pdf_filename", text),
		entsql.ContainsFold("submission_id", text),
		entsql.In("submission_id", infoHits),
	)
	out, err := r.listWhere(ctx, where, -1)
	if err != nil {
		r.logger.Error("failed to search submissions", "query", text, "error", err)
		return nil, classify("search submissions", err)
	}
	return out, nil
}

func (r *submissionRepository) listWhere(ctx context.Context, where *entsql.Predicate, limit int) ([]entity.Submission, error) {
	b := r.db.builder()
	q := b.Select(submissionColumns...).From(b.Table(tableSubmissions)).
		OrderExpr(newestFirst...)
	if where != nil {
		q.Where(where)
	}
	if limit > 0 {
		q.Limit(limit)
	}
	out := []entity.Submission{}
	err := query(ctx, r.db.Driver, q, func(rows *entsql.Rows) error {
		s, err := scanSubmission(rows)
		out = append(out, s)
		return err
	})
	return out, err
}

// Delete removes a submission; samples and info entries go with it.
// Update applies patch to the submission stored under id (submission id or
// uuid) in one transaction and returns the stored record.
func (r *submissionRepository) Update(ctx context.Context, id string, patch SubmissionPatch) (*entity.Record, error) {
	if patch.Empty() {
		return nil, common.InvalidInput("nothing to update", nil)
	}
	var subID string
	err := r.db.withRetry(ctx, "update submission", func(ctx context.Context) error {
		var err error
		subID, err = r.update(ctx, id, patch)
		return err
	})
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			r.logger.Error("failed to update submission", "submission_id", id, "error", err)
		}
		return nil, err
	}
	r.logger.Info("submission updated", "submission_id", subID)
	return r.FindByID(ctx, subID)
}

func (r *submissionRepository) update(ctx context.Context, id string, patch SubmissionPatch) (string, error) {
	if r.db.cfg.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.db.cfg.TxTimeout)
		defer cancel()
	}
	tx, err := r.db.Driver.Tx(ctx)
	if err != nil {
		return "", classify("begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	sub, err := r.findOne(ctx, tx, entsql.Or(entsql.EQ("submission_id", id), entsql.EQ("uuid", id)))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.NotFound(fmt.Sprintf("submission %s not found", id))
		}
		return "", classify("find submission", err)
	}

	q := r.db.builder().Update(tableSubmissions).Where(entsql.EQ("submission_id", sub.SubmissionID))
	setOrClear(q, "project_id", patch.ProjectID)
	setOrClear(q, "owner", patch.Owner)
	setOrClear(q, "source_organism", patch.SourceOrganism)
	if err := exec(ctx, tx, q, nil); err != nil {
		return "", classify("update submission", err)
	}
	if err := tx.Commit(); err != nil {
		return "", classify("commit", err)
	}
	committed = true
	return sub.SubmissionID, nil
}

func setOrClear(q *entsql.UpdateBuilder, column string, v *string) {
	switch {
	case v == nil:
	case *v == "":
		q.SetNull(column)
	default:
		q.Set(column, *v)
	}
}

func (r *submissionRepository) Delete(ctx context.Context, id string) error {
	err := r.db.withRetry(ctx, "delete submission", func(ctx context.Context) error {
		q := r.db.builder().Delete(tableSubmissions).Where(entsql.EQ("submission_id", id))
		var res stdsql.Result
		if err := exec(ctx, r.db.Driver, q, &res); err != nil {
			return classify("delete submission", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return classify("delete submission", err)
		}
		if n == 0 {
			return common.NotFound(fmt.Sprintf("submission %s not found", id))
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			r.logger.Error("failed to delete submission", "submission_id", id, "error", err)
		}
		return err
	}
	r.logger.Info("submission deleted", "submission_id", id)
	return nil
}

// ExportAll loads every submission with its children, oldest first.
func (r *submissionRepository) ExportAll(ctx context.Context) ([]entity.Record, error) {
	b := r.db.builder()
	q := b.Select(submissionColumns...).From(b.Table(tableSubmissions)).
		OrderExpr(oldestFirst...)
	var subs []entity.Submission
	err := query(ctx, r.db.Driver, q, func(rows *entsql.Rows) error {
		s, err := scanSubmission(rows)
		subs = append(subs, s)
		return err
	})
	if err != nil {
		return nil, classify("export submissions", err)
	}
	samples, err := r.samplesFor(ctx, r.db.Driver)
	if err != nil {
		return nil, classify("export samples", err)
	}
	info, err := r.infoFor(ctx, r.db.Driver)
	if err != nil {
		return nil, classify("export submission info", err)
	}
	out := make([]entity.Record, len(subs))
	for i, s := range subs {
		out[i] = entity.Record{Submission: s, Samples: samples[s.SubmissionID], Info: info[s.SubmissionID]}
	}
	return out, nil
}

// samplesFor loads samples grouped by submission id, for all submissions
// when ids is empty.
func (r *submissionRepository) samplesFor(ctx context.Context, conn dialect.ExecQuerier, ids ...string) (map[string][]entity.Sample, error) {
	b := r.db.builder()
	q := b.Select(sampleColumns...).From(b.Table(tableSamples)).OrderBy("submission_id", "sample_index")
	if len(ids) > 0 {
		q.Where(entsql.In("submission_id", anys(ids)...))
	}
	out := map[string][]entity.Sample{}
	err := query(ctx, conn, q, func(rows *entsql.Rows) error {
		var (
			id                                 string
			s                                  entity.Sample
			vol, qubit, nano, a260280, a260230 stdsql.NullFloat64
		)
		if err := rows.Scan(&id, &s.Index, &s.Name, &vol, &qubit, &nano, &a260280, &a260230); err != nil {
			return err
		}
		s.VolumeUL, s.QubitConc, s.NanodropConc = nullFloat(vol), nullFloat(qubit), nullFloat(nano)
		s.A260280, s.A260230 = nullFloat(a260280), nullFloat(a260230)
		out[id] = append(out[id], s)
		return nil
	})
	return out, err
}

func (r *submissionRepository) infoFor(ctx context.Context, conn dialect.ExecQuerier, ids ...string) (map[string][]entity.InfoEntry, error) {
	b := r.db.builder()
	q := b.Select("submission_id", "key", "value").From(b.Table(tableInfo)).OrderBy("submission_id", "key")
	if len(ids) > 0 {
		q.Where(entsql.In("submission_id", anys(ids)...))
	}
	out := map[string][]entity.InfoEntry{}
	err := query(ctx, conn, q, func(rows *entsql.Rows) error {
		var id string
		var e entity.InfoEntry
		if err := rows.Scan(&id, &e.Key, &e.Value); err != nil {
			return err
		}
		out[id] = append(out[id], e)
		return nil
	})
	return out, err
}

func scanSubmission(rows *entsql.Rows) (entity.Submission, error) {
	var (
		s                                             entity.Submission
		project, owner, organism, seqType, sampleType stdsql.NullString
	)
	err := rows.Scan(
		&s.SubmissionID, &s.UUID, &s.ShortRef, &s.FileHash, &s.PDFFilename,
		&s.ScannedAt, &s.CreatedAt, &project, &owner, &organism,
		&seqType, &sampleType, &s.TotalSamples,
	)
	s.ProjectID, s.Owner, s.SourceOrganism = nullString(project), nullString(owner), nullString(organism)
	s.SequencingType, s.SampleType = nullString(seqType), nullString(sampleType)
	s.ScannedAt, s.CreatedAt = s.ScannedAt.UTC(), s.CreatedAt.UTC()
	return s, err
}

type querier interface {
	Query() (string, []any)
}

func query(ctx context.Context, conn dialect.ExecQuerier, q querier, each func(*entsql.Rows) error) error {
	stmt, args := q.Query()
	rows := &entsql.Rows{}
	if err := conn.Query(ctx, stmt, args, rows); err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := each(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func exec(ctx context.Context, conn dialect.ExecQuerier, q querier, res *stdsql.Result) error {
	stmt, args := q.Query()
	if res == nil {
		return conn.Exec(ctx, stmt, args, nil)
	}
	return conn.Exec(ctx, stmt, args, res)
}

func nullString(ns stdsql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullFloat(nf stdsql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	return &nf.Float64
}

func anys(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
