package repository

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"sort"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/submissions-tracker/internal/entity"
)

// Statistics aggregates the whole store. Concentration figures cover every
// non-null value across all samples.
func (r *submissionRepository) Statistics(ctx context.Context) (*entity.Statistics, error) {
	var (
		st  entity.Statistics
		err error
	)
	if st.TotalSubmissions, err = r.scalar(ctx, entsql.Count("*"), tableSubmissions); err != nil {
		return nil, classify("count submissions", err)
	}
	if st.TotalSamples, err = r.scalar(ctx, entsql.Count("*"), tableSamples); err != nil {
		return nil, classify("count samples", err)
	}
	if st.DistinctProjects, err = r.scalar(ctx, entsql.Count(entsql.Distinct("project_id")), tableSubmissions); err != nil {
		return nil, classify("count projects", err)
	}
	if st.UniqueOwners, err = r.scalar(ctx, entsql.Count(entsql.Distinct("owner")), tableSubmissions); err != nil {
		return nil, classify("count owners", err)
	}
	if st.Projects, err = r.Projects(ctx); err != nil {
		return nil, err
	}
	if st.Qubit, err = r.aggregate(ctx, "qubit_conc", nil); err != nil {
		return nil, classify("aggregate qubit", err)
	}
	if st.Nanodrop, err = r.aggregate(ctx, "nanodrop_conc", nil); err != nil {
		return nil, classify("aggregate nanodrop", err)
	}
	if st.Recent, err = r.List(ctx, ListFilter{Limit: recentLimit}); err != nil {
		return nil, err
	}
	return &st, nil
}

// Projects counts submissions and samples per project id, busiest first.
func (r *submissionRepository) Projects(ctx context.Context) ([]entity.ProjectCount, error) {
	b := r.db.builder()
	q := b.Select("project_id", entsql.Count("*"), entsql.Sum("total_samples")).
		From(b.Table(tableSubmissions)).
		Where(entsql.NotNull("project_id")).
		GroupBy("project_id")
	out := []entity.ProjectCount{}
	err := query(ctx, r.db.Driver, q, func(rows *entsql.Rows) error {
		var (
			pc      entity.ProjectCount
			samples stdsql.NullInt64
		)
		if err := rows.Scan(&pc.ProjectID, &pc.Submissions, &samples); err != nil {
			return err
		}
		pc.Samples = int(samples.Int64)
		out = append(out, pc)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to count projects", "error", err)
		return nil, classify("count projects", err)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Submissions != out[j].Submissions {
			return out[i].Submissions > out[j].Submissions
		}
		return out[i].ProjectID < out[j].ProjectID
	})
	return out, nil
}

// SampleStats summarises the samples of one submission.
func (r *submissionRepository) SampleStats(ctx context.Context, id string) (*entity.SampleStats, error) {
	sub, err := r.findOne(ctx, r.db.Driver, entsql.Or(entsql.EQ("submission_id", id), entsql.EQ("uuid", id)))
	if err != nil {
		return nil, classify("find submission", err)
	}
	own := entsql.EQ("submission_id", sub.SubmissionID)
	st := &entity.SampleStats{SubmissionID: sub.SubmissionID}
	cols := []struct {
		name string
		dst  *entity.Aggregate
	}{
		{"volume_ul", &st.Volume},
		{"qubit_conc", &st.Qubit},
		{"nanodrop_conc", &st.Nanodrop},
		{"a260_280_ratio", &st.A260280},
	}
	for _, c := range cols {
		if *c.dst, err = r.aggregate(ctx, c.name, own); err != nil {
			return nil, classify("aggregate "+c.name, err)
		}
	}
	b := r.db.builder()
	q := b.Select(entsql.Count("*")).From(b.Table(tableSamples)).Where(own)
	err = query(ctx, r.db.Driver, q, func(rows *entsql.Rows) error {
		return rows.Scan(&st.SampleCount)
	})
	if err != nil {
		return nil, classify("count samples", err)
	}
	return st, nil
}

func (r *submissionRepository) scalar(ctx context.Context, expr, table string) (int, error) {
	b := r.db.builder()
	q := b.Select(expr).From(b.Table(table))
	var n int
	err := query(ctx, r.db.Driver, q, func(rows *entsql.Rows) error {
		return rows.Scan(&n)
	})
	return n, err
}

// aggregate computes count/min/avg/max of a sample column over non-null
// values, optionally restricted by where.
func (r *submissionRepository) aggregate(ctx context.Context, column string, where *entsql.Predicate) (entity.Aggregate, error) {
	b := r.db.builder()
	pred := entsql.NotNull(column)
	if where != nil {
		pred = entsql.And(pred, where)
	}
	q := b.Select(entsql.Count(column), entsql.Min(column), entsql.Avg(column), entsql.Max(column)).
		From(b.Table(tableSamples)).
		Where(pred)
	var (
		agg         entity.Aggregate
		mn, avg, mx stdsql.NullFloat64
	)
	err := query(ctx, r.db.Driver, q, func(rows *entsql.Rows) error {
		return rows.Scan(&agg.Count, &mn, &avg, &mx)
	})
	if err != nil {
		return entity.Aggregate{}, fmt.Errorf("%s: %w", column, err)
	}
	agg.Min, agg.Avg, agg.Max = nullFloat(mn), nullFloat(avg), nullFloat(mx)
	return agg, nil
}
