package submissions

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/submissions-tracker/constants"
	"github.com/joseph-ayodele/submissions-tracker/internal/archive"
	"github.com/joseph-ayodele/submissions-tracker/internal/common"
	"github.com/joseph-ayodele/submissions-tracker/internal/fixtures"
	"github.com/joseph-ayodele/submissions-tracker/internal/identity"
	"github.com/joseph-ayodele/submissions-tracker/internal/pipeline"
	"github.com/joseph-ayodele/submissions-tracker/internal/repository"
	"github.com/joseph-ayodele/submissions-tracker/internal/textextract"
)

type countingRecorder struct {
	mu        sync.Mutex
	processed map[constants.ProcessStatus]int
	failed    map[string]int
	deleted   int
}

func (c *countingRecorder) Processed(status constants.ProcessStatus, _ int, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processed[status]++
}

func (c *countingRecorder) Failed(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed[code]++
}

func (c *countingRecorder) Deleted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted++
}

func newTestService(t *testing.T, opts ...Option) (*Service, *countingRecorder) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := repository.Open(ctx, repository.Config{
		Driver:     repository.DriverSQLite,
		Path:       filepath.Join(t.TempDir(), "submissions.db"),
		MaxRetries: 3,
	}, logger)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	clock := func() time.Time { return time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC) }
	proc := pipeline.NewProcessor(logger,
		textextract.NewExtractor(textextract.Config{}, logger),
		nil, nil,
		identity.NewGenerator(identity.WithClock(clock)),
	)
	rec := &countingRecorder{processed: map[constants.ProcessStatus]int{}, failed: map[string]int{}}
	opts = append([]Option{WithMetrics(rec)}, opts...)
	svc, err := NewService(proc, repository.NewSubmissionRepository(db, logger), logger, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, rec
}

func TestScenarioLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t)
	doc := fixtures.Scenario()

	first, err := svc.Process(ctx, doc, "HTSF-JL-147.txt")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if first.Status != constants.StatusCreated {
		t.Fatalf("status = %s", first.Status)
	}
	if first.Record.TotalSamples != 2 {
		t.Fatalf("total_samples = %d", first.Record.TotalSamples)
	}
	if len(first.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", first.Warnings)
	}
	if p := first.Record.ProjectID; p == nil || *p != "HTSF--JL-147" {
		t.Fatalf("project = %v", p)
	}
	if o := first.Record.Owner; o == nil || *o != "Joshua Leon" {
		t.Fatalf("owner = %v", o)
	}

	before, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if before.TotalSubmissions != 1 || before.TotalSamples != 2 {
		t.Fatalf("stats = %+v", before)
	}

	again, err := svc.Process(ctx, doc, "renamed.txt")
	if err != nil {
		t.Fatalf("Process again: %v", err)
	}
	if again.Status != constants.StatusDuplicate || again.SubmissionID != first.SubmissionID {
		t.Fatalf("resubmit = %s %s, want DUPLICATE %s", again.Status, again.SubmissionID, first.SubmissionID)
	}
	if len(again.Warnings) != 0 {
		t.Fatalf("duplicate carries warnings: %v", again.Warnings)
	}
	after, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if after.TotalSubmissions != before.TotalSubmissions || after.TotalSamples != before.TotalSamples {
		t.Fatalf("stats changed: %+v -> %+v", before, after)
	}

	got, err := svc.Get(ctx, first.SubmissionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Samples) != got.TotalSamples {
		t.Fatalf("rows %d != total_samples %d", len(got.Samples), got.TotalSamples)
	}

	if err := svc.Delete(ctx, first.SubmissionID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, first.SubmissionID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("Get after delete = %v, want NOT_FOUND", err)
	}
	if err := svc.Delete(ctx, first.SubmissionID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("second Delete = %v, want NOT_FOUND", err)
	}

	if rec.processed[constants.StatusCreated] != 1 || rec.processed[constants.StatusDuplicate] != 1 || rec.deleted != 1 {
		t.Fatalf("recorder = %+v", rec)
	}
}

func TestProcessUnreadable(t *testing.T) {
	svc, rec := newTestService(t)
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"binary", []byte{0x00, 0xff, 0x10, 0x00}},
		{"fake pdf", []byte("not really a pdf")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			filename := "form.txt"
			if tc.name == "fake pdf" {
				filename = "form.pdf"
			}
			_, err := svc.Process(context.Background(), tc.data, filename)
			if !errors.Is(err, common.ErrUnreadableDocument) {
				t.Fatalf("err = %v, want UNREADABLE_DOCUMENT", err)
			}
		})
	}
	if rec.failed[common.CodeUnreadableDocument] != len(cases) {
		t.Fatalf("failed = %v", rec.failed)
	}
	stats, err := svc.Statistics(context.Background())
	if err != nil || stats.TotalSubmissions != 0 {
		t.Fatalf("stats = %+v, %v", stats, err)
	}
}

func TestConcurrentSameDocument(t *testing.T) {
	svc, _ := newTestService(t)
	doc := fixtures.Scenario()

	var wg sync.WaitGroup
	results := make([]*ProcessResult, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Process(context.Background(), doc, "form.txt")
		}(i)
	}
	wg.Wait()

	created, dup := 0, 0
	for i, r := range results {
		if errs[i] != nil {
			t.Fatalf("Process %d: %v", i, errs[i])
		}
		switch r.Status {
		case constants.StatusCreated:
			created++
		case constants.StatusDuplicate:
			dup++
		}
	}
	if created != 1 || dup != 1 {
		t.Fatalf("created=%d duplicate=%d", created, dup)
	}
	if results[0].SubmissionID != results[1].SubmissionID {
		t.Fatalf("ids differ: %s %s", results[0].SubmissionID, results[1].SubmissionID)
	}
}

func TestCheckDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	doc := fixtures.Scenario()

	chk, err := svc.CheckDuplicate(ctx, doc)
	if err != nil || chk.IsDuplicate {
		t.Fatalf("before process = %+v, %v", chk, err)
	}
	if chk.FileHash != identity.Fingerprint(doc) {
		t.Fatalf("hash = %s", chk.FileHash)
	}
	res, err := svc.Process(ctx, doc, "form.txt")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	chk, err = svc.CheckDuplicate(ctx, doc)
	if err != nil || !chk.IsDuplicate || chk.SubmissionID != res.SubmissionID {
		t.Fatalf("after process = %+v, %v", chk, err)
	}
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	docs := []struct {
		project, owner string
	}{
		{"HTSF--JL-147", "Joshua Leon"},
		{"HTSF--JL-147", "Joshua Leon"},
		{"HTSF--AB-9", "Ada Byron"},
	}
	for i, d := range docs {
		row := fixtures.Grid("S1", "20", "12.5", "15.1", "1.80", "2.00")
		if i == 1 {
			row = fixtures.Grid("S9", "25", "10.0", "11.0", "1.90", "2.10")
		}
		if _, err := svc.Process(ctx, fixtures.Document(d.project, d.owner, row), "form.txt"); err != nil {
			t.Fatalf("Process %d: %v", i, err)
		}
	}

	all, err := svc.List(ctx, ListOptions{})
	if err != nil || len(all) != 3 {
		t.Fatalf("List = %d, %v", len(all), err)
	}
	jl, err := svc.List(ctx, ListOptions{ProjectID: "HTSF--JL-147"})
	if err != nil || len(jl) != 2 {
		t.Fatalf("List(project) = %d, %v", len(jl), err)
	}
	found, err := svc.Search(ctx, "byron")
	if err != nil || len(found) != 1 {
		t.Fatalf("Search = %d, %v", len(found), err)
	}

	projects, err := svc.Projects(ctx)
	if err != nil || len(projects) != 2 {
		t.Fatalf("Projects = %+v, %v", projects, err)
	}
	if projects[0].ProjectID != "HTSF--JL-147" || projects[0].Submissions != 2 {
		t.Fatalf("top project = %+v", projects[0])
	}

	ss, err := svc.SampleStats(ctx, jl[0].SubmissionID)
	if err != nil || ss.SampleCount != 1 {
		t.Fatalf("SampleStats = %+v, %v", ss, err)
	}
	if _, err := svc.SampleStats(ctx, ""); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("SampleStats(\"\") = %v", err)
	}

	out, err := svc.Export(ctx, constants.ExportJSON)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	var doc struct {
		TotalSubmissions int `json:"total_submissions"`
	}
	if err := json.Unmarshal(out, &doc); err != nil || doc.TotalSubmissions != 3 {
		t.Fatalf("export = %d, %v", doc.TotalSubmissions, err)
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	res, err := svc.Process(ctx, fixtures.Document("HTSF--JL-147", "Joshua Leon",
		fixtures.Grid("S1", "20", "12.5", "15.1", "1.80", "2.00")), "form.txt")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	rec, err := svc.Update(ctx, res.SubmissionID, repository.SubmissionPatch{Owner: ptr("Ada Byron")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if rec.Owner == nil || *rec.Owner != "Ada Byron" || rec.FileHash != res.Record.FileHash {
		t.Fatalf("updated record = %+v", rec.Submission)
	}
	if found, err := svc.Search(ctx, "byron"); err != nil || len(found) != 1 {
		t.Fatalf("Search after update = %d, %v", len(found), err)
	}
	chk, err := svc.CheckDuplicate(ctx, fixtures.Document("HTSF--JL-147", "Joshua Leon",
		fixtures.Grid("S1", "20", "12.5", "15.1", "1.80", "2.00")))
	if err != nil || chk.SubmissionID != res.SubmissionID {
		t.Fatalf("duplicate check after update = %+v, %v", chk, err)
	}

	bad := []struct {
		name  string
		id    string
		patch repository.SubmissionPatch
	}{
		{"no id", "", repository.SubmissionPatch{Owner: ptr("x")}},
		{"no fields", res.SubmissionID, repository.SubmissionPatch{}},
		{"owner too long", res.SubmissionID, repository.SubmissionPatch{Owner: ptr(strings.Repeat("x", 300))}},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Update(ctx, tc.id, tc.patch); !errors.Is(err, common.ErrInvalidInput) {
				t.Errorf("Update = %v, want invalid input", err)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestArchive(t *testing.T) {
	ctx := context.Background()
	store, err := archive.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	svc, _ := newTestService(t, WithArchive(store))
	doc := fixtures.Scenario()

	res, err := svc.Process(ctx, doc, "form.txt")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	data, err := svc.Document(ctx, res.SubmissionID)
	if err != nil || string(data) != string(doc) {
		t.Fatalf("Document = %d bytes, %v", len(data), err)
	}

	if err := svc.Delete(ctx, res.SubmissionID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	key, _ := archive.Key(res.Record.FileHash, "form.txt")
	if _, _, err := store.Get(ctx, key); !errors.Is(err, archive.ErrNotFound) {
		t.Fatalf("archived copy survived delete: %v", err)
	}
}

func TestDocumentWithoutArchive(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Document(context.Background(), "X"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
