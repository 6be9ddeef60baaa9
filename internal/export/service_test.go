package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/submissions-tracker/constants"
	"github.com/joseph-ayodele/submissions-tracker/internal/common"
	"github.com/joseph-ayodele/submissions-tracker/internal/entity"
)

type fakeSource struct {
	recs []entity.Record
	err  error
}

func (f fakeSource) ExportAll(context.Context) ([]entity.Record, error) { return f.recs, f.err }

func ptr[T any](v T) *T { return &v }

func testRecords() []entity.Record {
	at := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	return []entity.Record{
		{
			Submission: entity.Submission{
				SubmissionID: "HTSFJL147_20240305_140709",
				UUID:         "3f2b8c1e-7d4a-4b5e-9c6f-0a1b2c3d4e5f",
				ShortRef:     "3f2b8c1e",
				FileHash:     "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
				PDFFilename:  "form.pdf",
				ScannedAt:    at,
				CreatedAt:    at.Add(time.Second),
				ProjectID:    ptr("HTSF--JL-147"),
				Owner:        ptr("Joshua Leon"),
				TotalSamples: 2,
			},
			Samples: []entity.Sample{
				{Index: 1, Name: "S1", VolumeUL: ptr(20.0), QubitConc: ptr(12.5), A260230: ptr(2.01)},
				{Index: 2, Name: "S3", VolumeUL: ptr(25.0), QubitConc: ptr(8.4)},
			},
			Info: []entity.InfoEntry{{Key: "sample_buffer", Value: "EB"}},
		},
		{
			Submission: entity.Submission{
				SubmissionID: "SUBMISSION_20240305_150000",
				UUID:         "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d",
				ShortRef:     "9a8b7c6d",
				FileHash:     "486ea46224d1bb4fb680f34f7c9ad96a8f24ec88be73ea8e5a6c65260e9cb8a7",
				ScannedAt:    at.Add(time.Hour),
				CreatedAt:    at.Add(time.Hour),
			},
		},
	}
}

func newTestService(t *testing.T, src Source) *Service {
	t.Helper()
	s, err := NewService(src, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	s.now = func() time.Time { return time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestExportJSON(t *testing.T) {
	s := newTestService(t, fakeSource{recs: testRecords()})
	out, err := s.Export(context.Background(), constants.ExportJSON)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	var doc struct {
		ExportedAt       string `json:"exported_at"`
		TotalSubmissions int    `json:"total_submissions"`
		Submissions      []struct {
			SubmissionID string           `json:"submission_id"`
			ProjectID    *string          `json:"project_id"`
			Samples      []map[string]any `json:"samples"`
			Info         []map[string]any `json:"info"`
		} `json:"submissions"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.TotalSubmissions != 2 || doc.ExportedAt != "2024-04-01T00:00:00Z" {
		t.Errorf("envelope = %+v", doc)
	}
	first := doc.Submissions[0]
	if first.SubmissionID != "HTSFJL147_20240305_140709" || *first.ProjectID != "HTSF--JL-147" {
		t.Errorf("first = %+v", first)
	}
	if len(first.Samples) != 2 || first.Samples[1]["a260_230_ratio"] != nil {
		t.Errorf("samples = %v", first.Samples)
	}
	second := doc.Submissions[1]
	if second.ProjectID != nil || second.Samples == nil || len(second.Samples) != 0 || second.Info == nil {
		t.Errorf("second = %+v", second)
	}
}

func TestExportJSONEmpty(t *testing.T) {
	s := newTestService(t, fakeSource{})
	out, err := s.ExportJSON(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(out, []byte(`"submissions": []`)) {
		t.Errorf("empty export = %s", out)
	}
}

func TestExportJSONRejectsInvalidRecords(t *testing.T) {
	recs := testRecords()
	recs[0].FileHash = "short"
	s := newTestService(t, fakeSource{recs: recs})
	if _, err := s.ExportJSON(context.Background()); common.CodeOf(err) != common.CodeInternal {
		t.Errorf("err = %v, want schema failure", err)
	}
}

func TestExportSourceError(t *testing.T) {
	boom := errors.New("boom")
	s := newTestService(t, fakeSource{err: boom})
	if _, err := s.Export(context.Background(), constants.ExportXLSX); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestExportXLSX(t *testing.T) {
	s := newTestService(t, fakeSource{recs: testRecords()})
	out, err := s.Export(context.Background(), constants.ExportXLSX)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	subs, err := f.GetRows(sheetSubmissions)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 3 || subs[1][0] != "HTSFJL147_20240305_140709" || subs[1][3] != "Joshua Leon" {
		t.Errorf("submissions sheet = %v", subs)
	}
	samples, err := f.GetRows(sheetSamples)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 3 || samples[1][2] != "S1" || samples[1][4] != "12.5" {
		t.Errorf("samples sheet = %v", samples)
	}
	info, _ := f.GetRows(sheetInfo)
	if len(info) != 2 || info[1][2] != "EB" {
		t.Errorf("info sheet = %v", info)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    constants.ExportFormat
		wantErr bool
	}{
		{"json", constants.ExportJSON, false},
		{" XLSX ", constants.ExportXLSX, false},
		{"", constants.ExportJSON, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
	if _, err := newTestService(t, fakeSource{}).Export(context.Background(), "csv"); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("Export(csv) = %v", err)
	}
}
