package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/submissions-tracker/constants"
	"github.com/joseph-ayodele/submissions-tracker/internal/common"
	"github.com/joseph-ayodele/submissions-tracker/internal/fixtures"
)

// run executes one CLI invocation the way main does and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := &app{out: &out}
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	a.close()
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("DATABASE_PATH", filepath.Join(dir, "submissions.db"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("ARCHIVE_DRIVER", "fs")
	t.Setenv("ARCHIVE_DIR", filepath.Join(dir, "archive"))
	return dir
}

func TestCLILifecycle(t *testing.T) {
	dir := setupEnv(t)
	form := filepath.Join(dir, "HTSF-JL-147.txt")
	if err := os.WriteFile(form, fixtures.Scenario(), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	out, err := run(t, "process", form)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	var res struct {
		Status       constants.ProcessStatus `json:"status"`
		SubmissionID string                  `json:"submission_id"`
		Warnings     []json.RawMessage       `json:"warnings"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if res.Status != constants.StatusCreated || len(res.Warnings) != 1 {
		t.Fatalf("process result = %+v", res)
	}

	out, err = run(t, "check", form)
	if err != nil || !strings.Contains(out, `"is_duplicate": true`) {
		t.Fatalf("check = %s, %v", out, err)
	}

	out, err = run(t, "list")
	if err != nil || !strings.Contains(out, res.SubmissionID) || !strings.Contains(out, "Joshua Leon") {
		t.Fatalf("list = %s, %v", out, err)
	}

	out, err = run(t, "export", "--format", "json")
	if err != nil || !strings.Contains(out, `"total_submissions": 1`) {
		t.Fatalf("export = %s, %v", out, err)
	}

	out, err = run(t, "update", res.SubmissionID, "--owner", "Dana Cole", "--organism", "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	for _, want := range []string{`"owner": "Dana Cole"`, `"source_organism": null`, `"submission_id": "` + res.SubmissionID + `"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("update output missing %s:\n%s", want, out)
		}
	}
	_, err = run(t, "update", res.SubmissionID)
	if !errors.Is(err, common.ErrInvalidInput) || exitCode(err) != 2 {
		t.Fatalf("update without flags = %v (exit %d)", err, exitCode(err))
	}

	if _, err := run(t, "delete", res.SubmissionID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = run(t, "get", res.SubmissionID)
	if !errors.Is(err, common.ErrNotFound) || exitCode(err) != 3 {
		t.Fatalf("get after delete = %v (exit %d)", err, exitCode(err))
	}
}

func TestCLIProcessDirectory(t *testing.T) {
	dir := setupEnv(t)
	docs := filepath.Join(dir, "inbox")
	if err := os.MkdirAll(docs, 0o755); err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(filepath.Join(docs, "a.txt"), fixtures.Scenario(), 0o644)
	_ = os.WriteFile(filepath.Join(docs, "b.txt"), fixtures.Scenario(), 0o644)
	_ = os.WriteFile(filepath.Join(docs, "c.pdf"), []byte("not a pdf"), 0o644)

	out, err := run(t, "process", docs)
	if err != nil {
		t.Fatalf("process dir: %v", err)
	}
	var batch struct {
		Totals struct {
			Matched    int `json:"matched"`
			Created    int `json:"created"`
			Duplicates int `json:"duplicates"`
			Failed     int `json:"failed"`
		} `json:"totals"`
	}
	if err := json.Unmarshal([]byte(out), &batch); err != nil {
		t.Fatalf("decode: %v", err)
	}
	tot := batch.Totals
	if tot.Matched != 3 || tot.Created != 1 || tot.Duplicates != 1 || tot.Failed != 1 {
		t.Fatalf("totals = %+v", tot)
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errors.New("plain"), 1},
		{common.NotFound("x"), 3},
		{common.UnreadableDocument("x", nil), 2},
		{common.StorageUnavailable("x", nil), 4},
		{common.NewAppError(common.CodeInternal, "x", nil), 1},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Errorf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("DEBUG").String() != "DEBUG" || parseLevel("bogus").String() != "INFO" {
		t.Fatalf("parseLevel misbehaves")
	}
}
