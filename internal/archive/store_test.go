package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/joseph-ayodele/submissions-tracker/internal/common"
)

const hash = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

func TestKey(t *testing.T) {
	cases := []struct {
		filename string
		want     string
	}{
		{"form.PDF", "documents/9f/" + hash + ".pdf"},
		{"form.txt", "documents/9f/" + hash + ".txt"},
		{"noext", "documents/9f/" + hash + ".bin"},
	}
	for _, tc := range cases {
		got, err := Key(hash, tc.filename)
		if err != nil || got != tc.want {
			t.Errorf("Key(%q) = %q, %v; want %q", tc.filename, got, err, tc.want)
		}
	}
	if _, err := Key("", "a.pdf"); err == nil {
		t.Fatalf("expected error for empty hash")
	}
}

func TestSanitizeKey(t *testing.T) {
	for _, bad := range []string{"", " ", "/etc/passwd", "../x", "a/../../x"} {
		if _, err := sanitizeKey(bad); err == nil {
			t.Errorf("sanitizeKey(%q) accepted", bad)
		}
	}
	if got, err := sanitizeKey("documents/ab/x.pdf"); err != nil || got != "documents/ab/x.pdf" {
		t.Fatalf("sanitizeKey = %q, %v", got, err)
	}
}

func TestFSStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	if s.Driver() != DriverFilesystem {
		t.Fatalf("driver = %s", s.Driver())
	}
	key, _ := Key(hash, "form.pdf")

	obj, err := s.Put(ctx, key, []byte("%PDF-1.7 body"), "application/pdf")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if obj.Size != 13 || obj.ETag == "" {
		t.Fatalf("unexpected object %+v", obj)
	}
	// second put keeps the first copy
	if _, err := s.Put(ctx, key, []byte("other"), "application/pdf"); err != nil {
		t.Fatalf("second put: %v", err)
	}
	_, data, err := s.Get(ctx, key)
	if err != nil || string(data) != "%PDF-1.7 body" {
		t.Fatalf("get = %q, %v", data, err)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete twice: %v", err)
	}
	if _, _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
	if _, err := s.Put(ctx, "../escape", nil, ""); err == nil {
		t.Fatalf("expected traversal rejection")
	}
}

// fakeS3 serves the handful of path-style S3 calls the store makes.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	puts    int
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	empty := func(code int) *http.Response {
		return &http.Response{StatusCode: code, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}
	}
	switch req.Method {
	case http.MethodHead:
		body, ok := f.objects[key]
		if !ok {
			return empty(http.StatusNotFound), nil
		}
		resp := empty(http.StatusOK)
		resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
		resp.Header.Set("Content-Type", f.types[key])
		resp.Header.Set("ETag", `"etag"`)
		resp.Header.Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		return resp, nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		f.objects[key] = body
		f.types[key] = req.Header.Get("Content-Type")
		f.puts++
		resp := empty(http.StatusOK)
		resp.Header.Set("ETag", `"etag"`)
		return resp, nil
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			return empty(http.StatusNotFound), nil
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(body)), Header: http.Header{
			"Content-Length": {strconv.Itoa(len(body))},
			"Content-Type":   {f.types[key]},
			"Etag":           {`"etag"`},
		}}, nil
	case http.MethodDelete:
		delete(f.objects, key)
		return empty(http.StatusNoContent), nil
	}
	return empty(http.StatusNotImplemented), nil
}

// decodeChunked unwraps a single chunk aws-chunked body.
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	n, err := strconv.ParseInt(parts[0], 16, 64)
	if err != nil || n <= 0 || int64(len(parts[1])) != n || parts[2] != "0" {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newFakeS3Store(t *testing.T) (*S3Store, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	if err != nil {
		t.Fatalf("aws config: %v", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String("https://archive.s3.test")
		o.HTTPClient = &http.Client{Transport: fake}
		o.UsePathStyle = true
		o.RetryMaxAttempts = 1
	})
	return NewS3StoreFromClient(client, "submissions"), fake
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	s, fake := newFakeS3Store(t)
	if s.Driver() != DriverS3 {
		t.Fatalf("driver = %s", s.Driver())
	}
	key, _ := Key(hash, "form.txt")

	if _, _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing: %v", err)
	}
	obj, err := s.Put(ctx, key, []byte("hello"), "text/plain; charset=utf-8")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if obj.Key != key || obj.Size != 5 {
		t.Fatalf("unexpected object %+v", obj)
	}
	if _, err := s.Put(ctx, key, []byte("hello"), "text/plain; charset=utf-8"); err != nil {
		t.Fatalf("second put: %v", err)
	}
	if fake.puts != 1 {
		t.Fatalf("existing object was rewritten, puts = %d", fake.puts)
	}

	got, data, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "hello" || got.ETag != "etag" {
		t.Fatalf("get = %q %+v", data, got)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := fake.objects[key]; ok {
		t.Fatalf("object still present")
	}
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	if _, err := NewS3Store(context.Background(), S3Config{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestOpenNone(t *testing.T) {
	s, err := Open(context.Background(), common.ArchiveConfig{Driver: "none"})
	if err != nil || s != nil {
		t.Fatalf("Open(none) = %v, %v", s, err)
	}
	if _, err := Open(context.Background(), common.ArchiveConfig{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	store, err := Open(context.Background(), common.ArchiveConfig{Driver: "fs", Dir: t.TempDir()})
	if err != nil || store.Driver() != DriverFilesystem {
		t.Fatalf("Open(fs) = %v, %v", store, err)
	}
}
