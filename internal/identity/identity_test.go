package identity

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 5, 14, 7, 9, 500_000_000, time.UTC)
}

func TestGenerate(t *testing.T) {
	fixed := uuid.MustParse("3f2b8c1e-7d4a-4b5e-9c6f-0a1b2c3d4e5f")
	g := NewGenerator(WithClock(fixedClock), WithUUIDSource(func() uuid.UUID { return fixed }))

	id := g.Generate([]byte("hello"), "/tmp/in/form.pdf", "HTSF--JL-147")

	if id.FileHash != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("file hash = %s", id.FileHash)
	}
	if id.UUID != fixed.String() || id.ShortRef != "3f2b8c1e" {
		t.Errorf("uuid = %s short = %s", id.UUID, id.ShortRef)
	}
	if id.SubmissionID != "HTSFJL147_20240305_140709" {
		t.Errorf("submission id = %s", id.SubmissionID)
	}
	if id.Filename != "form.pdf" {
		t.Errorf("filename = %s", id.Filename)
	}
	if !id.ScannedAt.Equal(time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)) {
		t.Errorf("scanned at = %s", id.ScannedAt)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	data := []byte("%PDF-1.4 some bytes")
	a := Fingerprint(data)
	b := NewGenerator().Generate(data, "x.pdf", "P1").FileHash
	c := NewGenerator().Generate(data, "y.pdf", "").FileHash
	if a != b || b != c {
		t.Errorf("fingerprints differ: %s %s %s", a, b, c)
	}
	if len(a) != 64 {
		t.Errorf("len = %d", len(a))
	}
	if Fingerprint(append(data, ' ')) == a {
		t.Error("different bytes gave the same fingerprint")
	}
}

func TestUUIDsAreFresh(t *testing.T) {
	g := NewGenerator()
	a := g.Generate([]byte("x"), "", "")
	b := g.Generate([]byte("x"), "", "")
	if a.UUID == b.UUID {
		t.Error("uuid reused")
	}
	if !strings.HasPrefix(a.UUID, a.ShortRef) || len(a.ShortRef) != 8 {
		t.Errorf("short ref %q not a prefix of %q", a.ShortRef, a.UUID)
	}
}

func TestSubmissionID(t *testing.T) {
	at := fixedClock()
	tests := []struct {
		project string
		want    string
	}{
		{"HTSF--JL-147", "HTSFJL147_20240305_140709"},
		{"", "SUBMISSION_20240305_140709"},
		{"--//--", "SUBMISSION_20240305_140709"},
		{"ab cd_ef", "abcdef_20240305_140709"},
		{strings.Repeat("A1", 20), strings.Repeat("A1", 16) + "_20240305_140709"},
	}
	for _, tt := range tests {
		t.Run(tt.project, func(t *testing.T) {
			if got := SubmissionID(tt.project, at); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
