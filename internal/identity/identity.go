package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
)

const (
	timestampLayout = "20060102_150405"
	fallbackPrefix  = "SUBMISSION"
	maxPrefixLen    = 32
	shortRefLen     = 8
)

var reNonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Identity is everything a submission is known by.
type Identity struct {
	FileHash     string
	UUID         string
	ShortRef     string
	SubmissionID string
	Filename     string
	ScannedAt    time.Time
}

type Generator struct {
	now     func() time.Time
	newUUID func() uuid.UUID
}

type Option func(*Generator)

// WithClock overrides the capture clock.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithUUIDSource overrides random UUID generation.
func WithUUIDSource(f func() uuid.UUID) Option {
	return func(g *Generator) { g.newUUID = f }
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{now: time.Now, newUUID: uuid.New}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate derives the identity of a document. The file hash depends on data
// alone; uuid and timestamp are fresh on every call.
func (g *Generator) Generate(data []byte, filename, projectID string) Identity {
	scanned := g.now().UTC().Truncate(time.Second)
	id := g.newUUID().String()
	name := ""
	if filename != "" {
		name = filepath.Base(filename)
	}
	return Identity{
		FileHash:     Fingerprint(data),
		UUID:         id,
		ShortRef:     id[:shortRefLen],
		SubmissionID: SubmissionID(projectID, scanned),
		Filename:     name,
		ScannedAt:    scanned,
	}
}

// Fingerprint returns the hex SHA-256 of data.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SubmissionID composes the readable id from the alphanumeric characters of
// projectID and the capture second.
func SubmissionID(projectID string, at time.Time) string {
	prefix := reNonAlnum.ReplaceAllString(projectID, "")
	if len(prefix) > maxPrefixLen {
		prefix = prefix[:maxPrefixLen]
	}
	if prefix == "" {
		prefix = fallbackPrefix
	}
	return prefix + "_" + at.Format(timestampLayout)
}
