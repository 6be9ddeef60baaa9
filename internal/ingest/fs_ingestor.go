package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/submissions-tracker/constants"
	"github.com/joseph-ayodele/submissions-tracker/internal/common"
)

// FSIngestor reads documents from the local filesystem.
type FSIngestor struct {
	Proc        FileProcessor
	AllowedExts map[string]struct{} // lowercased sans '.'; nil -> default set
	Workers     int
	Logger      *slog.Logger
}

var _ Ingestor = (*FSIngestor)(nil)

func NewFSIngestor(proc FileProcessor, workers int, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &FSIngestor{Proc: proc, Workers: workers, Logger: logger}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path, Status: constants.StatusFailed}

	abs, err := filepath.Abs(path)
	if err != nil {
		i.Logger.Error("abs path error", "path", path, "error", err)
		return out, err
	}
	out.SourcePath = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !allowedIn(abs, i.AllowedExts) {
		i.Logger.Warn("unsupported or missing extension", "path", abs, "ext", ext)
		return out, common.InvalidInput(fmt.Sprintf("unsupported or missing extension %q", ext), nil)
	}

	res, err := i.Proc.ProcessFile(ctx, abs)
	if err != nil {
		return out, err
	}
	out.Status = res.Status
	out.SubmissionID = res.SubmissionID
	out.Warnings = len(res.Warnings)
	if res.Record != nil {
		out.HashHex = res.Record.FileHash
		out.Samples = res.Record.TotalSamples
	}
	return out, nil
}

// IngestDirectory walks root, skips hidden entries if requested, and
// processes matching files in parallel. Per-file failures are recorded in the
// results and do not stop the walk. Results are sorted by path.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.InvalidInput("root_path is required", nil)
	}

	var (
		mu      sync.Mutex
		results []IngestionResult
		stats   DirStats
	)
	record := func(r IngestionResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			r.Status = constants.StatusFailed
			r.Err = err.Error()
			stats.Failed++
		} else if r.Status == constants.StatusDuplicate {
			stats.Duplicates++
		} else {
			stats.Created++
		}
		results = append(results, r)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.Workers)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		mu.Lock()
		stats.Scanned++
		mu.Unlock()
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			record(IngestionResult{SourcePath: path}, walkErr)
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !allowedIn(path, i.AllowedExts) {
			return nil
		}
		mu.Lock()
		stats.Matched++
		mu.Unlock()

		g.Go(func() error {
			r, err := i.IngestPath(gctx, path)
			record(r, err)
			return nil
		})
		return nil
	})
	_ = g.Wait()

	sort.Slice(results, func(a, b int) bool { return results[a].SourcePath < results[b].SourcePath })
	i.Logger.Info("ingest.directory.done",
		"root", root,
		"matched", stats.Matched,
		"created", stats.Created,
		"duplicates", stats.Duplicates,
		"failed", stats.Failed,
	)
	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		return results, stats, fmt.Errorf("walk: %w", walkErr)
	}
	if err := ctx.Err(); err != nil {
		return results, stats, err
	}
	return results, stats, nil
}
