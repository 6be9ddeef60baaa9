// Command submissions processes sequencing submission forms and queries the
// stored records.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/submissions-tracker/internal/archive"
	"github.com/joseph-ayodele/submissions-tracker/internal/common"
	"github.com/joseph-ayodele/submissions-tracker/internal/fields"
	"github.com/joseph-ayodele/submissions-tracker/internal/identity"
	"github.com/joseph-ayodele/submissions-tracker/internal/metrics"
	"github.com/joseph-ayodele/submissions-tracker/internal/pipeline"
	"github.com/joseph-ayodele/submissions-tracker/internal/repository"
	"github.com/joseph-ayodele/submissions-tracker/internal/submissions"
	"github.com/joseph-ayodele/submissions-tracker/internal/table"
	"github.com/joseph-ayodele/submissions-tracker/internal/textextract"
)

// app holds what every subcommand shares. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	cfg     *common.Config
	logger  *slog.Logger
	db      *repository.DB
	svc     *submissions.Service
	metrics *metrics.Metrics
	out     io.Writer
	closers []io.Closer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{out: os.Stdout}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "submissions",
		Short:         "Track nanopore sequencing submission forms",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch cmd.Name() {
			case "help", "completion":
				return nil
			}
			return a.init(cmd.Context(), cmd.Name() != "migrate")
		},
	}
	root.AddCommand(
		newProcessCmd(a),
		newGetCmd(a),
		newListCmd(a),
		newSearchCmd(a),
		newStatsCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newExportCmd(a),
		newProjectsCmd(a),
		newCheckCmd(a),
		newWatchCmd(a),
		newMigrateCmd(a),
	)
	return root
}

// init loads configuration, opens the store and wires the service. The
// schema is applied on every run except by migrate, which reports it.
func (a *app) init(ctx context.Context, autoMigrate bool) error {
	cfg, err := common.LoadConfig(ctx)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, lc := newLogger(cfg.Log)
	a.logger = logger
	a.closers = append(a.closers, lc)
	slog.SetDefault(logger)

	db, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.Database.Driver,
		Path:             cfg.Database.Path,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
		TxTimeout:        cfg.Database.TxTimeout,
		MaxRetries:       cfg.Database.MaxRetries,
	}, logger)
	if err != nil {
		return err
	}
	a.db = db
	if autoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
	}

	store, err := archive.Open(ctx, cfg.Archive)
	if err != nil {
		return common.NewAppError(common.CodeConfig, "failed to open document archive", err)
	}

	a.metrics = metrics.New()
	text := textextract.NewExtractor(textextract.Config{
		Pdftotext: cfg.Extract.PdfToTextBin,
		Timeout:   cfg.Extract.Timeout,
	}, logger)
	proc := pipeline.NewProcessor(logger, text, fields.NewExtractor(nil, logger), table.NewExtractor(logger), identity.NewGenerator())

	opts := []submissions.Option{submissions.WithMetrics(a.metrics)}
	if store != nil {
		opts = append(opts, submissions.WithArchive(store))
		logger.Debug("document archive enabled", "driver", store.Driver())
	}
	a.svc, err = submissions.NewService(proc, repository.NewSubmissionRepository(db, logger), logger, opts...)
	return err
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
	for _, c := range a.closers {
		_ = c.Close()
	}
	a.closers = nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func exitCode(err error) int {
	var ae *common.AppError
	if !errors.As(err, &ae) {
		return 1
	}
	switch ae.Code {
	case common.CodeNotFound:
		return 3
	case common.CodeUnreadableDocument, common.CodeInvalidInput, common.CodeConfig:
		return 2
	case common.CodeStorageUnavailable, common.CodeStorageConflict:
		return 4
	default:
		return 1
	}
}
