package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/submissions-tracker/internal/async"
	"github.com/joseph-ayodele/submissions-tracker/internal/ingest"
	"github.com/joseph-ayodele/submissions-tracker/internal/submissions"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		initialScan bool
		debounce    time.Duration
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Process documents as they appear in the given directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if addr := a.cfg.Runtime.MetricsAddr; addr != "" {
				srv := &http.Server{Addr: addr, Handler: metricsMux(a), ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error("metrics server failed", "addr", addr, "error", err)
					}
				}()
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(sctx)
				}()
				a.logger.Info("serving metrics", "addr", addr)
			}

			q := async.NewProcessorQueue(a.svc, a.logger,
				async.WithWorkers(a.cfg.Runtime.Workers),
				async.WithProcessTimeout(timeout),
				async.WithResultFunc(func(job async.Job, res *submissions.ProcessResult, err error) {
					if err != nil {
						return
					}
					for _, w := range res.Warnings {
						a.logger.Warn("extraction warning", "path", job.Path, "submission_id", res.SubmissionID, "warning", w.String())
					}
				}),
			)

			events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
				Roots:       args,
				InitialScan: initialScan,
				Debounce:    debounce,
				Logger:      a.logger,
			})
			if err != nil {
				q.Shutdown(ctx)
				return err
			}
			a.logger.Info("watching for submissions", "roots", args, "workers", a.cfg.Runtime.Workers)

		loop:
			for {
				select {
				case p, ok := <-events:
					if !ok {
						break loop
					}
					if err := q.Enqueue(ctx, async.NewJob(p)); err != nil {
						a.logger.Warn("could not queue document", "path", p, "error", err)
					}
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					a.logger.Warn("watcher reported an error", "error", err)
				case <-ctx.Done():
					break loop
				}
			}

			sctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			q.Shutdown(sctx)
			return nil
		},
	}
	cmd.Flags().BoolVar(&initialScan, "initial-scan", true, "process documents already present in the directories")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "wait for writes to settle before processing a file")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "per-document processing timeout")
	return cmd
}

func metricsMux(a *app) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.db.HealthCheck(r.Context(), time.Second); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
