package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/submissions-tracker/internal/entity"
	"github.com/joseph-ayodele/submissions-tracker/internal/export"
	"github.com/joseph-ayodele/submissions-tracker/internal/ingest"
	"github.com/joseph-ayodele/submissions-tracker/internal/repository"
	"github.com/joseph-ayodele/submissions-tracker/internal/submissions"
)

func newProcessCmd(a *app) *cobra.Command {
	var skipHidden bool
	cmd := &cobra.Command{
		Use:   "process <file-or-dir>...",
		Short: "Extract and store one or more submission documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			in := ingest.NewFSIngestor(a.svc, a.cfg.Runtime.Workers, a.logger)

			var (
				results []ingest.IngestionResult
				total   ingest.DirStats
			)
			for _, p := range args {
				st, err := os.Stat(p)
				if err != nil {
					return err
				}
				if !st.IsDir() {
					// single files show the full record
					res, err := a.svc.ProcessFile(ctx, p)
					if err != nil {
						return err
					}
					if len(args) == 1 {
						return a.printJSON(res)
					}
					results = append(results, summarize(p, res))
					continue
				}
				rs, stats, err := in.IngestDirectory(ctx, p, skipHidden)
				results = append(results, rs...)
				total.Scanned += stats.Scanned
				total.Matched += stats.Matched
				total.Created += stats.Created
				total.Duplicates += stats.Duplicates
				total.Failed += stats.Failed
				if err != nil {
					return err
				}
			}
			return a.printJSON(struct {
				Results []ingest.IngestionResult `json:"results"`
				Totals  ingest.DirStats          `json:"totals"`
			}{results, total})
		},
	}
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "skip hidden files and directories")
	return cmd
}

func summarize(path string, res *submissions.ProcessResult) ingest.IngestionResult {
	abs, _ := filepath.Abs(path)
	r := ingest.IngestionResult{
		SourcePath:   abs,
		SubmissionID: res.SubmissionID,
		Status:       res.Status,
		Warnings:     len(res.Warnings),
	}
	if res.Record != nil {
		r.HashHex = res.Record.FileHash
		r.Samples = res.Record.TotalSamples
	}
	return r
}

func newGetCmd(a *app) *cobra.Command {
	var stats bool
	cmd := &cobra.Command{
		Use:   "get <submission-id|uuid>",
		Short: "Show a stored submission with its samples and info",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !stats {
				return a.printJSON(rec)
			}
			ss, err := a.svc.SampleStats(cmd.Context(), rec.SubmissionID)
			if err != nil {
				return err
			}
			return a.printJSON(struct {
				*entity.Record
				SampleStats *entity.SampleStats `json:"sample_stats"`
			}{rec, ss})
		},
	}
	cmd.Flags().BoolVar(&stats, "stats", false, "include per-submission sample statistics")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var opts submissions.ListOptions
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submissions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			subs, err := a.svc.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if asJSON {
				return a.printJSON(subs)
			}
			return a.printTable(subs)
		},
	}
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "only submissions of this project id")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum rows, 0 for the default page, -1 for all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newSearchCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Case-insensitive search over submission fields and info values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subs, err := a.svc.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return a.printJSON(subs)
			}
			return a.printTable(subs)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func (a *app) printTable(subs []entity.Submission) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBMISSION\tPROJECT\tOWNER\tSAMPLES\tSCANNED")
	for _, s := range subs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			s.SubmissionID, deref(s.ProjectID), deref(s.Owner), s.TotalSamples, s.ScannedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func deref(p *string) string {
	if p == nil {
		return "-"
	}
	return *p
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show totals across all stored submissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.svc.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(st)
		},
	}
}

func newProjectsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List distinct projects with submission and sample counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ps, err := a.svc.Projects(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(ps)
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	var project, owner, organism string
	cmd := &cobra.Command{
		Use:   "update <submission-id|uuid>",
		Short: "Change the project, owner or source organism of a submission",
		Long:  "Only the flags given are changed. Pass an empty value to clear a field.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch repository.SubmissionPatch
			if cmd.Flags().Changed("project") {
				patch.ProjectID = &project
			}
			if cmd.Flags().Changed("owner") {
				patch.Owner = &owner
			}
			if cmd.Flags().Changed("organism") {
				patch.SourceOrganism = &organism
			}
			rec, err := a.svc.Update(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			return a.printJSON(rec)
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "new project id")
	cmd.Flags().StringVar(&owner, "owner", "", "new owner")
	cmd.Flags().StringVar(&organism, "organism", "", "new source organism")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <submission-id|uuid>",
		Short: "Delete a submission with its samples and info",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted %s\n", args[0])
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every submission as JSON or an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			data, err := a.svc.Export(cmd.Context(), f)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = a.out.Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			a.logger.Info("export written", "format", f, "path", out, "bytes", len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "json or xlsx")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file, stdout when empty")
	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Report whether a document has already been stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			res, err := a.svc.CheckDuplicate(cmd.Context(), data)
			if err != nil {
				return err
			}
			return a.printJSON(res)
		},
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and check connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.db.Migrate(ctx); err != nil {
				return err
			}
			if err := a.db.HealthCheck(ctx, a.cfg.Database.DialTimeout); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "schema up to date (%s)\n", a.db.Dialect)
			return nil
		},
	}
}
