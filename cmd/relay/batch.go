package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/LISSConsulting/LISSTech.Relay/internal/batch"
	"github.com/LISSConsulting/LISSTech.Relay/internal/metrics"
	"github.com/LISSConsulting/LISSTech.Relay/internal/store"
	"github.com/LISSConsulting/LISSTech.Relay/internal/transport"
)

type batchFlags struct {
	concurrency    int
	out            string
	metricsAddr    string
	continueOnFail bool
}

func (a *app) batchCmd() *cobra.Command {
	f := &batchFlags{}
	cmd := &cobra.Command{
		Use:   "batch <jobs.yaml>",
		Short: "Run every job in a jobs file concurrently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd.OutOrStdout(), args[0], f)
		},
	}
	cmd.Flags().IntVarP(&f.concurrency, "concurrency", "j", 0, "jobs in flight (0 = jobs file value)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "JSONL result log (default: [results] path)")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address while running (default: [metrics] addr)")
	cmd.Flags().BoolVar(&f.continueOnFail, "continue-on-fail", false, "exit 0 even when jobs fail")
	return cmd
}

func (a *app) runBatch(w io.Writer, path string, f *batchFlags) error {
	cfg, log, err := a.load()
	if err != nil {
		return err
	}
	jobs, err := batch.Load(path)
	if err != nil {
		return err
	}

	out := f.out
	if out == "" {
		out = cfg.Results.Path
	}
	results, err := store.Open(out)
	if err != nil {
		return err
	}
	defer results.Close()

	addr := f.metricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		srv, err := metrics.Listen(addr, log)
		if err != nil {
			return fmt.Errorf("metrics: listen %s: %w", addr, err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Warn().Err(err).Msg("metrics shutdown")
			}
		}()
	}

	registerQuitHandler()
	ctx, cancel := signalContext()
	defer cancel()

	r := &batch.Runner{
		Config:      cfg,
		Dispatcher:  &transport.Dispatcher{Log: log, Observe: metrics.Record},
		Store:       results,
		Notifier:    newNotifier(cfg, log),
		Concurrency: f.concurrency,
		Log:         log,
	}
	report, runErr := r.Run(ctx, jobs)
	if err := printJSON(w, report); err != nil {
		return err
	}
	log.Info().Str("results", results.Path()).Msg("results recorded")

	if runErr != nil && !f.continueOnFail {
		return runErr
	}
	if failed := report.Failed(); len(failed) > 0 && !f.continueOnFail {
		return fmt.Errorf("%d job(s) failed: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

func (a *app) resultsCmd() *cobra.Command {
	var path string
	var last int
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Summarize the recorded batch results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				cfg, _, err := a.load()
				if err != nil {
					return err
				}
				path = cfg.Results.Path
			}
			recs, err := store.ReadAll(path)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatResults(path, recs, last))
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "JSONL result log (default: [results] path)")
	cmd.Flags().IntVarP(&last, "last", "n", 10, "show the most recent n records (0 = none)")
	return cmd
}

// formatResults renders a summary block followed by the most recent
// records, newest last.
func formatResults(path string, recs []store.Record, last int) string {
	if len(recs) == 0 {
		return fmt.Sprintf("No results recorded in %s\n", path)
	}
	sum := store.Summarize(recs)

	var b strings.Builder
	b.WriteString("Results\n")
	b.WriteString("───────\n")
	fmt.Fprintf(&b, "  %-12s %s\n", "Log:", path)
	fmt.Fprintf(&b, "  %-12s %d (%d ok, %d failed)\n", "Records:", sum.Records, sum.Succeeded, sum.Failed)
	fmt.Fprintf(&b, "  %-12s $%.4f\n", "Total cost:", sum.TotalCost)
	if !sum.First.IsZero() {
		fmt.Fprintf(&b, "  %-12s %s to %s\n", "Span:", sum.First.Format(time.RFC3339), sum.Last.Format(time.RFC3339))
	}

	if last <= 0 {
		return b.String()
	}
	if last < len(recs) {
		recs = recs[len(recs)-last:]
	}
	b.WriteString("\n")
	for _, rec := range recs {
		status := "ok"
		if !rec.Result.Success {
			status = fmt.Sprintf("exit %d", rec.Result.ExitCode)
		}
		fmt.Fprintf(&b, "  %s  %-20s %-7s %-8s %s\n",
			rec.Time.Format(time.RFC3339), rec.Job, rec.Transport, status, rec.Result.SessionID)
	}
	return b.String()
}
