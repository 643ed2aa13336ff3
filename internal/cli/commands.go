package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Presto-io/symfix/internal/artifact"
	"github.com/Presto-io/symfix/internal/report"
	"github.com/Presto-io/symfix/internal/verify"
	"github.com/Presto-io/symfix/internal/watch"
)

// ---------- fix / check ----------

func (a *app) fixCommand() *cobra.Command {
	var dryRun bool
	var reportPath, htmlPath string

	cmd := &cobra.Command{
		Use:   "fix PATH...",
		Short: "Correct single-backslash command literals in place",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summaries, err := a.correctAll(args, !dryRun)
			fmt.Fprint(cmd.OutOrStdout(), report.Text(summaries...))
			if werr := a.writeReports(summaries, reportPath, htmlPath); werr != nil {
				err = multierr.Append(err, werr)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	cmd.Flags().StringVar(&reportPath, "report", "", "also write a Markdown report to this file")
	cmd.Flags().StringVar(&htmlPath, "html", "", "also write an HTML report to this file")
	return cmd
}

func (a *app) checkCommand() *cobra.Command {
	var reportPath, htmlPath string

	cmd := &cobra.Command{
		Use:   "check PATH...",
		Short: "Fail when any file has literals to fix or review; never writes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summaries, err := a.correctAll(args, false)
			fmt.Fprint(cmd.OutOrStdout(), report.Text(summaries...))
			if werr := a.writeReports(summaries, reportPath, htmlPath); werr != nil {
				err = multierr.Append(err, werr)
			}
			if err != nil {
				return err
			}
			for _, s := range summaries {
				if !s.Clean() {
					return ErrNeedsFix
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reportPath, "report", "", "also write a Markdown report to this file")
	cmd.Flags().StringVar(&htmlPath, "html", "", "also write an HTML report to this file")
	return cmd
}

// correctAll processes paths one after another. A failed file does not stop
// the others; all failures are returned together.
func (a *app) correctAll(paths []string, write bool) ([]report.Summary, error) {
	var errs error
	summaries := make([]report.Summary, 0, len(paths))
	for _, path := range paths {
		s := a.correctFile(path, write)
		if s.Err != nil {
			errs = multierr.Append(errs, s.Err)
		}
		summaries = append(summaries, s)
	}
	return summaries, errs
}

// correctFile loads path, corrects it, and persists the result when write is
// set and something changed.
func (a *app) correctFile(path string, write bool) report.Summary {
	doc, err := artifact.Load(path)
	if err != nil {
		a.logger.Error("load failed", zap.String("path", path), zap.Error(err))
		return report.Summary{Path: path, Err: err}
	}

	res := a.corrector.Correct(doc.Content)
	after := doc.Digest
	if res.Changed > 0 {
		after = artifact.Digest(res.Document)
	}
	s := report.FromResult(path, res, doc.Digest, after)
	s.DryRun = !write
	a.logDiagnostics(path, res.Diagnostics)

	if !write || res.Changed == 0 {
		a.logger.Debug("not writing", zap.String("path", path), zap.Int("pending", res.Changed))
		return s
	}
	if err := artifact.Persist(path, []byte(res.Document), doc.Mode); err != nil {
		a.logger.Error("persist failed", zap.String("path", path), zap.Error(err))
		s.Err = err
		s.After = doc.Digest
		return s
	}
	a.logger.Info("corrected",
		zap.String("path", path),
		zap.Int("fixed", res.Changed),
		zap.Int("unresolved", len(res.Diagnostics)),
		zap.String("blake3", after))
	return s
}

func (a *app) writeReports(summaries []report.Summary, mdPath, htmlPath string) error {
	if mdPath == "" && htmlPath == "" {
		return nil
	}
	md := report.Markdown(summaries...)

	var errs error
	if mdPath != "" {
		errs = multierr.Append(errs, artifact.Persist(mdPath, []byte(md), 0o644))
	}
	if htmlPath != "" {
		html, err := report.HTML(md)
		if err == nil {
			err = artifact.Persist(htmlPath, []byte(html), 0o644)
		}
		errs = multierr.Append(errs, err)
	}
	return errs
}

// ---------- watch ----------

func (a *app) watchCommand() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch PATH...",
		Short: "Fix files now and again every time they are regenerated",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if cmd.Flags().Changed("debounce") {
				a.cfg.Watch.Debounce = debounce
			}
			return a.watch(ctx, args, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "quiet period before re-running (default from config: 200ms)")
	return cmd
}

func (a *app) watch(ctx context.Context, paths []string, out io.Writer) error {
	summaries, err := a.correctAll(paths, true)
	fmt.Fprint(out, report.Text(summaries...))
	if err != nil {
		return err
	}

	w, err := watch.New(paths, a.cfg.Watch.Debounce, func(_ context.Context, path string) error {
		s := a.correctFile(path, true)
		fmt.Fprint(out, report.Text(s))
		return s.Err
	}, a.logger)
	if err != nil {
		return err
	}
	a.logger.Info("watching", zap.Strings("paths", paths))
	return w.Run(ctx)
}

// ---------- verify ----------

func (a *app) verifyCommand() *cobra.Command {
	var url, waitText, screenshot string
	var timeout time.Duration
	var headful bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Open the running application in a headless browser and save a screenshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Verify
			flags := cmd.Flags()
			if flags.Changed("url") {
				cfg.URL = url
			}
			if flags.Changed("wait-text") {
				cfg.WaitText = waitText
			}
			if flags.Changed("screenshot") {
				cfg.Screenshot = screenshot
			}
			if flags.Changed("timeout") {
				cfg.Timeout = timeout
			}
			if headful {
				cfg.Headless = false
			}

			path, err := verify.Run(cmd.Context(), cfg, a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Screenshot saved to %s\n", path)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&url, "url", "", "application URL (default from config: http://localhost:1420)")
	f.StringVar(&waitText, "wait-text", "", "text that marks the application as loaded (default from config: Ready)")
	f.StringVar(&screenshot, "screenshot", "", "screenshot output path")
	f.DurationVar(&timeout, "timeout", 0, "overall timeout")
	f.BoolVar(&headful, "headful", false, "show the browser window")
	return cmd
}
