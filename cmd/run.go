// cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/portalprobe/internal/browser"
	"github.com/xkilldash9x/portalprobe/internal/config"
	"github.com/xkilldash9x/portalprobe/internal/observability"
	"github.com/xkilldash9x/portalprobe/internal/reporting"
	"github.com/xkilldash9x/portalprobe/internal/scenario"
)

// shutdownTimeout bounds browser teardown after the run, including after a signal.
const shutdownTimeout = 10 * time.Second

// launchBrowser is swapped out in tests.
var launchBrowser = browser.Launch

// ScenarioFailureError reports that at least one scenario did not pass. The
// details are already in the report.
type ScenarioFailureError struct {
	Failed, Total int
}

func (e *ScenarioFailureError) Error() string {
	return fmt.Sprintf("%d of %d scenario(s) failed", e.Failed, e.Total)
}

// runOptions are the flag values of the run command.
type runOptions struct {
	format string
	output string
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	runCmd := &cobra.Command{
		Use:   "run [scenario files...]",
		Short: "Runs YAML interaction scenarios against live pages",
		Long: `Runs each scenario file in its own browser session, at most browser.concurrency at a
time, and writes one report covering all of them. The command exits non-zero when any
scenario fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if err := applyRunFlagOverrides(cmd, cfg); err != nil {
				return err
			}
			return runScenarios(ctx, cfg, args, opts, observability.GetLogger())
		},
	}

	runCmd.Flags().StringVarP(&opts.format, "format", "f", "console", "report format (console, json)")
	runCmd.Flags().StringVarP(&opts.output, "output", "o", "", "report file (default stdout)")
	runCmd.Flags().String("driver", "", "browser driver (chromedp, playwright); overrides browser.driver")
	runCmd.Flags().IntP("concurrency", "j", 0, "scenarios run in parallel; overrides browser.concurrency")
	runCmd.Flags().Bool("headless", true, "run the browser without a window; overrides browser.headless")
	return runCmd
}

// applyRunFlagOverrides copies explicitly set flags over the loaded configuration.
func applyRunFlagOverrides(cmd *cobra.Command, cfg config.Interface) error {
	flags := cmd.Flags()
	if flags.Changed("driver") {
		d, _ := flags.GetString("driver")
		switch d {
		case config.DriverChromedp, config.DriverPlaywright:
			cfg.SetBrowserDriver(d)
		default:
			return fmt.Errorf("invalid --driver %q: must be %q or %q", d, config.DriverChromedp, config.DriverPlaywright)
		}
	}
	if flags.Changed("concurrency") {
		n, _ := flags.GetInt("concurrency")
		if n <= 0 {
			return fmt.Errorf("invalid --concurrency %d: must be positive", n)
		}
		cfg.SetBrowserConcurrency(n)
	}
	if flags.Changed("headless") {
		h, _ := flags.GetBool("headless")
		cfg.SetBrowserHeadless(h)
	}
	return nil
}

// runScenarios loads every file, runs the scenarios with bounded parallelism and
// writes the results in argument order.
func runScenarios(ctx context.Context, cfg config.Interface, paths []string, opts runOptions, logger *zap.Logger) error {
	logger = logger.Named("run")

	scenarios := make([]*scenario.Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := scenario.Load(p)
		if err != nil {
			return err
		}
		scenarios = append(scenarios, s)
	}

	reporter, err := reporting.New(opts.format, opts.output, Version)
	if err != nil {
		return err
	}

	bcfg := cfg.Browser()
	launcher, err := launchBrowser(ctx, logger, bcfg)
	if err != nil {
		reporter.Close()
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := launcher.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser shutdown reported an error.", zap.Error(err))
		}
	}()

	logger.Info("Running scenarios.",
		zap.Int("scenarios", len(scenarios)),
		zap.String("driver", bcfg.Driver),
		zap.Int("concurrency", bcfg.Concurrency),
	)

	results := make([]*scenario.Result, len(scenarios))
	var failed atomic.Int32

	// A failing scenario never stops its siblings, so the group carries no error.
	g := new(errgroup.Group)
	g.SetLimit(bcfg.Concurrency)
	for i, s := range scenarios {
		g.Go(func() error {
			res := runOne(ctx, launcher, cfg.Interaction(), s, logger)
			if !res.Passed {
				failed.Add(1)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var writeErr error
	for _, res := range results {
		if err := reporter.Write(res); err != nil {
			writeErr = errors.Join(writeErr, err)
		}
	}
	if err := reporter.Close(); err != nil {
		writeErr = errors.Join(writeErr, err)
	}
	if writeErr != nil {
		return fmt.Errorf("failed to write report: %w", writeErr)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if n := int(failed.Load()); n > 0 {
		return &ScenarioFailureError{Failed: n, Total: len(scenarios)}
	}
	return nil
}

// runOne runs s in a fresh session. Errors that stop the run are folded into the
// result so every scenario is reported.
func runOne(ctx context.Context, launcher browser.Launcher, icfg config.InteractionConfig, s *scenario.Scenario, logger *zap.Logger) *scenario.Result {
	log := logger.With(zap.String("scenario", s.Name))

	sess, err := launcher.NewSession(ctx)
	if err != nil {
		log.Error("Failed to open browser session.", zap.Error(err))
		return &scenario.Result{
			Scenario:   s.Name,
			Source:     s.Source,
			URL:        s.URL,
			FailedStep: -1,
			Error:      fmt.Sprintf("failed to open browser session: %v", err),
			Started:    time.Now(),
		}
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := sess.Close(closeCtx); err != nil {
			log.Debug("Session close reported an error.", zap.Error(err))
		}
	}()

	res, err := scenario.NewRunner(logger, icfg.Options()).Run(ctx, sess, s)
	if err != nil {
		log.Error("Scenario run aborted.", zap.Error(err))
		res.Error = err.Error()
	}
	return res
}
