// internal/scenario/runner.go
package scenario

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/portalprobe/internal/interaction"
	"github.com/xkilldash9x/portalprobe/internal/observability"
)

// snapshotTimeout bounds the document capture taken after a failed step.
const snapshotTimeout = 5 * time.Second

// Session is the part of a browser session a scenario needs.
type Session interface {
	interaction.Driver
	Navigate(ctx context.Context, url string) error
	Snapshot(ctx context.Context) (string, error)
}

// Result is the record of one scenario run.
type Result struct {
	Scenario string `json:"scenario"`
	Source   string `json:"source,omitempty"`
	URL      string `json:"url"`
	Passed   bool   `json:"passed"`
	// FailedStep is the zero-based index of the failed step, or -1.
	FailedStep int                   `json:"failed_step"`
	Outcomes   []interaction.Outcome `json:"outcomes"`
	Error      string                `json:"error,omitempty"`
	// Snapshot holds the document markup captured when a step failed.
	Snapshot string        `json:"snapshot,omitempty"`
	Started  time.Time     `json:"started"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Runner executes scenarios against browser sessions.
type Runner struct {
	logger *zap.Logger
	opts   interaction.Options
	// CaptureSnapshot controls whether a failed step records the document.
	CaptureSnapshot bool
}

// NewRunner creates a Runner whose orchestrators use opts.
func NewRunner(logger *zap.Logger, opts interaction.Options) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger.Named("scenario"), opts: opts, CaptureSnapshot: true}
}

// Run navigates to the scenario URL and performs its steps in order, stopping at the
// first failed outcome. A failed outcome is reported in the Result with a nil error;
// the error is reserved for failures that stop the run itself (navigation, a broken
// predicate, a dead browser).
func (r *Runner) Run(ctx context.Context, sess Session, s *Scenario) (*Result, error) {
	res := &Result{
		Scenario:   s.Name,
		Source:     s.Source,
		URL:        s.URL,
		FailedStep: -1,
		Started:    time.Now(),
	}
	defer func() { res.Elapsed = time.Since(res.Started) }()
	log := r.logger.With(zap.String("scenario", s.Name))

	orch := interaction.NewOrchestrator(sess, r.logger, r.opts)
	steps, err := build(sess, s, orch.DefaultPolicy())
	if err != nil {
		res.Error = err.Error()
		return res, err
	}

	log.Info("Running scenario.", zap.String("url", s.URL), zap.Int("steps", len(steps)))
	if err := sess.Navigate(ctx, s.URL); err != nil {
		res.Error = err.Error()
		return res, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	for i, in := range steps {
		out, err := orch.Perform(ctx, in)
		res.Outcomes = append(res.Outcomes, out)
		if err != nil {
			res.FailedStep = i
			res.Error = err.Error()
			r.capture(ctx, sess, res, log)
			return res, fmt.Errorf("scenario %s step %d: %w", s.Name, i+1, err)
		}
		if !out.Succeeded {
			res.FailedStep = i
			res.Error = out.Err().Error()
			log.Warn("Scenario step failed.", observability.OutcomeFields(out)...)
			r.capture(ctx, sess, res, log)
			return res, nil
		}
		log.Debug("Scenario step succeeded.", observability.OutcomeFields(out)...)
	}

	res.Passed = true
	log.Info("Scenario passed.", zap.Int("steps", len(steps)))
	return res, nil
}

// capture records the document after a failure. It runs even when ctx is already
// canceled, bounded by its own timeout.
func (r *Runner) capture(ctx context.Context, sess Session, res *Result, log *zap.Logger) {
	if !r.CaptureSnapshot {
		return
	}
	snapCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
	defer cancel()
	markup, err := sess.Snapshot(snapCtx)
	if err != nil {
		log.Debug("Could not capture failure snapshot.", zap.Error(err))
		return
	}
	res.Snapshot = CleanSnapshot(markup)
}
