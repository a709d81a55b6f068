// internal/interaction/poller.go
package interaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// tokenJitter is the rounding tolerance when comparing a token's arrival to the timeout.
const tokenJitter = time.Millisecond

// PollOutcome is the result of polling one predicate. A timeout is a normal result
// (Satisfied == false), not an error.
type PollOutcome struct {
	Predicate   string        `json:"predicate"`
	Satisfied   bool          `json:"satisfied"`
	Elapsed     time.Duration `json:"elapsed"`
	Evaluations int           `json:"evaluations"`
}

// Poller re-evaluates a predicate at a fixed interval until it holds or a deadline passes.
type Poller struct {
	logger *zap.Logger
}

// NewPoller creates a Poller.
func NewPoller(logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{logger: logger.Named("poller")}
}

// PollUntil evaluates pred until it is true or policy.Timeout has elapsed since the
// first evaluation. Evaluations are spaced by a token bucket refilled once per
// PollInterval, so the predicate never runs more often than that, and waiting always
// yields. A round whose token would arrive after Timeout is never started; polling
// ends there unsatisfied, at least Timeout minus one PollInterval after the start.
// Each evaluation is bounded by PollInterval and by the hard deadline of Timeout plus
// one PollInterval; an evaluation that runs out of time counts as false for that round.
func (p *Poller) PollUntil(ctx context.Context, pred Predicate, policy RetryPolicy) (PollOutcome, error) {
	out := PollOutcome{Predicate: pred.Name}
	if err := policy.Validate(); err != nil {
		return out, fmt.Errorf("invalid retry policy: %w", err)
	}
	if pred.IsZero() {
		return out, ErrNoSuccessPredicate
	}
	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("polling %q interrupted: %w", pred.Name, err)
	}

	limiter := rate.NewLimiter(rate.Every(policy.PollInterval), 1)
	// The first token is immediate, so start marks the first evaluation.
	start := time.Now()
	giveUp := start.Add(policy.Timeout)
	deadline := giveUp.Add(policy.PollInterval)

	timedOut := func() (PollOutcome, error) {
		out.Elapsed = time.Since(start)
		p.logger.Debug("Predicate poll timed out.",
			zap.String("predicate", pred.Name),
			zap.Int("evaluations", out.Evaluations),
			zap.Duration("elapsed", out.Elapsed))
		return out, nil
	}

	for now := start; ; now = time.Now() {
		r := limiter.ReserveN(now, 1)
		delay := r.DelayFrom(now)
		// Token times come from float arithmetic; tokenJitter keeps a round that lands
		// exactly on Timeout.
		if out.Evaluations > 0 && now.Add(delay).Sub(giveUp) > tokenJitter {
			r.CancelAt(now)
			return timedOut()
		}
		if err := sleepCtx(ctx, delay); err != nil {
			r.Cancel()
			return out, fmt.Errorf("polling %q interrupted: %w", pred.Name, err)
		}

		budget := min(policy.PollInterval, time.Until(deadline))
		if budget <= 0 {
			return timedOut()
		}
		out.Evaluations++

		ok, err := p.evaluateOnce(ctx, pred, budget)
		out.Elapsed = time.Since(start)
		if err != nil {
			return out, err
		}
		if ok {
			out.Satisfied = true
			p.logger.Debug("Predicate satisfied.",
				zap.String("predicate", pred.Name),
				zap.Int("evaluations", out.Evaluations),
				zap.Duration("elapsed", out.Elapsed))
			return out, nil
		}
		if out.Elapsed >= policy.Timeout {
			return timedOut()
		}
	}
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Poller) evaluateOnce(ctx context.Context, pred Predicate, budget time.Duration) (bool, error) {
	evalCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	ok, err := pred.Evaluate(evalCtx)
	if err == nil {
		return ok, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	// The step's own deadline ran out; the state is unknown, so this round is false.
	if evalCtx.Err() != nil && errors.Is(err, context.DeadlineExceeded) {
		p.logger.Debug("Predicate evaluation exceeded its budget.", zap.String("predicate", pred.Name), zap.Duration("budget", budget))
		return false, nil
	}
	return false, err
}
