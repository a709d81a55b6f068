// internal/interaction/orchestrator.go
package interaction

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures an Orchestrator.
type Options struct {
	// ProbeTimeout bounds each candidate probe and the already-satisfied check.
	ProbeTimeout time.Duration
	// RungTimeout bounds each rung of the escalation ladder.
	RungTimeout time.Duration
	// Policy is used by interactions that do not declare their own.
	Policy RetryPolicy
}

// Orchestrator composes the resolver, executor and poller into a single operation.
// One orchestrator serves one browser session; calls must not overlap.
type Orchestrator struct {
	logger        *zap.Logger
	resolver      *Resolver
	executor      *Executor
	poller        *Poller
	defaultPolicy RetryPolicy
	probeTimeout  time.Duration
	busy          atomic.Bool
}

// NewOrchestrator creates an orchestrator bound to the session behind d.
func NewOrchestrator(d Driver, logger *zap.Logger, opts Options) *Orchestrator {
	if d == nil {
		panic("Orchestrator created with nil Driver reference")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := opts.Policy
	if policy.isZero() {
		policy = DefaultRetryPolicy
	}
	resolver := NewResolver(d, logger, opts.ProbeTimeout)
	return &Orchestrator{
		logger:        logger.Named("orchestrator"),
		resolver:      resolver,
		executor:      NewExecutor(logger, opts.RungTimeout),
		poller:        NewPoller(logger),
		defaultPolicy: policy,
		probeTimeout:  resolver.ProbeTimeout(),
	}
}

// DefaultPolicy returns the policy applied to interactions without one.
func (o *Orchestrator) DefaultPolicy() RetryPolicy { return o.defaultPolicy }

func (o *Orchestrator) policyFor(in Interaction) RetryPolicy {
	if in.Policy.isZero() {
		return o.defaultPolicy
	}
	return in.Policy
}

// EffectiveTimeout is the worst-case duration of Perform for in: the already-satisfied
// check, the resolution budget, the full three-rung ladder, and the poll timeout plus
// its one-interval overshoot.
func (o *Orchestrator) EffectiveTimeout(in Interaction) time.Duration {
	policy := o.policyFor(in)
	total := o.resolver.Budget(in.Candidates, policy.MaxStrategyAttempts) +
		o.executor.Budget() +
		policy.Timeout + policy.PollInterval
	if in.AlreadySatisfied != nil {
		total += o.probeTimeout
	}
	return total
}

// Perform achieves in.Intent and verifies it with in.Success.
//
// The per-call state machine is Idle -> Resolving -> Acting -> Verifying ->
// Succeeded|Failed. An already-satisfied predicate that holds on entry jumps straight
// to Succeeded with no strategy used. Resolution, action and verification failures
// are reported in the Outcome; the returned error is reserved for predicate bugs,
// driver infrastructure failures, cancellation of ctx, and invalid declarations.
func (o *Orchestrator) Perform(ctx context.Context, in Interaction) (Outcome, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return Outcome{}, ErrReentrant
	}
	defer o.busy.Store(false)

	if len(in.Candidates) == 0 {
		return Outcome{}, fmt.Errorf("%s: %w", in.Intent, ErrNoCandidates)
	}
	if in.Success.IsZero() {
		return Outcome{}, fmt.Errorf("%s: %w", in.Intent, ErrNoSuccessPredicate)
	}
	policy := o.policyFor(in)
	if err := policy.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("%s: invalid retry policy: %w", in.Intent, err)
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", in.Intent, err)
	}

	run := &performRun{
		out: Outcome{
			OperationID: uuid.NewString(),
			Intent:      in.Intent,
			Phases:      []Phase{PhaseIdle},
		},
		start: time.Now(),
	}
	log := o.logger.With(zap.String("intent", in.Intent.Name), zap.String("op", run.out.OperationID))

	// Idle: idempotence short-circuit.
	if in.AlreadySatisfied != nil {
		satisfied, err := o.checkAlreadySatisfied(ctx, *in.AlreadySatisfied)
		if err != nil {
			return Outcome{}, fmt.Errorf("%s: %w", in.Intent, err)
		}
		if satisfied {
			run.out.ShortCircuited = true
			log.Debug("Interaction already satisfied, skipping.", zap.String("predicate", in.AlreadySatisfied.Name))
			return run.succeed(nil), nil
		}
	}

	// Resolving.
	run.enter(PhaseResolving)
	res, err := o.resolver.Resolve(ctx, in.Candidates, policy.MaxStrategyAttempts)
	run.out.Resolution = res
	if err != nil {
		var rf *ResolutionFailure
		if errors.As(err, &rf) {
			log.Warn("No candidate resolved.", zap.Int("attempts", len(rf.Attempts)), zap.Int("skipped", len(rf.Skipped)))
			return run.fail(StrategyExhausted, rf), nil
		}
		return Outcome{}, fmt.Errorf("%s: resolving: %w", in.Intent, err)
	}
	target := res.Target

	// Acting.
	run.enter(PhaseActing)
	act, err := o.executor.Execute(ctx, target, in.Action)
	run.out.Action = &act
	if err != nil {
		var rejected *ActionRejectedError
		if errors.As(err, &rejected) {
			return run.fail(ActionRejected, rejected), nil
		}
		return Outcome{}, fmt.Errorf("%s: acting: %w", in.Intent, err)
	}

	// Verifying.
	run.enter(PhaseVerifying)
	poll, err := o.poller.PollUntil(ctx, in.Success, policy)
	run.out.Poll = &poll
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: verifying: %w", in.Intent, err)
	}
	if !poll.Satisfied {
		log.Warn("Action had no observable effect before the deadline.",
			zap.String("candidate", target.Candidate.String()),
			zap.String("predicate", poll.Predicate),
			zap.Duration("elapsed", poll.Elapsed))
		used := target.Candidate
		run.out.StrategyUsed = &used
		return run.fail(PollTimeout, &PollTimeoutError{Predicate: poll.Predicate, Elapsed: poll.Elapsed, Evaluations: poll.Evaluations}), nil
	}

	out := run.succeed(&target.Candidate)
	log.Info("Interaction succeeded.",
		zap.String("candidate", target.Candidate.String()),
		zap.Int("candidate_index", target.Index),
		zap.Stringer("technique", act.Technique),
		zap.Duration("elapsed", out.Elapsed))
	return out, nil
}

func (o *Orchestrator) checkAlreadySatisfied(ctx context.Context, p Predicate) (bool, error) {
	checkCtx, cancel := context.WithTimeout(ctx, o.probeTimeout)
	defer cancel()

	ok, err := p.Evaluate(checkCtx)
	if err == nil {
		return ok, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if checkCtx.Err() != nil && errors.Is(err, context.DeadlineExceeded) {
		return false, nil
	}
	return false, err
}

// performRun accumulates one call's Outcome.
type performRun struct {
	out   Outcome
	start time.Time
}

func (r *performRun) enter(p Phase) {
	r.out.Phases = append(r.out.Phases, p)
}

func (r *performRun) succeed(used *Candidate) Outcome {
	r.enter(PhaseSucceeded)
	if used != nil {
		c := *used
		r.out.StrategyUsed = &c
	}
	r.out.Succeeded = true
	r.out.FailureKind = FailureNone
	r.out.Elapsed = time.Since(r.start)
	return r.out
}

func (r *performRun) fail(kind FailureKind, cause error) Outcome {
	r.enter(PhaseFailed)
	r.out.Succeeded = false
	r.out.FailureKind = kind
	r.out.failure = cause
	r.out.Elapsed = time.Since(r.start)
	return r.out
}
