// internal/interaction/executor.go
package interaction

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultRungTimeout bounds each rung of the escalation ladder.
const DefaultRungTimeout = 3 * time.Second

// Technique is one rung of the escalation ladder.
type Technique int

const (
	TechniqueNone Technique = iota
	// TechniqueDirect is a standard invocation through the driver's input pipeline.
	TechniqueDirect
	// TechniqueForced skips the driver's actionability checks (overlays, animations).
	TechniqueForced
	// TechniqueSynthetic dispatches DOM events on the node itself.
	TechniqueSynthetic
)

// ladder is the fixed escalation order.
var ladder = []Technique{TechniqueDirect, TechniqueForced, TechniqueSynthetic}

func (t Technique) String() string {
	switch t {
	case TechniqueNone:
		return "none"
	case TechniqueDirect:
		return "direct"
	case TechniqueForced:
		return "forced"
	case TechniqueSynthetic:
		return "synthetic"
	default:
		return fmt.Sprintf("technique(%d)", int(t))
	}
}

// MarshalText lets reports carry the readable name.
func (t Technique) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// RungAttempt records one rung of the ladder.
type RungAttempt struct {
	Technique Technique     `json:"technique"`
	Elapsed   time.Duration `json:"elapsed"`
	Message   string        `json:"error,omitempty"`
	Err       error         `json:"-"`
}

// ActionOutcome is the executor's account of one action.
type ActionOutcome struct {
	Action    Action        `json:"-"`
	Succeeded bool          `json:"succeeded"`
	Technique Technique     `json:"technique"`
	Rungs     []RungAttempt `json:"rungs"`
}

// Executor applies an action to a resolved target, escalating from direct to forced
// to synthetic invocation until one rung succeeds.
type Executor struct {
	logger      *zap.Logger
	rungTimeout time.Duration
}

// NewExecutor creates an Executor. A non-positive rungTimeout uses DefaultRungTimeout.
func NewExecutor(logger *zap.Logger, rungTimeout time.Duration) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rungTimeout <= 0 {
		rungTimeout = DefaultRungTimeout
	}
	return &Executor{logger: logger.Named("executor"), rungTimeout: rungTimeout}
}

// Budget returns the worst-case duration of a full ladder.
func (e *Executor) Budget() time.Duration {
	return time.Duration(len(ladder)) * e.rungTimeout
}

// Execute runs the ladder against target. When every rung fails the error is an
// *ActionRejectedError preserving each rung's error in order. Infrastructure failures
// stop the ladder and propagate as-is.
//
// The executor does not guard against toggling a control twice; callers encode that
// with an already-satisfied predicate.
func (e *Executor) Execute(ctx context.Context, target *ResolvedTarget, action Action) (ActionOutcome, error) {
	if target == nil || target.Element == nil {
		return ActionOutcome{}, fmt.Errorf("execute %s: no resolved target", action)
	}
	action = target.Candidate.actionFor(action)
	out := ActionOutcome{Action: action}
	desc := target.Element.Describe()
	log := e.logger.With(zap.String("target", desc), zap.String("action", action.String()))

	for _, tech := range ladder {
		rung, err := e.runRung(ctx, target.Element, action, tech)
		if err != nil && IsInfrastructure(ctx, err) {
			return out, fmt.Errorf("%s %s on %s: %w", tech, action.Kind, desc, err)
		}
		out.Rungs = append(out.Rungs, rung)
		if rung.Err == nil {
			out.Succeeded = true
			out.Technique = tech
			if tech != TechniqueDirect {
				log.Info("Action succeeded after escalation.", zap.Stringer("technique", tech), zap.Int("rungs", len(out.Rungs)))
			} else {
				log.Debug("Action succeeded.", zap.Stringer("technique", tech))
			}
			return out, nil
		}
		log.Debug("Technique rejected.", zap.Stringer("technique", tech), zap.Error(rung.Err))
	}

	log.Warn("All techniques rejected.", zap.Int("rungs", len(out.Rungs)))
	return out, &ActionRejectedError{Target: desc, Rungs: out.Rungs}
}

func (e *Executor) runRung(ctx context.Context, el Element, action Action, tech Technique) (RungAttempt, error) {
	rung := RungAttempt{Technique: tech}
	rungCtx, cancel := context.WithTimeout(ctx, e.rungTimeout)
	defer cancel()

	start := time.Now()
	var err error
	switch tech {
	case TechniqueDirect:
		err = el.Invoke(rungCtx, action, InvokeOptions{})
	case TechniqueForced:
		err = el.Invoke(rungCtx, action, InvokeOptions{Force: true})
	case TechniqueSynthetic:
		err = el.Dispatch(rungCtx, action)
	}
	rung.Elapsed = time.Since(start)
	if err != nil {
		if rungCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = fmt.Errorf("%s timed out after %v: %w", tech, e.rungTimeout, err)
		}
		rung.Err = err
		rung.Message = err.Error()
	}
	return rung, err
}
