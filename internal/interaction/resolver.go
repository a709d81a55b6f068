// internal/interaction/resolver.go
package interaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultProbeTimeout bounds each candidate's existence and visibility check.
const DefaultProbeTimeout = 2 * time.Second

// CandidateAttempt records one probe made by the resolver.
type CandidateAttempt struct {
	Candidate Candidate     `json:"candidate"`
	Found     bool          `json:"found"`
	Reason    string        `json:"reason"`
	Elapsed   time.Duration `json:"elapsed"`
	Err       error         `json:"-"`
}

// ResolvedTarget binds a candidate to a live element for the span of one call.
type ResolvedTarget struct {
	Candidate Candidate
	Element   Element
	// Index is the candidate's position in the declared list.
	Index int
}

// Resolution is what the resolver learned, whether or not it found a target.
type Resolution struct {
	Target   *ResolvedTarget    `json:"-"`
	Attempts []CandidateAttempt `json:"attempts"`
	Skipped  []Candidate        `json:"skipped,omitempty"`
}

// Resolver picks the first candidate whose element currently exists and is visible.
type Resolver struct {
	driver       Driver
	logger       *zap.Logger
	probeTimeout time.Duration
}

// NewResolver creates a Resolver. A non-positive probeTimeout uses DefaultProbeTimeout.
func NewResolver(d Driver, logger *zap.Logger, probeTimeout time.Duration) *Resolver {
	if d == nil {
		panic("Resolver created with nil Driver reference")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &Resolver{driver: d, logger: logger.Named("resolver"), probeTimeout: probeTimeout}
}

// ProbeTimeout returns the bound applied to each candidate probe.
func (r *Resolver) ProbeTimeout() time.Duration { return r.probeTimeout }

// Budget returns how long resolving candidates can take under attemptBudget.
func (r *Resolver) Budget(candidates []Candidate, attemptBudget int) time.Duration {
	return time.Duration(effectiveAttempts(len(candidates), attemptBudget)) * r.probeTimeout
}

// Resolve walks candidates in declared order and returns the first one that resolves.
// Candidates whose probe fails for a non-infrastructure reason count as non-matches.
// When nothing resolves, the returned error is a *ResolutionFailure naming every
// candidate tried and every candidate skipped by attemptBudget (zero means no limit).
func (r *Resolver) Resolve(ctx context.Context, candidates []Candidate, attemptBudget int) (Resolution, error) {
	var res Resolution
	if len(candidates) == 0 {
		return res, ErrNoCandidates
	}

	limit := effectiveAttempts(len(candidates), attemptBudget)
	for idx, c := range candidates[:limit] {
		attempt, el, err := r.probe(ctx, c)
		if err != nil {
			return res, err
		}
		res.Attempts = append(res.Attempts, attempt)
		if attempt.Found {
			res.Target = &ResolvedTarget{Candidate: c, Element: el, Index: idx}
			r.logger.Debug("Candidate resolved.",
				zap.String("candidate", c.String()),
				zap.Int("index", idx),
				zap.Int("attempts", len(res.Attempts)))
			return res, nil
		}
		r.logger.Debug("Candidate did not resolve.", zap.String("candidate", c.String()), zap.String("reason", attempt.Reason))
	}

	res.Skipped = append(res.Skipped, candidates[limit:]...)
	return res, &ResolutionFailure{Attempts: res.Attempts, Skipped: res.Skipped}
}

// probe performs one bounded existence and visibility check. The returned error is
// non-nil only for failures that must propagate.
func (r *Resolver) probe(ctx context.Context, c Candidate) (CandidateAttempt, Element, error) {
	attempt := CandidateAttempt{Candidate: c}
	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	start := time.Now()
	el, err := r.driver.Query(probeCtx, c.Locator)
	attempt.Elapsed = time.Since(start)

	switch {
	case err == nil && el != nil:
		attempt.Found = true
		attempt.Reason = "resolved"
		return attempt, el, nil
	case err == nil:
		attempt.Reason = "not found"
		attempt.Err = ErrNoMatch
	case IsInfrastructure(ctx, err):
		return attempt, nil, fmt.Errorf("probing candidate %s: %w", c, err)
	case errors.Is(err, ErrInvalidLocator):
		attempt.Reason = "invalid locator"
		attempt.Err = err
	case errors.Is(err, ErrNoMatch), errors.Is(err, context.DeadlineExceeded):
		attempt.Reason = "not found"
		attempt.Err = err
	default:
		attempt.Reason = "query failed: " + err.Error()
		attempt.Err = err
	}
	return attempt, nil, nil
}

func effectiveAttempts(n, budget int) int {
	if budget <= 0 || budget > n {
		return n
	}
	return budget
}
