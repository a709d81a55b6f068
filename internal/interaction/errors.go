// internal/interaction/errors.go
package interaction

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoCandidates is returned when an interaction declares no candidates. This is a
	// page-object bug and is never folded into an Outcome.
	ErrNoCandidates = errors.New("interaction declares no candidates")

	// ErrNoSuccessPredicate is returned when an interaction cannot be verified.
	ErrNoSuccessPredicate = errors.New("interaction declares no success predicate")

	// ErrReentrant is returned when Perform is called while another Perform is running
	// against the same session.
	ErrReentrant = errors.New("perform called while another interaction is in progress on this session")
)

// PredicateError wraps a failure inside a predicate's own logic. It always propagates.
type PredicateError struct {
	Predicate string
	Err       error
}

func (e *PredicateError) Error() string {
	return fmt.Sprintf("predicate %q failed: %v", e.Predicate, e.Err)
}

func (e *PredicateError) Unwrap() error { return e.Err }

// ResolutionFailure lists every candidate the resolver considered and why none was used.
type ResolutionFailure struct {
	Attempts []CandidateAttempt
	// Skipped holds the candidates never probed because the attempt budget ran out.
	Skipped []Candidate
}

func (e *ResolutionFailure) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "no candidate resolved after %d attempt(s)", len(e.Attempts))
	for _, a := range e.Attempts {
		fmt.Fprintf(&sb, "; %s: %s", a.Candidate, a.Reason)
	}
	if len(e.Skipped) > 0 {
		fmt.Fprintf(&sb, "; %d candidate(s) skipped by attempt budget", len(e.Skipped))
	}
	return sb.String()
}

// ActionRejectedError carries every rung error of a fully failed escalation ladder.
type ActionRejectedError struct {
	Target string
	Rungs  []RungAttempt
}

func (e *ActionRejectedError) Error() string {
	parts := make([]string, 0, len(e.Rungs))
	for _, r := range e.Rungs {
		parts = append(parts, fmt.Sprintf("%s: %v", r.Technique, r.Err))
	}
	return fmt.Sprintf("all techniques rejected on %s (%s)", e.Target, strings.Join(parts, "; "))
}

// Unwrap exposes each rung error to errors.Is and errors.As.
func (e *ActionRejectedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Rungs))
	for _, r := range e.Rungs {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}

// PollTimeoutError describes a verification that never became true.
type PollTimeoutError struct {
	Predicate   string
	Elapsed     time.Duration
	Evaluations int
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("predicate %q still false after %v (%d evaluations)", e.Predicate, e.Elapsed, e.Evaluations)
}
