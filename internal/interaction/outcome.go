// internal/interaction/outcome.go
package interaction

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the structured result of one Perform call. It is created once and never
// modified afterwards.
type Outcome struct {
	OperationID string `json:"operation_id"`
	Intent      Intent `json:"intent"`
	Succeeded   bool   `json:"succeeded"`
	// ShortCircuited is set when the already-satisfied predicate held on entry.
	ShortCircuited bool          `json:"short_circuited,omitempty"`
	StrategyUsed   *Candidate    `json:"strategy_used"`
	Elapsed        time.Duration `json:"elapsed"`
	FailureKind    FailureKind   `json:"failure_kind"`
	// Phases lists the states visited, starting at PhaseIdle.
	Phases     []Phase        `json:"phases"`
	Resolution Resolution     `json:"resolution"`
	Action     *ActionOutcome `json:"action,omitempty"`
	Poll       *PollOutcome   `json:"poll,omitempty"`

	failure error
}

// Err returns nil for a successful outcome and a descriptive error wrapping the typed
// failure (*ResolutionFailure, *ActionRejectedError or *PollTimeoutError) otherwise.
func (o Outcome) Err() error {
	if o.Succeeded {
		return nil
	}
	if o.failure == nil {
		return fmt.Errorf("%s: %s", o.Intent, o.FailureKind)
	}
	return fmt.Errorf("%s: %s: %w", o.Intent, o.FailureKind, o.failure)
}

// Report renders the outcome as a multi-line diagnostic suitable for a test failure
// message. It names every candidate tried, every rung attempted and how long polling ran.
func (o Outcome) Report() string {
	var sb strings.Builder
	status := "succeeded"
	if !o.Succeeded {
		status = "failed (" + o.FailureKind.String() + ")"
	}
	fmt.Fprintf(&sb, "intent %s %s in %v [op %s]\n", o.Intent, status, o.Elapsed.Round(time.Millisecond), o.OperationID)

	if o.ShortCircuited {
		sb.WriteString("  already satisfied on entry, no action taken\n")
		return sb.String()
	}

	if len(o.Resolution.Attempts) > 0 {
		sb.WriteString("  candidates:\n")
		for i, a := range o.Resolution.Attempts {
			fmt.Fprintf(&sb, "    %d. %s [%s] -> %s\n", i+1, a.Candidate, a.Candidate.Locator, a.Reason)
		}
		for _, c := range o.Resolution.Skipped {
			fmt.Fprintf(&sb, "    -  %s [%s] -> skipped (attempt budget)\n", c, c.Locator)
		}
	}

	if o.Action != nil {
		sb.WriteString("  techniques:\n")
		for _, r := range o.Action.Rungs {
			if r.Err == nil {
				fmt.Fprintf(&sb, "    %s -> ok\n", r.Technique)
				continue
			}
			fmt.Fprintf(&sb, "    %s -> %v\n", r.Technique, r.Err)
		}
	}

	if o.Poll != nil {
		verdict := "satisfied"
		if !o.Poll.Satisfied {
			verdict = "never satisfied"
		}
		fmt.Fprintf(&sb, "  verification %q %s after %d evaluation(s) over %v\n",
			o.Poll.Predicate, verdict, o.Poll.Evaluations, o.Poll.Elapsed.Round(time.Millisecond))
	}
	return sb.String()
}

// AttemptedCandidates returns the candidates probed, in order.
func (o Outcome) AttemptedCandidates() []Candidate {
	out := make([]Candidate, 0, len(o.Resolution.Attempts))
	for _, a := range o.Resolution.Attempts {
		out = append(out, a.Candidate)
	}
	return out
}
