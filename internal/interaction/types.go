// internal/interaction/types.go
package interaction

import (
	"fmt"
	"strings"
	"time"
)

// Intent identifies a logical user action independent of the markup that currently
// implements it. Intents are declared once per control by the page-object layer.
type Intent struct {
	Name        string
	Description string
	// Role is the target role of the action, e.g. "open-multiselect".
	Role string
}

func (i Intent) String() string {
	if i.Role == "" {
		return i.Name
	}
	return fmt.Sprintf("%s (%s)", i.Name, i.Role)
}

// LocatorKind tells a driver adapter how to interpret a Locator's value.
type LocatorKind string

const (
	ByCSS    LocatorKind = "css"
	ByXPath  LocatorKind = "xpath"
	ByText   LocatorKind = "text"
	ByRole   LocatorKind = "role"
	ByTestID LocatorKind = "testid"
)

// ParseLocatorKind converts a user supplied string into a LocatorKind.
func ParseLocatorKind(s string) (LocatorKind, error) {
	switch k := LocatorKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ByCSS, ByXPath, ByText, ByRole, ByTestID:
		return k, nil
	case "":
		return ByCSS, nil
	default:
		return "", fmt.Errorf("unknown locator kind %q", s)
	}
}

// Locator is an opaque description of how to find an element. The engine never
// interprets it; driver adapters do.
type Locator struct {
	By    LocatorKind
	Value string
	// Name narrows role locators to an accessible name.
	Name string
}

func (l Locator) String() string {
	if l.Name != "" {
		return fmt.Sprintf("%s=%s[name=%q]", l.By, l.Value, l.Name)
	}
	return fmt.Sprintf("%s=%s", l.By, l.Value)
}

// CSS is shorthand for a CSS selector locator.
func CSS(selector string) Locator { return Locator{By: ByCSS, Value: selector} }

// XPath is shorthand for an XPath locator.
func XPath(expr string) Locator { return Locator{By: ByXPath, Value: expr} }

// Text is shorthand for a visible-text locator.
func Text(text string) Locator { return Locator{By: ByText, Value: text} }

// Role is shorthand for an ARIA role locator with an optional accessible name.
func Role(role, name string) Locator { return Locator{By: ByRole, Value: role, Name: name} }

// TestID is shorthand for a data-testid locator.
func TestID(id string) Locator { return Locator{By: ByTestID, Value: id} }

// ActionKind is the primitive verb applied to a resolved element.
type ActionKind string

const (
	ActionClick   ActionKind = "click"
	ActionFill    ActionKind = "fill"
	ActionCheck   ActionKind = "check"
	ActionUncheck ActionKind = "uncheck"
)

// ParseActionKind converts a user supplied string into an ActionKind.
func ParseActionKind(s string) (ActionKind, error) {
	switch k := ActionKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ActionClick, ActionFill, ActionCheck, ActionUncheck:
		return k, nil
	default:
		return "", fmt.Errorf("unknown action kind %q", s)
	}
}

// Action is an ActionKind plus its argument (the text for fill).
type Action struct {
	Kind  ActionKind
	Value string
}

func (a Action) String() string {
	if a.Kind == ActionFill {
		return fmt.Sprintf("%s(%d chars)", a.Kind, len(a.Value))
	}
	return string(a.Kind)
}

// Candidate is one way to locate the element behind an Intent. The position of a
// candidate in its list encodes confidence: structural matches first, text matches last.
type Candidate struct {
	Name    string
	Locator Locator
	// Hint overrides the interaction's action kind for this candidate only.
	Hint ActionKind
}

func (c Candidate) String() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Locator.String()
}

// actionFor returns the action to apply when this candidate is the resolved target.
func (c Candidate) actionFor(a Action) Action {
	if c.Hint != "" {
		a.Kind = c.Hint
	}
	return a
}

// RetryPolicy governs how long and how often the engine tries.
type RetryPolicy struct {
	PollInterval time.Duration
	Timeout      time.Duration
	// MaxStrategyAttempts caps how many candidates the resolver may probe. Zero means all.
	MaxStrategyAttempts int
}

// DefaultRetryPolicy is used when an Interaction does not carry its own policy.
var DefaultRetryPolicy = RetryPolicy{
	PollInterval: 100 * time.Millisecond,
	Timeout:      5 * time.Second,
}

// Validate reports whether the policy can be executed.
func (p RetryPolicy) Validate() error {
	if p.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", p.PollInterval)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %v", p.Timeout)
	}
	if p.MaxStrategyAttempts < 0 {
		return fmt.Errorf("max strategy attempts must not be negative, got %d", p.MaxStrategyAttempts)
	}
	return nil
}

func (p RetryPolicy) isZero() bool {
	return p.PollInterval == 0 && p.Timeout == 0 && p.MaxStrategyAttempts == 0
}

// Interaction is the full declaration of one logical UI action: what to find, what to
// do with it, and how to know it worked. Page objects build these at construction time.
type Interaction struct {
	Intent     Intent
	Candidates []Candidate
	Action     Action
	// Success is polled after the action. Required.
	Success Predicate
	// AlreadySatisfied, when set and true before resolution, short-circuits the call.
	AlreadySatisfied *Predicate
	// Policy falls back to the orchestrator default when zero.
	Policy RetryPolicy
}

// WithValue returns a copy of the interaction whose action carries value.
func (in Interaction) WithValue(value string) Interaction {
	in.Action.Value = value
	return in
}

// WithSuccess returns a copy of the interaction verified by p.
func (in Interaction) WithSuccess(p Predicate) Interaction {
	in.Success = p
	return in
}

// Phase is a state of the per-call orchestration state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseResolving
	PhaseActing
	PhaseVerifying
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseResolving:
		return "resolving"
	case PhaseActing:
		return "acting"
	case PhaseVerifying:
		return "verifying"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// FailureKind classifies a failed Outcome.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// StrategyExhausted means no candidate resolved; the control is absent or the markup changed.
	StrategyExhausted
	// ActionRejected means a target resolved but no escalation rung could act on it.
	ActionRejected
	// PollTimeout means the action ran but its observable effect never appeared.
	PollTimeout
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case StrategyExhausted:
		return "strategy_exhausted"
	case ActionRejected:
		return "action_rejected"
	case PollTimeout:
		return "poll_timeout"
	default:
		return fmt.Sprintf("failure(%d)", int(k))
	}
}

// MarshalText lets reports carry the readable name.
func (k FailureKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// MarshalText lets reports carry the readable name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }
