// internal/scenario/scenario.go
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/portalprobe/internal/interaction"
)

// Scenario is one scripted walk through a portal, decoded from YAML.
type Scenario struct {
	Name   string      `yaml:"name" json:"name"`
	URL    string      `yaml:"url" json:"url"`
	Policy *PolicySpec `yaml:"policy,omitempty" json:"policy,omitempty"`
	Steps  []Step      `yaml:"steps" json:"steps"`

	// Source is the file the scenario was loaded from.
	Source string `yaml:"-" json:"source,omitempty"`
}

// PolicySpec overrides the retry policy for every step of a scenario. Omitted fields
// keep their default values.
type PolicySpec struct {
	PollInterval        time.Duration  `yaml:"poll_interval,omitempty" json:"poll_interval,omitempty"`
	Timeout             *time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxStrategyAttempts int            `yaml:"max_strategy_attempts,omitempty" json:"max_strategy_attempts,omitempty"`
}

// Step declares one interaction.
type Step struct {
	Intent      string          `yaml:"intent" json:"intent"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
	Candidates  []CandidateSpec `yaml:"candidates" json:"candidates"`
	Action      string          `yaml:"action" json:"action"`
	Value       string          `yaml:"value,omitempty" json:"value,omitempty"`
	Success     *PredicateSpec  `yaml:"success" json:"success"`
	Already     *PredicateSpec  `yaml:"already,omitempty" json:"already,omitempty"`
}

// CandidateSpec is one way to find a step's element.
type CandidateSpec struct {
	Name  string `yaml:"name" json:"name"`
	By    string `yaml:"by,omitempty" json:"by,omitempty"`
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
	Hint  string `yaml:"hint,omitempty" json:"hint,omitempty"`
}

// Locator converts the candidate's locator fields.
func (c CandidateSpec) Locator() (interaction.Locator, error) {
	return LocatorSpec{By: c.By, Value: c.Value, Label: c.Label}.Locator()
}

// LocatorSpec describes a locator. A bare YAML string is read as a CSS selector.
type LocatorSpec struct {
	By    string `yaml:"by,omitempty" json:"by,omitempty"`
	Value string `yaml:"value" json:"value"`
	// Label narrows role locators to an accessible name.
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
}

// UnmarshalYAML accepts both the mapping form and the scalar shorthand.
func (l *LocatorSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		l.By = string(interaction.ByCSS)
		l.Value = node.Value
		return nil
	}
	type plain LocatorSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*l = LocatorSpec(p)
	return nil
}

// Locator converts the YAML locator into an interaction.Locator.
func (l LocatorSpec) Locator() (interaction.Locator, error) {
	kind, err := interaction.ParseLocatorKind(l.By)
	if err != nil {
		return interaction.Locator{}, err
	}
	if strings.TrimSpace(l.Value) == "" {
		return interaction.Locator{}, errors.New("locator value is empty")
	}
	return interaction.Locator{By: kind, Value: l.Value, Name: l.Label}, nil
}

// PredicateSpec declares a condition. Exactly one field must be set.
type PredicateSpec struct {
	Visible *LocatorSpec    `yaml:"visible,omitempty" json:"visible,omitempty"`
	Hidden  *LocatorSpec    `yaml:"hidden,omitempty" json:"hidden,omitempty"`
	Script  string          `yaml:"script,omitempty" json:"script,omitempty"`
	All     []PredicateSpec `yaml:"all,omitempty" json:"all,omitempty"`
	Any     []PredicateSpec `yaml:"any,omitempty" json:"any,omitempty"`
	Not     *PredicateSpec  `yaml:"not,omitempty" json:"not,omitempty"`
}

func (p PredicateSpec) validate() error {
	set := 0
	for _, ok := range []bool{p.Visible != nil, p.Hidden != nil, p.Script != "", len(p.All) > 0, len(p.Any) > 0, p.Not != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("predicate must set exactly one of visible, hidden, script, all, any, not (got %d)", set)
	}
	switch {
	case p.Visible != nil:
		_, err := p.Visible.Locator()
		return err
	case p.Hidden != nil:
		_, err := p.Hidden.Locator()
		return err
	case p.Not != nil:
		return p.Not.validate()
	}
	for _, sub := range append(append([]PredicateSpec{}, p.All...), p.Any...) {
		if err := sub.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Load reads and validates the scenario file at path. A leading ~ is expanded.
func Load(path string) (*Scenario, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand scenario path %s: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	s.Source = expanded
	return s, nil
}

// Parse decodes and validates a single YAML scenario document. Unknown keys are errors.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("scenario file is empty")
		}
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate reports the first problem that would stop the scenario from running.
func (s *Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("scenario name is required")
	}
	if strings.TrimSpace(s.URL) == "" {
		return errors.New("scenario url is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("scenario declares no steps")
	}
	if s.Policy != nil {
		if err := s.Policy.retryPolicy(interaction.DefaultRetryPolicy).Validate(); err != nil {
			return fmt.Errorf("invalid policy: %w", err)
		}
	}
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Intent, err)
		}
	}
	return nil
}

func (st Step) validate() error {
	if strings.TrimSpace(st.Intent) == "" {
		return errors.New("intent is required")
	}
	if len(st.Candidates) == 0 {
		return interaction.ErrNoCandidates
	}
	if _, err := interaction.ParseActionKind(st.Action); err != nil {
		return err
	}
	for i, c := range st.Candidates {
		if _, err := c.Locator(); err != nil {
			return fmt.Errorf("candidate %d: %w", i+1, err)
		}
		if c.Hint != "" {
			if _, err := interaction.ParseActionKind(c.Hint); err != nil {
				return fmt.Errorf("candidate %d hint: %w", i+1, err)
			}
		}
	}
	if st.Success == nil {
		return interaction.ErrNoSuccessPredicate
	}
	if err := st.Success.validate(); err != nil {
		return fmt.Errorf("success: %w", err)
	}
	if st.Already != nil {
		if err := st.Already.validate(); err != nil {
			return fmt.Errorf("already: %w", err)
		}
	}
	return nil
}

// retryPolicy overlays the configured fields on base.
func (p PolicySpec) retryPolicy(base interaction.RetryPolicy) interaction.RetryPolicy {
	if p.PollInterval != 0 {
		base.PollInterval = p.PollInterval
	}
	if p.Timeout != nil {
		base.Timeout = *p.Timeout
	}
	if p.MaxStrategyAttempts != 0 {
		base.MaxStrategyAttempts = p.MaxStrategyAttempts
	}
	return base
}
