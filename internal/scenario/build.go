// internal/scenario/build.go
package scenario

import (
	"fmt"

	"github.com/xkilldash9x/portalprobe/internal/interaction"
)

// Build turns the steps of s into interactions bound to d. A scenario policy is
// overlaid on interaction.DefaultRetryPolicy.
func Build(d interaction.Driver, s *Scenario) ([]interaction.Interaction, error) {
	return build(d, s, interaction.DefaultRetryPolicy)
}

// build overlays the scenario policy on base. Steps of a scenario without a policy
// carry none and use the orchestrator default.
func build(d interaction.Driver, s *Scenario, base interaction.RetryPolicy) ([]interaction.Interaction, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	var policy interaction.RetryPolicy
	if s.Policy != nil {
		policy = s.Policy.retryPolicy(base)
	}

	out := make([]interaction.Interaction, 0, len(s.Steps))
	for i, st := range s.Steps {
		in, err := st.interaction(d)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, st.Intent, err)
		}
		in.Policy = policy
		out = append(out, in)
	}
	return out, nil
}

func (st Step) interaction(d interaction.Driver) (interaction.Interaction, error) {
	kind, err := interaction.ParseActionKind(st.Action)
	if err != nil {
		return interaction.Interaction{}, err
	}
	candidates := make([]interaction.Candidate, 0, len(st.Candidates))
	for _, c := range st.Candidates {
		loc, err := c.Locator()
		if err != nil {
			return interaction.Interaction{}, err
		}
		var hint interaction.ActionKind
		if c.Hint != "" {
			if hint, err = interaction.ParseActionKind(c.Hint); err != nil {
				return interaction.Interaction{}, err
			}
		}
		candidates = append(candidates, interaction.Candidate{Name: c.Name, Locator: loc, Hint: hint})
	}

	success, err := st.Success.predicate(d)
	if err != nil {
		return interaction.Interaction{}, fmt.Errorf("success: %w", err)
	}
	in := interaction.Interaction{
		Intent:     interaction.Intent{Name: st.Intent, Description: st.Description},
		Candidates: candidates,
		Action:     interaction.Action{Kind: kind, Value: st.Value},
		Success:    success,
	}
	if st.Already != nil {
		already, err := st.Already.predicate(d)
		if err != nil {
			return interaction.Interaction{}, fmt.Errorf("already: %w", err)
		}
		in.AlreadySatisfied = already.Ptr()
	}
	return in, nil
}

func (p PredicateSpec) predicate(d interaction.Driver) (interaction.Predicate, error) {
	if err := p.validate(); err != nil {
		return interaction.Predicate{}, err
	}
	switch {
	case p.Visible != nil:
		loc, err := p.Visible.Locator()
		return interaction.Visible(d, loc), err
	case p.Hidden != nil:
		loc, err := p.Hidden.Locator()
		return interaction.Hidden(d, loc), err
	case p.Script != "":
		return interaction.Script(d, "script "+p.Script, p.Script), nil
	case p.Not != nil:
		inner, err := p.Not.predicate(d)
		return interaction.Not(inner), err
	case len(p.All) > 0:
		subs, err := predicates(d, p.All)
		return interaction.All("", subs...), err
	default:
		subs, err := predicates(d, p.Any)
		return interaction.Any("", subs...), err
	}
}

func predicates(d interaction.Driver, specs []PredicateSpec) ([]interaction.Predicate, error) {
	out := make([]interaction.Predicate, 0, len(specs))
	for _, s := range specs {
		p, err := s.predicate(d)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
