// internal/portal/search.go
package portal

import (
	"context"
	"errors"

	"github.com/xkilldash9x/portalprobe/internal/interaction"
)

// SearchBoxSpec declares a search input, its submit control and the three states a
// submitted search can settle in.
type SearchBoxSpec struct {
	Name   string
	Input  []interaction.Candidate
	Field  interaction.Locator
	Submit []interaction.Candidate

	Results         interaction.Locator
	ValidationError interaction.Locator
	EmptyState      interaction.Locator
	// Permissive accepts the empty state as a successful search.
	Permissive bool
	Policy     interaction.RetryPolicy
}

// SearchBox submits queries.
type SearchBox struct {
	page       *Page
	spec       SearchBoxSpec
	fill       interaction.Interaction
	submit     interaction.Interaction
	strict     interaction.Predicate
	permissive interaction.Predicate
}

// SearchBox builds the control described by spec.
func (p *Page) SearchBox(spec SearchBoxSpec) (*SearchBox, error) {
	if len(spec.Input) == 0 || len(spec.Submit) == 0 {
		return nil, errors.New("search box needs input and submit candidates")
	}
	results := interaction.Visible(p.driver, spec.Results)
	invalid := interaction.Visible(p.driver, spec.ValidationError)
	empty := interaction.Visible(p.driver, spec.EmptyState)

	return &SearchBox{
		page: p,
		spec: spec,
		fill: interaction.Interaction{
			Intent:     interaction.Intent{Name: "type-" + spec.Name, Role: "type-query"},
			Candidates: spec.Input,
			Action:     interaction.Action{Kind: interaction.ActionFill},
			Policy:     spec.Policy,
		},
		submit: interaction.Interaction{
			Intent:     interaction.Intent{Name: "submit-" + spec.Name, Role: "submit-search"},
			Candidates: spec.Submit,
			Action:     interaction.Action{Kind: interaction.ActionClick},
			Policy:     spec.Policy,
		},
		strict:     interaction.Any("results or validation error", results, invalid),
		permissive: interaction.Any("results, validation error or empty state", results, invalid, empty),
	}, nil
}

// StrictPredicate is true once results or a validation error are shown. An empty state
// does not count, so a backend that silently returns nothing fails the search.
func (s *SearchBox) StrictPredicate() interaction.Predicate { return s.strict }

// PermissivePredicate also accepts the empty state.
func (s *SearchBox) PermissivePredicate() interaction.Predicate { return s.permissive }

// Search types query and submits it. The outcome of each step that ran is returned.
func (s *SearchBox) Search(ctx context.Context, query string) ([]interaction.Outcome, error) {
	settled := s.strict
	if s.spec.Permissive {
		settled = s.permissive
	}
	steps := []interaction.Interaction{
		s.fill.WithValue(query).WithSuccess(valueEquals(s.page.driver, s.spec.Field, query)),
		s.submit.WithSuccess(settled),
	}

	outcomes := make([]interaction.Outcome, 0, len(steps))
	for _, in := range steps {
		out, err := s.page.perform(ctx, in)
		outcomes = append(outcomes, out)
		if err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}
