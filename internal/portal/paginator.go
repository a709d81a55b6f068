// internal/portal/paginator.go
package portal

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/portalprobe/internal/interaction"
)

// PaginatorSpec declares a next-page control and the element that shows the current page.
type PaginatorSpec struct {
	Name string
	// NextSelector is the CSS selector of the next control. It is tried first and is
	// also where HasNext reads the disabled state.
	NextSelector string
	// Next lists fallback candidates tried after NextSelector.
	Next      []interaction.Candidate
	Indicator string
	Policy    interaction.RetryPolicy
}

// Paginator advances a paged listing.
type Paginator struct {
	page      *Page
	spec      PaginatorSpec
	next      interaction.Interaction
	indicator string
}

// Paginator builds the control described by spec.
func (p *Page) Paginator(spec PaginatorSpec) (*Paginator, error) {
	if spec.NextSelector == "" || spec.Indicator == "" {
		return nil, errors.New("paginator needs a next selector and a page indicator")
	}
	candidates := append([]interaction.Candidate{
		{Name: "next-selector", Locator: interaction.CSS(spec.NextSelector)},
	}, spec.Next...)

	return &Paginator{
		page:      p,
		spec:      spec,
		indicator: textExpression(spec.Indicator),
		next: interaction.Interaction{
			Intent:     interaction.Intent{Name: "next-" + spec.Name, Role: "next-page"},
			Candidates: candidates,
			Action:     interaction.Action{Kind: interaction.ActionClick},
			Policy:     spec.Policy,
		},
	}, nil
}

// CurrentPage returns the indicator text.
func (g *Paginator) CurrentPage(ctx context.Context) (string, error) {
	v, err := g.page.driver.Evaluate(ctx, g.indicator)
	if err != nil {
		return "", fmt.Errorf("failed to read page indicator: %w", err)
	}
	if v == nil {
		return "", nil
	}
	return fmt.Sprint(v), nil
}

// HasNext reports whether the next control exists and is enabled.
func (g *Paginator) HasNext(ctx context.Context) (bool, error) {
	v, err := g.page.driver.Evaluate(ctx, enabledExpression(g.spec.NextSelector))
	if err != nil {
		return false, fmt.Errorf("failed to read next control state: %w", err)
	}
	b, _ := v.(bool)
	return b, nil
}

// Next moves to the following page. Success means the indicator changed. The success
// predicate is built per call because it captures the indicator value read before the
// click; the rest of the next interaction is fixed when the Paginator is created.
func (g *Paginator) Next(ctx context.Context) (interaction.Outcome, error) {
	before, err := g.CurrentPage(ctx)
	if err != nil {
		return interaction.Outcome{}, err
	}
	changed := interaction.NewPredicate(fmt.Sprintf("page indicator left %q", before), func(ctx context.Context) (bool, error) {
		now, err := g.CurrentPage(ctx)
		if err != nil {
			return false, err
		}
		return now != before, nil
	})
	return g.page.perform(ctx, g.next.WithSuccess(changed))
}
