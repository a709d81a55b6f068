// internal/portal/dropdown.go
package portal

import (
	"context"
	"errors"

	"github.com/xkilldash9x/portalprobe/internal/interaction"
)

// DropdownSpec declares a trigger that shows and hides a panel. Multiselects, menus and
// filter popovers all follow this shape.
type DropdownSpec struct {
	Name    string
	Trigger []interaction.Candidate
	// CloseWith defaults to Trigger when empty.
	CloseWith []interaction.Candidate
	Panel     interaction.Locator
	Policy    interaction.RetryPolicy
}

// Dropdown opens and closes a panel. Both directions are guarded by the panel's current
// state, so calling Open on an open dropdown never toggles it shut.
type Dropdown struct {
	page  *Page
	panel interaction.Locator
	open  interaction.Interaction
	close interaction.Interaction
}

// Dropdown builds the control described by spec.
func (p *Page) Dropdown(spec DropdownSpec) (*Dropdown, error) {
	if len(spec.Trigger) == 0 {
		return nil, errors.New("dropdown needs at least one trigger candidate")
	}
	closeWith := spec.CloseWith
	if len(closeWith) == 0 {
		closeWith = spec.Trigger
	}
	visible := interaction.Visible(p.driver, spec.Panel)
	hidden := interaction.Hidden(p.driver, spec.Panel)

	return &Dropdown{
		page:  p,
		panel: spec.Panel,
		open: interaction.Interaction{
			Intent:           interaction.Intent{Name: "open-" + spec.Name, Role: "open-dropdown"},
			Candidates:       spec.Trigger,
			Action:           interaction.Action{Kind: interaction.ActionClick},
			Success:          visible,
			AlreadySatisfied: visible.Ptr(),
			Policy:           spec.Policy,
		},
		close: interaction.Interaction{
			Intent:           interaction.Intent{Name: "close-" + spec.Name, Role: "close-dropdown"},
			Candidates:       closeWith,
			Action:           interaction.Action{Kind: interaction.ActionClick},
			Success:          hidden,
			AlreadySatisfied: hidden.Ptr(),
			Policy:           spec.Policy,
		},
	}, nil
}

// Open shows the panel.
func (d *Dropdown) Open(ctx context.Context) (interaction.Outcome, error) {
	return d.page.perform(ctx, d.open)
}

// Close hides the panel.
func (d *Dropdown) Close(ctx context.Context) (interaction.Outcome, error) {
	return d.page.perform(ctx, d.close)
}

// IsOpen reports whether the panel is currently visible.
func (d *Dropdown) IsOpen(ctx context.Context) (bool, error) {
	return d.page.driver.Visible(ctx, d.panel)
}
