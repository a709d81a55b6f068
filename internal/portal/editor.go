// internal/portal/editor.go
package portal

import (
	"context"
	"errors"

	"github.com/xkilldash9x/portalprobe/internal/interaction"
)

// InlineEditorSpec declares an inline rename or create field: a control that reveals an
// input, the input itself and a control that commits it.
type InlineEditorSpec struct {
	Name     string
	Activate []interaction.Candidate
	Input    []interaction.Candidate
	// Field is the locator that is visible while the editor is active. It also verifies
	// the typed value when it has a CSS form.
	Field   interaction.Locator
	Confirm []interaction.Candidate
	// Row locates the element that displays a committed value.
	Row    func(text string) interaction.Locator
	Policy interaction.RetryPolicy
}

// InlineEditor edits a value in place.
type InlineEditor struct {
	page     *Page
	spec     InlineEditorSpec
	activate interaction.Interaction
	fill     interaction.Interaction
	confirm  interaction.Interaction
}

// InlineEditor builds the control described by spec.
func (p *Page) InlineEditor(spec InlineEditorSpec) (*InlineEditor, error) {
	switch {
	case len(spec.Activate) == 0, len(spec.Input) == 0, len(spec.Confirm) == 0:
		return nil, errors.New("inline editor needs activate, input and confirm candidates")
	case spec.Row == nil:
		return nil, errors.New("inline editor needs a row locator")
	}
	active := interaction.Visible(p.driver, spec.Field)
	return &InlineEditor{
		page: p,
		spec: spec,
		activate: interaction.Interaction{
			Intent:           interaction.Intent{Name: "activate-" + spec.Name, Role: "open-inline-editor"},
			Candidates:       spec.Activate,
			Action:           interaction.Action{Kind: interaction.ActionClick},
			Success:          active,
			AlreadySatisfied: active.Ptr(),
			Policy:           spec.Policy,
		},
		fill: interaction.Interaction{
			Intent:     interaction.Intent{Name: "fill-" + spec.Name, Role: "type-value"},
			Candidates: spec.Input,
			Action:     interaction.Action{Kind: interaction.ActionFill},
			Policy:     spec.Policy,
		},
		confirm: interaction.Interaction{
			Intent:     interaction.Intent{Name: "confirm-" + spec.Name, Role: "commit-value"},
			Candidates: spec.Confirm,
			Action:     interaction.Action{Kind: interaction.ActionClick},
			Policy:     spec.Policy,
		},
	}, nil
}

// Submit activates the editor, types text and commits it. It returns the outcome of
// every step that ran; the last one explains a failure.
func (e *InlineEditor) Submit(ctx context.Context, text string) ([]interaction.Outcome, error) {
	row := interaction.Visible(e.page.driver, e.spec.Row(text))
	steps := []interaction.Interaction{
		e.activate,
		e.fill.WithValue(text).WithSuccess(valueEquals(e.page.driver, e.spec.Field, text)),
		e.confirm.WithSuccess(row),
	}

	outcomes := make([]interaction.Outcome, 0, len(steps))
	for _, in := range steps {
		out, err := e.page.perform(ctx, in)
		outcomes = append(outcomes, out)
		if err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}
