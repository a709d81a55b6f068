// internal/interaction/interactiontest/page.go

// Package interactiontest provides an in-memory Driver for exercising the interaction
// engine and the page objects built on it without a browser.
package interactiontest

import (
	"context"
	"fmt"
	"sync"

	"github.com/xkilldash9x/portalprobe/internal/interaction"
)

// Invocation records one call made on a fake element.
type Invocation struct {
	Technique interaction.Technique
	Action    interaction.Action
}

// Page is a fake document. Elements are keyed by their exact Locator.
type Page struct {
	mu       sync.Mutex
	elements map[interaction.Locator]*Element
	scripts  map[string]func() (any, error)
	queries  []interaction.Locator
	closed   bool
}

var _ interaction.Driver = (*Page)(nil)

// NewPage creates an empty page.
func NewPage() *Page {
	return &Page{
		elements: make(map[interaction.Locator]*Element),
		scripts:  make(map[string]func() (any, error)),
	}
}

// Add registers a visible element under loc and returns it for further setup.
func (p *Page) Add(loc interaction.Locator, name string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	el := &Element{page: p, name: name, visible: true}
	p.elements[loc] = el
	return el
}

// AddInvalid registers loc as a locator the document cannot evaluate.
func (p *Page) AddInvalid(loc interaction.Locator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[loc] = &Element{page: p, name: loc.String(), invalid: true}
}

// SetScript answers Evaluate(expression) with fn.
func (p *Page) SetScript(expression string, fn func() (any, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[expression] = fn
}

// Close makes every subsequent driver call fail with ErrDriverUnavailable.
func (p *Page) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// Queries returns the locators passed to Query, in call order.
func (p *Page) Queries() []interaction.Locator {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]interaction.Locator, len(p.queries))
	copy(out, p.queries)
	return out
}

// Query implements interaction.Driver. It never waits: absent or hidden elements
// fail immediately with ErrNoMatch.
func (p *Page) Query(ctx context.Context, loc interaction.Locator) (interaction.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, interaction.ErrDriverUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.queries = append(p.queries, loc)
	el, ok := p.elements[loc]
	switch {
	case !ok:
		return nil, interaction.ErrNoMatch
	case el.invalid:
		return nil, fmt.Errorf("%s: %w", loc, interaction.ErrInvalidLocator)
	case !el.visible:
		return nil, interaction.ErrNoMatch
	}
	return el, nil
}

// Visible implements interaction.Driver.
func (p *Page) Visible(ctx context.Context, loc interaction.Locator) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false, interaction.ErrDriverUnavailable
	}
	el, ok := p.elements[loc]
	if !ok || el.invalid {
		return false, nil
	}
	return el.visible, nil
}

// Evaluate implements interaction.Driver.
func (p *Page) Evaluate(ctx context.Context, expression string) (any, error) {
	p.mu.Lock()
	closed := p.closed
	fn, ok := p.scripts[expression]
	p.mu.Unlock()
	if closed {
		return nil, interaction.ErrDriverUnavailable
	}
	if !ok {
		return nil, fmt.Errorf("no script registered for %q", expression)
	}
	return fn()
}

// Element is a fake DOM node. Its fields are guarded by the owning page's mutex.
type Element struct {
	page    *Page
	name    string
	visible bool
	invalid bool

	directErr    error
	forcedErr    error
	syntheticErr error
	onAction     func(interaction.Action)

	value       string
	checked     bool
	invocations []Invocation
}

// Describe implements interaction.Element.
func (e *Element) Describe() string { return e.name }

// SetVisible shows or hides the element.
func (e *Element) SetVisible(v bool) *Element {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.visible = v
	return e
}

// FailDirect makes the direct rung return err.
func (e *Element) FailDirect(err error) *Element {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.directErr = err
	return e
}

// FailForced makes the forced rung return err.
func (e *Element) FailForced(err error) *Element {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.forcedErr = err
	return e
}

// FailSynthetic makes the synthetic rung return err.
func (e *Element) FailSynthetic(err error) *Element {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.syntheticErr = err
	return e
}

// OnAction registers the effect a successful action has on the page. fn runs without
// the page lock held, so it may call back into the page.
func (e *Element) OnAction(fn func(interaction.Action)) *Element {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.onAction = fn
	return e
}

// Value returns the last filled value.
func (e *Element) Value() string {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.value
}

// Checked reports the checkbox state.
func (e *Element) Checked() bool {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.checked
}

// Invocations returns every invoke and dispatch made on the element, in order.
func (e *Element) Invocations() []Invocation {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	out := make([]Invocation, len(e.invocations))
	copy(out, e.invocations)
	return out
}

// Invoke implements interaction.Element.
func (e *Element) Invoke(ctx context.Context, action interaction.Action, opts interaction.InvokeOptions) error {
	tech := interaction.TechniqueDirect
	if opts.Force {
		tech = interaction.TechniqueForced
	}
	return e.apply(ctx, tech, action)
}

// Dispatch implements interaction.Element.
func (e *Element) Dispatch(ctx context.Context, action interaction.Action) error {
	return e.apply(ctx, interaction.TechniqueSynthetic, action)
}

func (e *Element) apply(ctx context.Context, tech interaction.Technique, action interaction.Action) error {
	e.page.mu.Lock()
	if e.page.closed {
		e.page.mu.Unlock()
		return interaction.ErrDriverUnavailable
	}
	e.invocations = append(e.invocations, Invocation{Technique: tech, Action: action})
	var err error
	switch tech {
	case interaction.TechniqueDirect:
		err = e.directErr
	case interaction.TechniqueForced:
		err = e.forcedErr
	case interaction.TechniqueSynthetic:
		err = e.syntheticErr
	}
	if err != nil {
		e.page.mu.Unlock()
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		e.page.mu.Unlock()
		return ctxErr
	}
	switch action.Kind {
	case interaction.ActionFill:
		e.value = action.Value
	case interaction.ActionCheck:
		e.checked = true
	case interaction.ActionUncheck:
		e.checked = false
	}
	fn := e.onAction
	e.page.mu.Unlock()

	if fn != nil {
		fn(action)
	}
	return nil
}
