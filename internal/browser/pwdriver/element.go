// internal/browser/pwdriver/element.go
package pwdriver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"

	"github.com/xkilldash9x/portalprobe/internal/interaction"
)

// tagScript pins the resolved node and returns a short description of it.
const tagScript = `(el, arg) => {
	el.setAttribute(arg.attr, arg.tag);
	let d = el.tagName.toLowerCase();
	if (el.id) d += '#' + el.id;
	const text = (el.innerText || el.value || '').replace(/\s+/g, ' ').trim().slice(0, 40);
	if (text) d += " '" + text + "'";
	return d;
}`

// dispatchScript applies an action with synthetic DOM events only.
const dispatchScript = `(el, arg) => {
	const fire = (type) => el.dispatchEvent(new Event(type, {bubbles: true, cancelable: true}));
	switch (arg.kind) {
	case 'fill': {
		if (typeof el.focus === 'function') el.focus();
		if (el.isContentEditable) {
			el.textContent = arg.value;
		} else if (el instanceof HTMLInputElement || el instanceof HTMLTextAreaElement) {
			const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
			Object.getOwnPropertyDescriptor(proto, 'value').set.call(el, arg.value);
		} else {
			return 'element does not accept text';
		}
		fire('input');
		fire('change');
		return '';
	}
	case 'check':
	case 'uncheck': {
		if (!('checked' in el)) return 'element is not checkable';
		const want = arg.kind === 'check';
		if (el.checked !== want) {
			el.checked = want;
			fire('input');
			fire('change');
		}
		return '';
	}
	default:
		return 'unsupported action ' + arg.kind;
	}
}`

// element addresses a node tagged by Query.
type element struct {
	s       *Session
	locator playwright.Locator
	desc    string
}

var _ interaction.Element = (*element)(nil)

func (e *element) Describe() string { return e.desc }

// attached fails with ErrStaleElement once the pinned node has left the document.
func (e *element) attached(ctx context.Context) error {
	var n int
	err := e.s.call(ctx, func() (err error) {
		n, err = e.locator.Count()
		return err
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return interaction.ErrStaleElement
	}
	return nil
}

// Invoke drives the action through Playwright's input pipeline. Playwright's own
// actionability checks apply unless opts.Force is set.
func (e *element) Invoke(ctx context.Context, action interaction.Action, opts interaction.InvokeOptions) error {
	if err := e.attached(ctx); err != nil {
		return err
	}
	force := playwright.Bool(opts.Force)
	err := e.s.call(ctx, func() error {
		switch action.Kind {
		case interaction.ActionClick:
			return e.locator.Click(playwright.LocatorClickOptions{Force: force, Timeout: timeoutMS(ctx)})
		case interaction.ActionFill:
			return e.locator.Fill(action.Value, playwright.LocatorFillOptions{Force: force, Timeout: timeoutMS(ctx)})
		case interaction.ActionCheck:
			return e.locator.Check(playwright.LocatorCheckOptions{Force: force, Timeout: timeoutMS(ctx)})
		case interaction.ActionUncheck:
			return e.locator.Uncheck(playwright.LocatorUncheckOptions{Force: force, Timeout: timeoutMS(ctx)})
		default:
			return fmt.Errorf("unsupported action %q", action.Kind)
		}
	})
	return classify(err)
}

// Dispatch applies the action with synthetic DOM events.
func (e *element) Dispatch(ctx context.Context, action interaction.Action) error {
	if err := e.attached(ctx); err != nil {
		return err
	}
	if action.Kind == interaction.ActionClick {
		return classify(e.s.call(ctx, func() error {
			return e.locator.DispatchEvent("click", nil, playwright.LocatorDispatchEventOptions{Timeout: timeoutMS(ctx)})
		}))
	}

	var res any
	err := e.s.call(ctx, func() (err error) {
		res, err = e.locator.Evaluate(dispatchScript, map[string]string{"kind": string(action.Kind), "value": action.Value})
		return err
	})
	if err != nil {
		return classify(err)
	}
	if msg, _ := res.(string); msg != "" {
		return errors.New(msg)
	}
	return nil
}

// classify maps Playwright's actionability log onto the engine's sentinel errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "intercepts pointer events"):
		return fmt.Errorf("%w: %v", interaction.ErrObscured, err)
	case strings.Contains(msg, "not attached to the DOM"), strings.Contains(msg, "Element is not attached"):
		return fmt.Errorf("%w: %v", interaction.ErrStaleElement, err)
	}
	return err
}
