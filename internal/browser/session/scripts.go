// internal/browser/session/scripts.go
package session

import (
	"fmt"

	json "github.com/json-iterator/go"
)

// tagAttribute marks the element a Query resolved so later actions can address it
// with a plain CSS selector.
const tagAttribute = "data-portalprobe-id"

// jsHelpers is shared by the finder and the action scripts.
const jsHelpers = `
const norm = (s) => (s || '').replace(/\s+/g, ' ').trim();
const isVisible = (el) => {
	if (!el || !el.isConnected) return false;
	const style = window.getComputedStyle(el);
	if (style.display === 'none' || style.visibility === 'hidden' || parseFloat(style.opacity) === 0) return false;
	const r = el.getBoundingClientRect();
	return r.width > 0 && r.height > 0;
};
const describe = (el) => {
	let d = el.tagName.toLowerCase();
	if (el.id) d += '#' + el.id;
	const text = norm(el.innerText || el.value || '').slice(0, 40);
	if (text) d += " '" + text + "'";
	return d;
};
`

// finderScript locates the first visible element matching a locator. Text matches pick
// the deepest element containing the text; role matches honor explicit and implicit
// roles plus an optional accessible name. The result is {found, invalid, error, description}.
const finderScript = `(() => {
	const spec = %s;
` + jsHelpers + `
	const implicitRoles = {
		button: 'button, input[type=button], input[type=submit], input[type=reset]',
		link: 'a[href]',
		checkbox: 'input[type=checkbox]',
		radio: 'input[type=radio]',
		textbox: 'input:not([type]), input[type=text], input[type=email], input[type=search], input[type=tel], input[type=url], input[type=password], textarea',
		combobox: 'select:not([multiple])',
		listbox: 'select[multiple]',
		option: 'option',
		heading: 'h1, h2, h3, h4, h5, h6',
		dialog: 'dialog',
		navigation: 'nav',
		list: 'ul, ol',
		listitem: 'li',
		row: 'tr',
		cell: 'td',
		table: 'table',
	};
	const accessibleName = (el) => {
		const label = el.getAttribute('aria-label');
		if (label) return norm(label);
		const by = el.getAttribute('aria-labelledby');
		if (by) return norm(by.split(/\s+/).map(id => (document.getElementById(id) || {}).textContent || '').join(' '));
		if (el.labels && el.labels.length) return norm(Array.from(el.labels).map(l => l.textContent).join(' '));
		if (el.tagName === 'INPUT' && ['button', 'submit', 'reset'].includes(el.type)) return norm(el.value);
		return norm(el.textContent) || norm(el.getAttribute('title')) || norm(el.getAttribute('placeholder'));
	};
	const byText = (text) => {
		const want = norm(text).toLowerCase();
		const skip = ['SCRIPT', 'STYLE', 'NOSCRIPT', 'TEMPLATE', 'HEAD', 'TITLE'];
		const all = document.body ? Array.from(document.body.querySelectorAll('*')) : [];
		const hits = all.filter(el => !skip.includes(el.tagName) && norm(el.textContent).toLowerCase().includes(want));
		return hits.filter(el => !hits.some(o => o !== el && el.contains(o)));
	};
	const byRole = (role, name) => {
		let sel = '[role=' + JSON.stringify(role) + ']';
		if (implicitRoles[role]) sel += ', ' + implicitRoles[role];
		let nodes = Array.from(document.querySelectorAll(sel))
			.filter(el => !el.hasAttribute('role') || el.getAttribute('role') === role);
		if (name) {
			const want = norm(name).toLowerCase();
			nodes = nodes.filter(el => accessibleName(el).toLowerCase().includes(want));
		}
		return nodes;
	};

	let nodes = [];
	try {
		switch (spec.by) {
		case 'css':
			nodes = Array.from(document.querySelectorAll(spec.value));
			break;
		case 'testid':
			nodes = Array.from(document.querySelectorAll('[data-testid="' + CSS.escape(spec.value) + '"]'));
			break;
		case 'xpath': {
			const snap = document.evaluate(spec.value, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
			for (let i = 0; i < snap.snapshotLength; i++) {
				const n = snap.snapshotItem(i);
				if (n.nodeType === Node.ELEMENT_NODE) nodes.push(n);
			}
			break;
		}
		case 'text':
			nodes = byText(spec.value);
			break;
		case 'role':
			nodes = byRole(spec.value, spec.name);
			break;
		default:
			return {invalid: true, error: 'unsupported locator kind ' + spec.by};
		}
	} catch (e) {
		return {invalid: true, error: String((e && e.message) || e)};
	}

	const el = nodes.find(isVisible);
	if (!el) return {found: false};
	if (spec.tag) {
		document.querySelectorAll('[' + spec.attr + ']').forEach(n => n.removeAttribute(spec.attr));
		el.setAttribute(spec.attr, spec.tag);
	}
	return {found: true, description: describe(el)};
})()`

// hitTestScript scrolls the element into view and checks that it would receive a
// pointer event at its center. The result is {state, by}.
const hitTestScript = `(() => {
	const sel = %s;
` + jsHelpers + `
	const el = document.querySelector(sel);
	if (!el) return {state: 'stale'};
	if (el.disabled || el.getAttribute('aria-disabled') === 'true') return {state: 'disabled'};
	el.scrollIntoView({block: 'center', inline: 'center'});
	if (!isVisible(el)) return {state: 'hidden'};
	const r = el.getBoundingClientRect();
	const hit = document.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
	if (!hit || (hit !== el && !el.contains(hit))) return {state: 'obscured', by: hit ? describe(hit) : ''};
	return {state: 'ok'};
})()`

// checkedScript reads the checked state of the element.
const checkedScript = `(() => {
	const el = document.querySelector(%s);
	if (!el) return {state: 'stale'};
	return {state: 'ok', checked: !!el.checked};
})()`

// dispatchScript applies an action with synthetic DOM events only.
const dispatchScript = `(() => {
	const sel = %s, kind = %s, value = %s;
	const el = document.querySelector(sel);
	if (!el) return {state: 'stale'};
	const fire = (type, Ctor) => el.dispatchEvent(new (Ctor || Event)(type, {bubbles: true, cancelable: true}));
	switch (kind) {
	case 'click':
		fire('pointerdown', PointerEvent);
		fire('mousedown', MouseEvent);
		fire('pointerup', PointerEvent);
		fire('mouseup', MouseEvent);
		el.click();
		break;
	case 'fill':
		if (typeof el.focus === 'function') el.focus();
		if (el.isContentEditable) {
			el.textContent = value;
		} else {
			const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
			const desc = Object.getOwnPropertyDescriptor(proto, 'value');
			if (!desc || !(el instanceof HTMLInputElement || el instanceof HTMLTextAreaElement)) {
				return {state: 'error', error: 'element does not accept text'};
			}
			desc.set.call(el, value);
		}
		fire('input');
		fire('change');
		break;
	case 'check':
	case 'uncheck': {
		const want = kind === 'check';
		if (!('checked' in el)) return {state: 'error', error: 'element is not checkable'};
		if (el.checked !== want) {
			el.checked = want;
			fire('input');
			fire('change');
		}
		break;
	}
	default:
		return {state: 'error', error: 'unsupported action ' + kind};
	}
	return {state: 'ok'};
})()`

// expressionScript wraps a caller expression so its value survives the trip as JSON,
// including undefined, which is reported as null.
const expressionScript = `(async () => {
	const v = await (%s);
	return JSON.stringify({value: v === undefined ? null : v});
})()`

type findSpec struct {
	By    string `json:"by"`
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
	Tag   string `json:"tag,omitempty"`
	Attr  string `json:"attr"`
}

type findResult struct {
	Found       bool   `json:"found"`
	Invalid     bool   `json:"invalid"`
	Error       string `json:"error"`
	Description string `json:"description"`
}

type stateResult struct {
	State   string `json:"state"`
	By      string `json:"by"`
	Error   string `json:"error"`
	Checked bool   `json:"checked"`
}

// jsonEncode is a helper to safely encode a value (especially strings) for JS injection.
func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}

func buildFinder(spec findSpec) string {
	return fmt.Sprintf(finderScript, jsonEncode(spec))
}
