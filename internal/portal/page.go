// internal/portal/page.go
package portal

import (
	"context"
	"fmt"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/portalprobe/internal/interaction"
	"github.com/xkilldash9x/portalprobe/internal/observability"
)

// Page groups the controls of one browser session. Controls declare their interactions
// once at construction and only ever call Perform.
type Page struct {
	driver interaction.Driver
	orch   *interaction.Orchestrator
	logger *zap.Logger
}

// NewPage creates a Page with its own orchestrator over d.
func NewPage(d interaction.Driver, logger *zap.Logger, opts interaction.Options) *Page {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Page{
		driver: d,
		orch:   interaction.NewOrchestrator(d, logger, opts),
		logger: logger.Named("portal"),
	}
}

// Orchestrator exposes the page's orchestrator for ad hoc interactions.
func (p *Page) Orchestrator() *interaction.Orchestrator { return p.orch }

// Driver returns the driver the page's predicates read from.
func (p *Page) Driver() interaction.Driver { return p.driver }

// perform runs in and folds a failed outcome into the returned error, so callers can
// check one value and still inspect the outcome.
func (p *Page) perform(ctx context.Context, in interaction.Interaction) (interaction.Outcome, error) {
	out, err := p.orch.Perform(ctx, in)
	if err != nil {
		return out, err
	}
	if !out.Succeeded {
		p.logger.Warn("Control interaction failed.", observability.OutcomeFields(out)...)
		return out, out.Err()
	}
	return out, nil
}

// selectorFor returns a CSS selector equivalent to loc when one exists.
func selectorFor(loc interaction.Locator) (string, bool) {
	switch loc.By {
	case interaction.ByCSS:
		return loc.Value, true
	case interaction.ByTestID:
		return fmt.Sprintf(`[data-testid=%s]`, jsString(loc.Value)), true
	default:
		return "", false
	}
}

// jsString encodes s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

// valueEquals is true while the input behind loc holds want. Locators without a CSS
// form fall back to visibility, which is the best a driver-agnostic check can do.
func valueEquals(d interaction.Driver, loc interaction.Locator, want string) interaction.Predicate {
	sel, ok := selectorFor(loc)
	if !ok {
		return interaction.Visible(d, loc)
	}
	return interaction.Script(d, fmt.Sprintf("value of %s", loc), valueExpression(sel, want))
}

func valueExpression(selector, want string) string {
	return fmt.Sprintf(`(() => { const el = document.querySelector(%s); return !!el && el.value === %s; })()`,
		jsString(selector), jsString(want))
}

func textExpression(selector string) string {
	return fmt.Sprintf(`(() => { const el = document.querySelector(%s); return el ? el.textContent.trim() : null; })()`,
		jsString(selector))
}

func enabledExpression(selector string) string {
	return fmt.Sprintf(`(() => { const el = document.querySelector(%s); return !!el && !el.disabled && el.getAttribute('aria-disabled') !== 'true'; })()`,
		jsString(selector))
}
