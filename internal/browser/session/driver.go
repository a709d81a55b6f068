// internal/browser/session/driver.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/portalprobe/internal/interaction"
)

// queryInterval paces the finder script while Query waits for a match.
const queryInterval = 50 * time.Millisecond

// evaluate runs script and decodes its by-value result into out.
func (s *Session) evaluate(ctx context.Context, script string, out interface{}) error {
	return s.RunActions(ctx,
		chromedp.Evaluate(script, out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
		}),
	)
}

// find runs the finder once. A non-empty tag marks the match for later actions.
func (s *Session) find(ctx context.Context, loc interaction.Locator, tag string) (findResult, error) {
	var res findResult
	script := buildFinder(findSpec{
		By:    string(loc.By),
		Value: loc.Value,
		Name:  loc.Name,
		Tag:   tag,
		Attr:  tagAttribute,
	})
	if err := s.evaluate(ctx, script, &res); err != nil {
		return findResult{}, err
	}
	if res.Invalid {
		return res, fmt.Errorf("%s: %s: %w", loc, res.Error, interaction.ErrInvalidLocator)
	}
	return res, nil
}

// Query waits until loc matches a visible element or ctx is done.
func (s *Session) Query(ctx context.Context, loc interaction.Locator) (interaction.Element, error) {
	// The match is tagged with a unique attribute so later ladder rungs address the same node.
	tag := uuid.New().String()
	limiter := rate.NewLimiter(rate.Every(queryInterval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil, s.queryExpired(ctx, loc, err)
		}
		res, err := s.find(ctx, loc, tag)
		if err != nil {
			if errors.Is(err, interaction.ErrInvalidLocator) || errors.Is(err, interaction.ErrDriverUnavailable) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, s.queryExpired(ctx, loc, err)
			}
			return nil, fmt.Errorf("query %s: %w", loc, err)
		}
		if res.Found {
			s.logger.Debug("Element resolved.", zap.Stringer("locator", loc), zap.String("element", res.Description))
			return &element{
				s:        s,
				selector: fmt.Sprintf(`[%s=%q]`, tagAttribute, tag),
				desc:     res.Description,
			}, nil
		}
	}
}

// queryExpired maps the end of a Query wait to ErrNoMatch. Caller cancellation stays
// visible through the wrapped context error.
func (s *Session) queryExpired(ctx context.Context, loc interaction.Locator, err error) error {
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	return fmt.Errorf("%s: %w (%w)", loc, interaction.ErrNoMatch, err)
}

// Visible reports whether loc currently matches a visible element.
func (s *Session) Visible(ctx context.Context, loc interaction.Locator) (bool, error) {
	res, err := s.find(ctx, loc, "")
	if err != nil {
		return false, err
	}
	return res.Found, nil
}

// Evaluate runs a read-only expression against the document.
func (s *Session) Evaluate(ctx context.Context, expression string) (any, error) {
	var raw string
	if err := s.evaluate(ctx, fmt.Sprintf(expressionScript, expression), &raw); err != nil {
		return nil, fmt.Errorf("failed to evaluate expression: %w", err)
	}
	var wrapped struct {
		Value any `json:"value"`
	}
	if err := json.UnmarshalFromString(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode expression result: %w", err)
	}
	return wrapped.Value, nil
}

// element addresses a node tagged by Query.
type element struct {
	s        *Session
	selector string
	desc     string
}

var _ interaction.Element = (*element)(nil)

func (e *element) Describe() string { return e.desc }

// Invoke drives the action through Chrome's input pipeline. Unless forced, the element
// must be enabled and must be the topmost node at its center.
func (e *element) Invoke(ctx context.Context, action interaction.Action, opts interaction.InvokeOptions) error {
	if !opts.Force {
		if err := e.hitTest(ctx); err != nil {
			return err
		}
	}

	var err error
	switch action.Kind {
	case interaction.ActionClick:
		err = e.s.RunActions(ctx, chromedp.Click(e.selector, chromedp.ByQuery))
	case interaction.ActionFill:
		err = e.s.RunActions(ctx,
			chromedp.SetValue(e.selector, "", chromedp.ByQuery),
			chromedp.SendKeys(e.selector, action.Value, chromedp.ByQuery),
		)
	case interaction.ActionCheck, interaction.ActionUncheck:
		err = e.setChecked(ctx, action.Kind == interaction.ActionCheck)
	default:
		return fmt.Errorf("unsupported action %q", action.Kind)
	}
	return e.classify(err)
}

// setChecked clicks the element only when its state differs from want.
func (e *element) setChecked(ctx context.Context, want bool) error {
	var res stateResult
	if err := e.s.evaluate(ctx, fmt.Sprintf(checkedScript, jsonEncode(e.selector)), &res); err != nil {
		return err
	}
	if res.State == "stale" {
		return interaction.ErrStaleElement
	}
	if res.Checked == want {
		return nil
	}
	return e.s.RunActions(ctx, chromedp.Click(e.selector, chromedp.ByQuery))
}

func (e *element) hitTest(ctx context.Context) error {
	var res stateResult
	if err := e.s.evaluate(ctx, fmt.Sprintf(hitTestScript, jsonEncode(e.selector)), &res); err != nil {
		return e.classify(err)
	}
	switch res.State {
	case "ok":
		return nil
	case "stale":
		return interaction.ErrStaleElement
	case "obscured":
		return fmt.Errorf("%w by %s", interaction.ErrObscured, res.By)
	case "disabled":
		return errors.New("element is disabled")
	case "hidden":
		return errors.New("element is not visible")
	default:
		return fmt.Errorf("unexpected hit test state %q", res.State)
	}
}

// Dispatch applies the action with synthetic DOM events.
func (e *element) Dispatch(ctx context.Context, action interaction.Action) error {
	var res stateResult
	script := fmt.Sprintf(dispatchScript, jsonEncode(e.selector), jsonEncode(string(action.Kind)), jsonEncode(action.Value))
	if err := e.s.evaluate(ctx, script, &res); err != nil {
		return e.classify(err)
	}
	switch res.State {
	case "ok":
		return nil
	case "stale":
		return interaction.ErrStaleElement
	default:
		return errors.New(res.Error)
	}
}

// classify maps CDP node lookup failures onto ErrStaleElement.
func (e *element) classify(err error) error {
	if err == nil {
		return nil
	}
	// CDP error -32000 or "Could not find node" indicates stale element.
	if msg := err.Error(); strings.Contains(msg, "Could not find node") || strings.Contains(msg, "-32000") {
		return fmt.Errorf("%w: %v", interaction.ErrStaleElement, err)
	}
	return err
}
