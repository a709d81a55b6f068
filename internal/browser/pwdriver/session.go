// internal/browser/pwdriver/session.go
package pwdriver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/portalprobe/internal/config"
	"github.com/xkilldash9x/portalprobe/internal/interaction"
)

const (
	defaultNavigationTimeout = 60 * time.Second
	// defaultCallTimeout applies to Playwright calls made with a context that has no deadline.
	defaultCallTimeout = 30 * time.Second
	tagAttribute       = "data-portalprobe-id"
)

// Session is one Playwright page. It implements interaction.Driver.
type Session struct {
	id     string
	bctx   playwright.BrowserContext
	page   playwright.Page
	cfg    config.BrowserConfig
	logger *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}
	onClose   func()
}

var _ interaction.Driver = (*Session)(nil)

func newSession(bctx playwright.BrowserContext, page playwright.Page, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	id := uuid.New().String()
	return &Session{
		id:     id,
		bctx:   bctx,
		page:   page,
		cfg:    cfg,
		logger: logger.With(zap.String("session_id", id[:8])),
		closed: make(chan struct{}),
	}
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

func (s *Session) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// call runs fn unless the session is closed, returning early when ctx is done.
func (s *Session) call(ctx context.Context, fn func() error) error {
	if s.isClosed() {
		return fmt.Errorf("session %s is closed: %w", s.id, interaction.ErrDriverUnavailable)
	}
	return mapError(run(ctx, fn))
}

// Navigate loads url and waits for the document body.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Info("Navigating session.", zap.String("url", url))
	navTimeout := s.cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = defaultNavigationTimeout
	}
	navCtx, cancel := context.WithTimeout(ctx, navTimeout)
	defer cancel()

	err := s.call(navCtx, func() error {
		if _, err := s.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   timeoutMS(navCtx),
		}); err != nil {
			return err
		}
		return s.page.Locator("body").WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateAttached,
			Timeout: timeoutMS(navCtx),
		})
	})
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	if s.cfg.PostLoadWait > 0 {
		select {
		case <-time.After(s.cfg.PostLoadWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.logger.Debug("Navigation complete.", zap.String("url", url))
	return nil
}

// Snapshot returns the serialized document for failure diagnostics.
func (s *Session) Snapshot(ctx context.Context) (string, error) {
	var html string
	err := s.call(ctx, func() (err error) {
		html, err = s.page.Content()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to capture document: %w", err)
	}
	return html, nil
}

// Close closes the page and its browser context. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.logger.Debug("Closing session.")
		close(s.closed)
		err = run(ctx, func() error { return s.bctx.Close() })
		if s.onClose != nil {
			s.onClose()
		}
	})
	return err
}

// locate builds the Playwright locator for loc, restricted to visible elements.
func (s *Session) locate(loc interaction.Locator) (playwright.Locator, error) {
	var base playwright.Locator
	switch loc.By {
	case interaction.ByCSS, "":
		base = s.page.Locator("css=" + loc.Value)
	case interaction.ByXPath:
		base = s.page.Locator("xpath=" + loc.Value)
	case interaction.ByText:
		base = s.page.GetByText(loc.Value)
	case interaction.ByTestID:
		base = s.page.GetByTestId(loc.Value)
	case interaction.ByRole:
		if loc.Name != "" {
			base = s.page.GetByRole(playwright.AriaRole(loc.Value), playwright.PageGetByRoleOptions{Name: loc.Name})
		} else {
			base = s.page.GetByRole(playwright.AriaRole(loc.Value))
		}
	default:
		return nil, fmt.Errorf("%s: unsupported locator kind: %w", loc, interaction.ErrInvalidLocator)
	}
	return base.Locator("visible=true").First(), nil
}

// Query waits until loc matches a visible element, then pins that node with a tag
// attribute so later actions cannot drift to a different match.
func (s *Session) Query(ctx context.Context, loc interaction.Locator) (interaction.Element, error) {
	l, err := s.locate(loc)
	if err != nil {
		return nil, err
	}
	tag := uuid.New().String()
	var desc any
	err = s.call(ctx, func() error {
		if err := l.WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: timeoutMS(ctx),
		}); err != nil {
			return err
		}
		var err error
		desc, err = l.Evaluate(tagScript, map[string]string{"attr": tagAttribute, "tag": tag})
		return err
	})
	switch {
	case err == nil:
	case isInvalidSelector(err):
		return nil, fmt.Errorf("%s: %v: %w", loc, err, interaction.ErrInvalidLocator)
	case errors.Is(err, interaction.ErrDriverUnavailable):
		return nil, err
	case errors.Is(err, playwright.ErrTimeout), ctx.Err() != nil:
		return nil, fmt.Errorf("%s: %w (%w)", loc, interaction.ErrNoMatch, err)
	default:
		return nil, fmt.Errorf("query %s: %w", loc, err)
	}

	s.logger.Debug("Element resolved.", zap.Stringer("locator", loc), zap.Any("element", desc))
	return &element{
		s:       s,
		locator: s.page.Locator(fmt.Sprintf(`css=[%s=%q]`, tagAttribute, tag)),
		desc:    fmt.Sprint(desc),
	}, nil
}

// Visible reports whether loc currently matches a visible element.
func (s *Session) Visible(ctx context.Context, loc interaction.Locator) (bool, error) {
	l, err := s.locate(loc)
	if err != nil {
		return false, err
	}
	var n int
	err = s.call(ctx, func() (err error) {
		n, err = l.Count()
		return err
	})
	if isInvalidSelector(err) {
		return false, fmt.Errorf("%s: %v: %w", loc, err, interaction.ErrInvalidLocator)
	}
	return n > 0, err
}

// Evaluate runs a read-only expression against the document.
func (s *Session) Evaluate(ctx context.Context, expression string) (any, error) {
	var v any
	err := s.call(ctx, func() (err error) {
		v, err = s.page.Evaluate(expression)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression: %w", err)
	}
	return v, nil
}

// run executes fn, returning ctx's error early if ctx finishes first. Playwright calls
// are not context aware; fn must carry its own timeout derived from ctx.
func run(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// timeoutMS converts ctx's remaining time into a Playwright timeout in milliseconds.
// Playwright treats zero as no timeout, so the result is at least one.
func timeoutMS(ctx context.Context) *float64 {
	remaining := defaultCallTimeout
	if dl, ok := ctx.Deadline(); ok {
		remaining = time.Until(dl)
	}
	return playwright.Float(max(1, float64(remaining.Milliseconds())))
}

// mapError marks closed targets as infrastructure failures.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTargetClosed) {
		return fmt.Errorf("%v: %w", err, interaction.ErrDriverUnavailable)
	}
	return err
}

func isInvalidSelector(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "is not a valid selector") ||
		strings.Contains(msg, "Unexpected token") ||
		strings.Contains(msg, "Unknown engine")
}
