// internal/browser/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/portalprobe/internal/config"
	"github.com/xkilldash9x/portalprobe/internal/interaction"
)

const (
	defaultNavigationTimeout = 60 * time.Second
	// closeTimeout bounds how long Close waits for the tab target to go away.
	closeTimeout = 5 * time.Second
)

// Session is one browser tab driven over the Chrome DevTools Protocol. It implements
// interaction.Driver, so an Orchestrator can run against it directly.
type Session struct {
	id     string
	ctx    context.Context // Master context for the tab's lifecycle.
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    config.BrowserConfig

	closeOnce sync.Once
	onClose   func()
}

var _ interaction.Driver = (*Session)(nil)

func newSession(ctx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	id := uuid.New().String()
	return &Session{
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With(zap.String("session_id", id[:8])),
		cfg:    cfg,
	}
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// RunActions executes chromedp actions bounded by both the session lifetime and ctx.
// Errors caused by the tab going away are reported as interaction.ErrDriverUnavailable.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	if s.ctx.Err() != nil {
		return fmt.Errorf("session %s is closed: %w", s.id, interaction.ErrDriverUnavailable)
	}
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	// The operational context is checked first so a caller timeout is never mistaken
	// for a dead browser.
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if s.ctx.Err() != nil || errors.Is(err, chromedp.ErrInvalidContext) || errors.Is(err, chromedp.ErrChannelClosed) {
		return fmt.Errorf("%v: %w", err, interaction.ErrDriverUnavailable)
	}
	return err
}

// Navigate loads url and waits for the document body.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Info("Navigating session.", zap.String("url", url))

	navTimeout := s.cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = defaultNavigationTimeout
	}
	navCtx, navCancel := context.WithTimeout(ctx, navTimeout)
	defer navCancel()

	var actions []chromedp.Action
	if s.cfg.DisableCache {
		actions = append(actions, network.SetCacheDisabled(true))
	}
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)

	if err := s.RunActions(navCtx, actions...); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("navigation to %s timed out after %v: %w", url, navTimeout, err)
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	if s.cfg.PostLoadWait > 0 {
		if err := s.RunActions(ctx, chromedp.Sleep(s.cfg.PostLoadWait)); err != nil {
			return err
		}
	}
	s.logger.Debug("Navigation complete.", zap.String("url", url))
	return nil
}

// Snapshot returns the serialized document for failure diagnostics.
func (s *Session) Snapshot(ctx context.Context) (string, error) {
	var html string
	if err := s.RunActions(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to capture document: %w", err)
	}
	return html, nil
}

// Close closes the tab. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.logger.Debug("Closing session.")
		s.cancel()

		wait := closeTimeout
		if dl, ok := ctx.Deadline(); ok {
			wait = min(wait, time.Until(dl))
		}
		select {
		case <-s.ctx.Done():
		case <-time.After(wait):
			s.logger.Warn("Session context did not finish in time.")
		}

		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}
