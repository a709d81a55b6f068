// internal/browser/pwdriver/launcher.go
package pwdriver

import (
	"context"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/portalprobe/internal/config"
)

// Launcher owns a Playwright driver process and one Chromium instance. Each Session is
// a fresh browser context with a single page.
type Launcher struct {
	logger  *zap.Logger
	cfg     config.BrowserConfig
	pw      *playwright.Playwright
	browser playwright.Browser
	wg      sync.WaitGroup
}

// Launch starts Playwright and Chromium. The Playwright driver and browsers must already
// be installed (see `go run github.com/playwright-community/playwright-go/cmd/playwright install`).
func Launch(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig) (*Launcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Launcher{logger: logger.Named("playwright"), cfg: cfg}
	l.logger.Info("Starting Playwright driver...", zap.Bool("headless", cfg.Headless))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args:     cfg.Args,
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch chromium: %w", err)
	}
	l.pw, l.browser = pw, browser

	l.logger.Info("Browser launched successfully.", zap.String("version", l.browser.Version()))
	return l, nil
}

// NewSession opens an isolated browser context and page.
func (l *Launcher) NewSession(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	width, height := l.cfg.ViewportSize()
	bctx, err := l.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport:          &playwright.Size{Width: width, Height: height},
		IgnoreHttpsErrors: playwright.Bool(l.cfg.IgnoreTLSErrors),
	})
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to create browser context: %w", err))
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, mapError(fmt.Errorf("failed to open page: %w", err))
	}
	s := newSession(bctx, page, l.cfg, l.logger)

	l.wg.Add(1)
	s.onClose = l.wg.Done
	s.logger.Debug("Browser page opened.")
	return s, nil
}

// Shutdown waits for open sessions to close, up to ctx's deadline, then stops the
// browser and the driver.
func (l *Launcher) Shutdown(ctx context.Context) error {
	l.logger.Info("Browser shutdown initiated. Waiting for open sessions to close...")
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		l.logger.Warn("Shutdown deadline exceeded. Forcing browser termination.", zap.Error(ctx.Err()))
	}

	if err := l.browser.Close(); err != nil {
		l.logger.Warn("Failed to close browser.", zap.Error(err))
	}
	if err := l.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}
