// internal/browser/session/manager.go
package session

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/portalprobe/internal/config"
)

// launchTimeout bounds the liveness check run right after the browser starts.
const launchTimeout = 30 * time.Second

// Manager owns one headless Chrome process. Every Session it creates is an isolated tab
// derived from the allocator context.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	// allocatorCtx manages the browser process.
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	// browserCtx holds the allocated browser. Session contexts derive from it, so each
	// session is a tab in the same process rather than a new process.
	browserCtx    context.Context
	browserCancel context.CancelFunc

	// wg tracks open sessions for a graceful shutdown.
	wg sync.WaitGroup
}

// NewManager launches the browser and verifies it responds.
func NewManager(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		logger: logger.Named("chromedp"),
		cfg:    cfg,
	}
	if err := m.launchBrowser(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return m, nil
}

func (m *Manager) launchBrowser(ctx context.Context) error {
	m.logger.Info("Initializing browser allocator...", zap.Bool("headless", m.cfg.Headless))

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, m.buildAllocatorOptions()...)
	m.allocatorCtx = allocCtx
	m.allocatorCancel = cancel

	var logOpts []chromedp.ContextOption
	if m.cfg.Debug {
		logOpts = append(logOpts, chromedp.WithDebugf(m.logger.Sugar().Debugf))
	}
	m.browserCtx, m.browserCancel = chromedp.NewContext(allocCtx, logOpts...)
	// The first Run starts the process and binds it to browserCtx.
	if err := chromedp.Run(m.browserCtx); err != nil {
		m.browserCancel()
		m.allocatorCancel()
		return fmt.Errorf("browser failed to start: %w", err)
	}

	// Liveness check in a throwaway tab.
	tabCtx, cancelTab := chromedp.NewContext(m.browserCtx)
	defer cancelTab()
	testCtx, cancelTest := context.WithTimeout(tabCtx, launchTimeout)
	defer cancelTest()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		m.browserCancel()
		m.allocatorCancel()
		return fmt.Errorf("browser failed to respond: %w", err)
	}

	m.logger.Info("Browser launched successfully and is responsive.")
	return nil
}

// buildAllocatorOptions assembles the Chrome flags for the configured browser.
func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	width, height := m.cfg.ViewportSize()
	opts = append(opts,
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", m.cfg.IgnoreTLSErrors),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", m.cfg.Headless),
		chromedp.WindowSize(width, height),
	)

	// Custom arguments from the config file, "--name=value" or "--name".
	for _, arg := range m.cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		flagName := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(flagName, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(flagName, true))
		}
	}

	// Flags required inside containers.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}
	return opts
}

// NewSession opens a new tab.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	tabCtx, cancel := chromedp.NewContext(m.browserCtx)
	if err := ctx.Err(); err != nil {
		cancel()
		return nil, err
	}
	s := newSession(tabCtx, cancel, m.cfg, m.logger)
	// The first Run creates the tab and binds it to the context it is given, so it must
	// be the tab context itself rather than a shorter-lived operational one.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open browser tab: %w", err)
	}

	m.wg.Add(1)
	s.onClose = m.wg.Done
	s.logger.Debug("Browser tab opened.")
	return s, nil
}

// Shutdown waits for open sessions to close, up to ctx's deadline, then stops the browser.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Browser shutdown initiated. Waiting for open sessions to close...")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Debug("All sessions have closed.")
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded. Forcing browser termination.", zap.Error(ctx.Err()))
	}

	if m.browserCancel != nil {
		m.browserCancel()
	}
	if m.allocatorCancel != nil {
		m.allocatorCancel()
		<-m.allocatorCtx.Done()
	}
	return nil
}
