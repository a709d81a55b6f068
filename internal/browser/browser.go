// internal/browser/browser.go
package browser

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/portalprobe/internal/browser/pwdriver"
	"github.com/xkilldash9x/portalprobe/internal/browser/session"
	"github.com/xkilldash9x/portalprobe/internal/config"
	"github.com/xkilldash9x/portalprobe/internal/interaction"
)

// Session is a single isolated page that the interaction engine can drive.
type Session interface {
	interaction.Driver

	ID() string
	Navigate(ctx context.Context, url string) error
	// Snapshot returns the current document markup for failure diagnostics.
	Snapshot(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// Launcher hands out sessions backed by one browser process.
type Launcher interface {
	NewSession(ctx context.Context) (Session, error)
	Shutdown(ctx context.Context) error
}

var (
	_ Session = (*session.Session)(nil)
	_ Session = (*pwdriver.Session)(nil)
)

// Launch starts the browser backend named by cfg.Driver.
func Launch(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig) (Launcher, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", config.DriverChromedp:
		m, err := session.NewManager(ctx, logger, cfg)
		if err != nil {
			return nil, err
		}
		return chromedpLauncher{m}, nil
	case config.DriverPlaywright:
		l, err := pwdriver.Launch(ctx, logger, cfg)
		if err != nil {
			return nil, err
		}
		return playwrightLauncher{l}, nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Driver)
	}
}

type chromedpLauncher struct{ m *session.Manager }

func (l chromedpLauncher) NewSession(ctx context.Context) (Session, error) {
	s, err := l.m.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (l chromedpLauncher) Shutdown(ctx context.Context) error { return l.m.Shutdown(ctx) }

type playwrightLauncher struct{ l *pwdriver.Launcher }

func (l playwrightLauncher) NewSession(ctx context.Context) (Session, error) {
	s, err := l.l.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (l playwrightLauncher) Shutdown(ctx context.Context) error { return l.l.Shutdown(ctx) }
