// internal/browser/browser_test.go
package browser_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/portalprobe/internal/browser"
	"github.com/xkilldash9x/portalprobe/internal/config"
)

func TestLaunchRejectsUnknownDriver(t *testing.T) {
	_, err := browser.Launch(context.Background(), nil, config.BrowserConfig{Driver: "selenium"})
	assert.EqualError(t, err, `unknown browser driver "selenium"`)
}

func TestLaunchHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := browser.Launch(ctx, nil, config.BrowserConfig{Driver: config.DriverPlaywright, Headless: true})
	assert.ErrorIs(t, err, context.Canceled)
}
