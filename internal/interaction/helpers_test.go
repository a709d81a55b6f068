// internal/interaction/helpers_test.go
package interaction_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/portalprobe/internal/interaction"
	"github.com/xkilldash9x/portalprobe/internal/interaction/interactiontest"
)

// fastOptions keeps unit tests well under a second per interaction.
var fastOptions = interaction.Options{
	ProbeTimeout: 50 * time.Millisecond,
	RungTimeout:  50 * time.Millisecond,
	Policy: interaction.RetryPolicy{
		PollInterval: 5 * time.Millisecond,
		Timeout:      60 * time.Millisecond,
	},
}

func newTestOrchestrator(t *testing.T, d interaction.Driver) *interaction.Orchestrator {
	t.Helper()
	return interaction.NewOrchestrator(d, zaptest.NewLogger(t), fastOptions)
}

// counter is a predicate that records how many times it ran.
type counter struct {
	calls atomic.Int32
	fn    func(n int) bool
}

func (c *counter) predicate(name string) interaction.Predicate {
	return interaction.NewPredicate(name, func(context.Context) (bool, error) {
		n := int(c.calls.Add(1))
		return c.fn(n), nil
	})
}

func always(v bool) interaction.Predicate {
	return interaction.NewPredicate("always", func(context.Context) (bool, error) { return v, nil })
}

// menuFixture is a dropdown whose panel opens and closes as its trigger is clicked.
type menuFixture struct {
	page    *interactiontest.Page
	trigger *interactiontest.Element
	panel   *interactiontest.Element
	open    atomic.Bool
}

var (
	menuTrigger = interaction.CSS("#menu-trigger")
	menuPanel   = interaction.CSS("#menu-panel")
)

func newMenuFixture() *menuFixture {
	f := &menuFixture{page: interactiontest.NewPage()}
	f.panel = f.page.Add(menuPanel, "menu panel").SetVisible(false)
	f.trigger = f.page.Add(menuTrigger, "menu trigger").OnAction(func(interaction.Action) {
		f.panel.SetVisible(!f.open.Load())
		f.open.Store(!f.open.Load())
	})
	return f
}

func (f *menuFixture) toggle(name string, want interaction.Predicate, already *interaction.Predicate) interaction.Interaction {
	return interaction.Interaction{
		Intent:           interaction.Intent{Name: name},
		Candidates:       []interaction.Candidate{{Name: "trigger", Locator: menuTrigger}},
		Action:           interaction.Action{Kind: interaction.ActionClick},
		Success:          want,
		AlreadySatisfied: already,
	}
}
