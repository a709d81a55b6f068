// internal/interaction/orchestrator_test.go
package interaction_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/xkilldash9x/portalprobe/internal/interaction"
	"github.com/xkilldash9x/portalprobe/internal/interaction/interactiontest"
	"github.com/xkilldash9x/portalprobe/internal/mocks"
)

func TestPerformSucceeds(t *testing.T) {
	f := newMenuFixture()
	orch := newTestOrchestrator(t, f.page)

	out, err := orch.Perform(context.Background(), f.toggle("open-menu", interaction.Visible(f.page, menuPanel), nil))
	require.NoError(t, err)
	require.True(t, out.Succeeded, out.Report())
	assert.NoError(t, out.Err())
	assert.NotEmpty(t, out.OperationID)
	require.NotNil(t, out.StrategyUsed)
	assert.Equal(t, "trigger", out.StrategyUsed.Name)
	assert.Equal(t, interaction.FailureNone, out.FailureKind)
	assert.Equal(t, interaction.TechniqueDirect, out.Action.Technique)
	assert.True(t, out.Poll.Satisfied)

	want := []interaction.Phase{
		interaction.PhaseIdle, interaction.PhaseResolving, interaction.PhaseActing,
		interaction.PhaseVerifying, interaction.PhaseSucceeded,
	}
	if diff := cmp.Diff(want, out.Phases); diff != "" {
		t.Errorf("phases (-want +got):\n%s", diff)
	}
}

func TestPerformAlreadySatisfiedLaw(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(rt, "candidates")
		page := interactiontest.NewPage()
		cands := candidates(n)
		for _, c := range cands {
			page.Add(c.Locator, c.Name)
		}
		orch := interaction.NewOrchestrator(page, nil, fastOptions)
		in := interaction.Interaction{
			Intent:           interaction.Intent{Name: "already-done"},
			Candidates:       cands,
			Action:           interaction.Action{Kind: interaction.ActionClick},
			Success:          always(true),
			AlreadySatisfied: always(true).Ptr(),
		}

		out, err := orch.Perform(context.Background(), in)
		if err != nil {
			rt.Fatalf("perform: %v", err)
		}
		if !out.Succeeded || !out.ShortCircuited {
			rt.Fatalf("want short-circuited success, got %+v", out)
		}
		if out.StrategyUsed != nil {
			rt.Fatalf("short-circuit used strategy %s", out.StrategyUsed)
		}
		if len(out.Resolution.Attempts) != 0 || len(page.Queries()) != 0 {
			rt.Fatalf("short-circuit touched the page: %d attempts, %d queries", len(out.Resolution.Attempts), len(page.Queries()))
		}
		if out.Action != nil || out.Poll != nil {
			rt.Fatalf("short-circuit acted or polled")
		}
	})
}

func TestPerformWithoutAlreadySatisfiedStillActs(t *testing.T) {
	page := interactiontest.NewPage()
	toggle := page.Add(interaction.CSS("#notifications"), "notifications switch")
	toggle.OnAction(func(interaction.Action) {})
	orch := newTestOrchestrator(t, page)

	// The control is already in the desired state, but nothing tells the engine so.
	c := &counter{fn: func(int) bool { return true }}
	out, err := orch.Perform(context.Background(), interaction.Interaction{
		Intent:     interaction.Intent{Name: "enable-notifications"},
		Candidates: []interaction.Candidate{{Name: "switch", Locator: interaction.CSS("#notifications")}},
		Action:     interaction.Action{Kind: interaction.ActionClick},
		Success:    c.predicate("notifications enabled"),
	})
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.False(t, out.ShortCircuited)
	assert.Len(t, toggle.Invocations(), 1, "the click must still happen")
	assert.Equal(t, 1, out.Poll.Evaluations)
	assert.EqualValues(t, 1, c.calls.Load())
}

func TestPerformToggleRoundTrip(t *testing.T) {
	f := newMenuFixture()
	orch := newTestOrchestrator(t, f.page)
	ctx := context.Background()

	open := interaction.Visible(f.page, menuPanel)
	closed := interaction.Hidden(f.page, menuPanel)
	before, err := closed.Evaluate(ctx)
	require.NoError(t, err)
	require.True(t, before)

	out, err := orch.Perform(ctx, f.toggle("open-menu", open, open.Ptr()))
	require.NoError(t, err)
	require.True(t, out.Succeeded, out.Report())

	// Opening again is a no-op thanks to the guard.
	out, err = orch.Perform(ctx, f.toggle("open-menu", open, open.Ptr()))
	require.NoError(t, err)
	assert.True(t, out.ShortCircuited)

	out, err = orch.Perform(ctx, f.toggle("close-menu", closed, closed.Ptr()))
	require.NoError(t, err)
	require.True(t, out.Succeeded, out.Report())

	after, err := closed.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, f.trigger.Invocations(), 2)
}

func TestPerformFailureKinds(t *testing.T) {
	ctx := context.Background()

	t.Run("strategy exhausted", func(t *testing.T) {
		page := interactiontest.NewPage()
		orch := newTestOrchestrator(t, page)
		out, err := orch.Perform(ctx, interaction.Interaction{
			Intent:     interaction.Intent{Name: "open-settings"},
			Candidates: candidates(3),
			Action:     interaction.Action{Kind: interaction.ActionClick},
			Success:    always(true),
		})
		require.NoError(t, err)
		assert.False(t, out.Succeeded)
		assert.Equal(t, interaction.StrategyExhausted, out.FailureKind)
		assert.Nil(t, out.StrategyUsed)
		assert.Nil(t, out.Action)
		assert.Equal(t, interaction.PhaseFailed, out.Phases[len(out.Phases)-1])
		assert.Len(t, out.AttemptedCandidates(), 3)

		var rf *interaction.ResolutionFailure
		require.ErrorAs(t, out.Err(), &rf)
		assert.Len(t, rf.Attempts, 3)
		assert.Contains(t, out.Err().Error(), "open-settings: strategy_exhausted")

		report := out.Report()
		for _, c := range candidates(3) {
			assert.Contains(t, report, c.Name)
		}
		assert.Contains(t, report, "not found")
	})

	t.Run("action rejected", func(t *testing.T) {
		page := interactiontest.NewPage()
		page.Add(interaction.CSS("#c0"), "locked button").
			FailDirect(interaction.ErrObscured).
			FailForced(interaction.ErrObscured).
			FailSynthetic(errors.New("disabled"))
		orch := newTestOrchestrator(t, page)

		out, err := orch.Perform(ctx, interaction.Interaction{
			Intent:     interaction.Intent{Name: "delete-row"},
			Candidates: candidates(1),
			Action:     interaction.Action{Kind: interaction.ActionClick},
			Success:    always(true),
		})
		require.NoError(t, err)
		assert.Equal(t, interaction.ActionRejected, out.FailureKind)
		assert.Nil(t, out.Poll)
		assert.ErrorIs(t, out.Err(), interaction.ErrObscured)
		wantPhases := []interaction.Phase{interaction.PhaseIdle, interaction.PhaseResolving, interaction.PhaseActing, interaction.PhaseFailed}
		assert.Empty(t, cmp.Diff(wantPhases, out.Phases))

		report := out.Report()
		assert.Contains(t, report, "direct -> ")
		assert.Contains(t, report, "synthetic -> disabled")
	})

	t.Run("poll timeout", func(t *testing.T) {
		page := interactiontest.NewPage()
		page.Add(interaction.CSS("#c0"), "save")
		orch := newTestOrchestrator(t, page)

		out, err := orch.Perform(ctx, interaction.Interaction{
			Intent:     interaction.Intent{Name: "save-form"},
			Candidates: candidates(1),
			Action:     interaction.Action{Kind: interaction.ActionClick},
			Success:    interaction.NewPredicate("toast shown", func(context.Context) (bool, error) { return false, nil }),
		})
		require.NoError(t, err)
		assert.Equal(t, interaction.PollTimeout, out.FailureKind)
		require.NotNil(t, out.StrategyUsed)
		assert.Equal(t, "candidate-0", out.StrategyUsed.Name)

		var pt *interaction.PollTimeoutError
		require.ErrorAs(t, out.Err(), &pt)
		assert.Equal(t, "toast shown", pt.Predicate)
		policy := fastOptions.Policy
		assert.GreaterOrEqual(t, out.Poll.Elapsed, policy.Timeout-policy.PollInterval)
		assert.Contains(t, out.Report(), `verification "toast shown" never satisfied`)
	})
}

func TestPerformPropagatesErrors(t *testing.T) {
	ctx := context.Background()
	page := interactiontest.NewPage()
	page.Add(interaction.CSS("#c0"), "button")
	base := interaction.Interaction{
		Intent:     interaction.Intent{Name: "submit"},
		Candidates: candidates(1),
		Action:     interaction.Action{Kind: interaction.ActionClick},
		Success:    always(true),
	}

	t.Run("success predicate error", func(t *testing.T) {
		orch := newTestOrchestrator(t, page)
		boom := errors.New("selector typo in predicate")
		in := base.WithSuccess(interaction.NewPredicate("bad", func(context.Context) (bool, error) { return false, boom }))
		_, err := orch.Perform(ctx, in)
		var pe *interaction.PredicateError
		require.ErrorAs(t, err, &pe)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("already satisfied predicate error", func(t *testing.T) {
		orch := newTestOrchestrator(t, page)
		in := base
		in.AlreadySatisfied = interaction.NewPredicate("bad guard", func(context.Context) (bool, error) { panic("nil") }).Ptr()
		_, err := orch.Perform(ctx, in)
		var pe *interaction.PredicateError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("driver unavailable", func(t *testing.T) {
		d := &mocks.MockDriver{}
		d.On("Query", mock.Anything, mock.Anything).Return(nil, interaction.ErrDriverUnavailable)
		_, err := interaction.NewOrchestrator(d, nil, fastOptions).Perform(ctx, base)
		assert.ErrorIs(t, err, interaction.ErrDriverUnavailable)
	})

	t.Run("declaration errors", func(t *testing.T) {
		orch := newTestOrchestrator(t, page)
		noCands := base
		noCands.Candidates = nil
		_, err := orch.Perform(ctx, noCands)
		assert.ErrorIs(t, err, interaction.ErrNoCandidates)

		_, err = orch.Perform(ctx, base.WithSuccess(interaction.Predicate{}))
		assert.ErrorIs(t, err, interaction.ErrNoSuccessPredicate)

		badPolicy := base
		badPolicy.Policy = interaction.RetryPolicy{Timeout: time.Second}
		_, err = orch.Perform(ctx, badPolicy)
		assert.ErrorContains(t, err, "invalid retry policy")
	})
}

func TestPerformRejectsReentrantCalls(t *testing.T) {
	page := interactiontest.NewPage()
	page.Add(interaction.CSS("#c0"), "button")
	orch := newTestOrchestrator(t, page)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	slow := interaction.NewPredicate("slow", func(context.Context) (bool, error) {
		once.Do(func() { close(entered) })
		<-release
		return true, nil
	})
	in := interaction.Interaction{
		Intent:     interaction.Intent{Name: "slow"},
		Candidates: candidates(1),
		Action:     interaction.Action{Kind: interaction.ActionClick},
		Success:    slow,
		Policy:     interaction.RetryPolicy{PollInterval: time.Second, Timeout: time.Second},
	}

	done := make(chan error, 1)
	go func() {
		_, err := orch.Perform(context.Background(), in)
		done <- err
	}()
	<-entered

	_, err := orch.Perform(context.Background(), in)
	assert.ErrorIs(t, err, interaction.ErrReentrant)

	close(release)
	require.NoError(t, <-done)

	// The orchestrator is usable again once the first call returns.
	out, err := orch.Perform(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
}

func TestEffectiveTimeout(t *testing.T) {
	orch := newTestOrchestrator(t, interactiontest.NewPage())
	in := interaction.Interaction{Candidates: candidates(4)}

	// 4 probes + 3 rungs + poll timeout + one interval.
	want := 4*50*time.Millisecond + 3*50*time.Millisecond + 60*time.Millisecond + 5*time.Millisecond
	assert.Equal(t, want, orch.EffectiveTimeout(in))

	in.AlreadySatisfied = always(false).Ptr()
	assert.Equal(t, want+50*time.Millisecond, orch.EffectiveTimeout(in))

	in.Policy = interaction.RetryPolicy{PollInterval: 10 * time.Millisecond, Timeout: time.Second, MaxStrategyAttempts: 1}
	assert.Equal(t, 50*time.Millisecond+150*time.Millisecond+time.Second+10*time.Millisecond+50*time.Millisecond, orch.EffectiveTimeout(in))

	assert.Equal(t, fastOptions.Policy, orch.DefaultPolicy())
	assert.Equal(t, interaction.DefaultRetryPolicy, interaction.NewOrchestrator(interactiontest.NewPage(), nil, interaction.Options{}).DefaultPolicy())
}

func TestOutcomeJSON(t *testing.T) {
	page := interactiontest.NewPage()
	orch := newTestOrchestrator(t, page)
	out, err := orch.Perform(context.Background(), interaction.Interaction{
		Intent:     interaction.Intent{Name: "open-report"},
		Candidates: candidates(1),
		Action:     interaction.Action{Kind: interaction.ActionClick},
		Success:    always(true),
	})
	require.NoError(t, err)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "strategy_exhausted", decoded["failure_kind"])
	assert.Equal(t, []any{"idle", "resolving", "failed"}, decoded["phases"])
}

func ExampleOrchestrator_Perform() {
	page := interactiontest.NewPage()
	page.Add(interaction.Text("Export"), "export button")

	orch := interaction.NewOrchestrator(page, nil, interaction.Options{})
	out, err := orch.Perform(context.Background(), interaction.Interaction{
		Intent: interaction.Intent{Name: "export-report"},
		Candidates: []interaction.Candidate{
			{Name: "exact-id-match", Locator: interaction.CSS("#export")},
			{Name: "text-only-match", Locator: interaction.Text("Export")},
		},
		Action:  interaction.Action{Kind: interaction.ActionClick},
		Success: interaction.Visible(page, interaction.Text("Export")),
	})
	if err != nil {
		panic(err)
	}
	fmt.Println(out.Succeeded, out.StrategyUsed)
	// Output: true text-only-match
}

func TestPerformCanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := newMenuFixture()
	_, err := newTestOrchestrator(t, f.page).Perform(ctx, f.toggle("open-menu", interaction.Visible(f.page, menuPanel), nil))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.page.Queries())
}
