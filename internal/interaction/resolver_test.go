// internal/interaction/resolver_test.go
package interaction_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/xkilldash9x/portalprobe/internal/interaction"
	"github.com/xkilldash9x/portalprobe/internal/interaction/interactiontest"
	"github.com/xkilldash9x/portalprobe/internal/mocks"
)

func candidates(n int) []interaction.Candidate {
	out := make([]interaction.Candidate, n)
	for i := range out {
		out[i] = interaction.Candidate{
			Name:    fmt.Sprintf("candidate-%d", i),
			Locator: interaction.CSS(fmt.Sprintf("#c%d", i)),
		}
	}
	return out
}

func locators(cs []interaction.Candidate) []interaction.Locator {
	out := make([]interaction.Locator, len(cs))
	for i, c := range cs {
		out[i] = c.Locator
	}
	return out
}

func TestResolveFallsBackToTextMatch(t *testing.T) {
	page := interactiontest.NewPage()
	page.Add(interaction.Text("Create project"), "button 'Create project'")
	cands := []interaction.Candidate{
		{Name: "exact-id-match", Locator: interaction.CSS("#create-project")},
		{Name: "role-and-text-match", Locator: interaction.Role("button", "Create project")},
		{Name: "text-only-match", Locator: interaction.Text("Create project")},
	}
	r := interaction.NewResolver(page, zaptest.NewLogger(t), 50*time.Millisecond)

	res, err := r.Resolve(context.Background(), cands, 0)
	require.NoError(t, err)
	require.NotNil(t, res.Target)
	assert.Equal(t, "text-only-match", res.Target.Candidate.Name)
	assert.Equal(t, 2, res.Target.Index)
	require.Len(t, res.Attempts, 3)
	for _, a := range res.Attempts[:2] {
		assert.False(t, a.Found)
		assert.Equal(t, "not found", a.Reason)
	}
	assert.Equal(t, "resolved", res.Attempts[2].Reason)
}

func TestResolveOrderingLaw(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(rt, "n")
		cands := candidates(n)
		page := interactiontest.NewPage()
		page.Add(cands[n-1].Locator, "last")
		r := interaction.NewResolver(page, nil, 20*time.Millisecond)

		res, err := r.Resolve(context.Background(), cands, 0)
		if err != nil {
			rt.Fatalf("resolve: %v", err)
		}
		if len(res.Attempts) != n {
			rt.Fatalf("tried %d candidates, want %d", len(res.Attempts), n)
		}
		if diff := cmp.Diff(locators(cands), page.Queries()); diff != "" {
			rt.Fatalf("probe order differs from declared order (-want +got):\n%s", diff)
		}
		if res.Target.Index != n-1 {
			rt.Fatalf("resolved index %d, want %d", res.Target.Index, n-1)
		}
	})
}

func TestResolveCompletenessOfDiagnostics(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(rt, "n")
		cands := candidates(n)
		page := interactiontest.NewPage()
		// Some candidates exist but are hidden; none is usable.
		for i, c := range cands {
			if rapid.Bool().Draw(rt, fmt.Sprintf("present_%d", i)) {
				page.Add(c.Locator, c.Name).SetVisible(false)
			}
		}
		r := interaction.NewResolver(page, nil, 20*time.Millisecond)

		_, err := r.Resolve(context.Background(), cands, 0)
		var rf *interaction.ResolutionFailure
		if !errors.As(err, &rf) {
			rt.Fatalf("want *ResolutionFailure, got %v", err)
		}
		if len(rf.Attempts) != n || len(rf.Skipped) != 0 {
			rt.Fatalf("failure references %d attempted and %d skipped, want %d and 0", len(rf.Attempts), len(rf.Skipped), n)
		}
		for i, a := range rf.Attempts {
			if a.Candidate.Name != cands[i].Name {
				rt.Fatalf("attempt %d is %s, want %s", i, a.Candidate.Name, cands[i].Name)
			}
		}
	})
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("empty candidate list", func(t *testing.T) {
		r := interaction.NewResolver(interactiontest.NewPage(), nil, 0)
		_, err := r.Resolve(ctx, nil, 0)
		assert.ErrorIs(t, err, interaction.ErrNoCandidates)
		assert.Equal(t, interaction.DefaultProbeTimeout, r.ProbeTimeout())
	})

	t.Run("invalid locator is a non-match", func(t *testing.T) {
		page := interactiontest.NewPage()
		page.AddInvalid(interaction.XPath("//div[@"))
		page.Add(interaction.CSS(".fallback"), "fallback")
		cands := []interaction.Candidate{
			{Name: "broken", Locator: interaction.XPath("//div[@")},
			{Name: "fallback", Locator: interaction.CSS(".fallback")},
		}
		res, err := interaction.NewResolver(page, nil, 20*time.Millisecond).Resolve(ctx, cands, 0)
		require.NoError(t, err)
		assert.Equal(t, "invalid locator", res.Attempts[0].Reason)
		assert.ErrorIs(t, res.Attempts[0].Err, interaction.ErrInvalidLocator)
		assert.Equal(t, "fallback", res.Target.Candidate.Name)
	})

	t.Run("attempt budget skips the tail", func(t *testing.T) {
		cands := candidates(5)
		page := interactiontest.NewPage()
		page.Add(cands[4].Locator, "last")
		r := interaction.NewResolver(page, nil, 20*time.Millisecond)

		_, err := r.Resolve(ctx, cands, 2)
		var rf *interaction.ResolutionFailure
		require.ErrorAs(t, err, &rf)
		assert.Len(t, rf.Attempts, 2)
		assert.Equal(t, cands[2:], rf.Skipped)
		assert.Contains(t, rf.Error(), "3 candidate(s) skipped by attempt budget")
		assert.Len(t, page.Queries(), 2)
		assert.Equal(t, 40*time.Millisecond, r.Budget(cands, 2))
		assert.Equal(t, 100*time.Millisecond, r.Budget(cands, 0))
	})

	t.Run("probe timeout is a non-match", func(t *testing.T) {
		d := &mocks.MockDriver{}
		slow := interaction.CSS("#slow")
		fast := interaction.CSS("#fast")
		el := &mocks.MockElement{}
		d.On("Query", mock.Anything, slow).Return(nil, context.DeadlineExceeded).
			Run(func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() })
		d.On("Query", mock.Anything, fast).Return(el, nil)

		cands := []interaction.Candidate{{Name: "slow", Locator: slow}, {Name: "fast", Locator: fast}}
		res, err := interaction.NewResolver(d, nil, 10*time.Millisecond).Resolve(ctx, cands, 0)
		require.NoError(t, err)
		assert.Equal(t, "not found", res.Attempts[0].Reason)
		assert.GreaterOrEqual(t, res.Attempts[0].Elapsed, 10*time.Millisecond)
		assert.Same(t, el, res.Target.Element)
		d.AssertExpectations(t)
	})

	t.Run("unexpected query error is recorded", func(t *testing.T) {
		d := &mocks.MockDriver{}
		d.On("Query", mock.Anything, mock.Anything).Return(nil, errors.New("frame detached")).Once()
		d.On("Query", mock.Anything, mock.Anything).Return(&mocks.MockElement{}, nil)

		res, err := interaction.NewResolver(d, nil, 10*time.Millisecond).Resolve(ctx, candidates(2), 0)
		require.NoError(t, err)
		assert.Equal(t, "query failed: frame detached", res.Attempts[0].Reason)
		assert.Equal(t, 1, res.Target.Index)
	})

	t.Run("driver failure propagates", func(t *testing.T) {
		d := &mocks.MockDriver{}
		d.On("Query", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("websocket closed: %w", interaction.ErrDriverUnavailable))

		_, err := interaction.NewResolver(d, nil, 10*time.Millisecond).Resolve(ctx, candidates(3), 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, interaction.ErrDriverUnavailable)
		var rf *interaction.ResolutionFailure
		assert.False(t, errors.As(err, &rf))
		d.AssertNumberOfCalls(t, "Query", 1)
	})

	t.Run("caller cancellation propagates", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		page := interactiontest.NewPage()
		_, err := interaction.NewResolver(page, nil, 10*time.Millisecond).Resolve(cctx, candidates(3), 0)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("nil driver panics", func(t *testing.T) {
		assert.Panics(t, func() { interaction.NewResolver(nil, nil, 0) })
	})
}
