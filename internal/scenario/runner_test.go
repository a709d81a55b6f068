// internal/scenario/runner_test.go
package scenario_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/portalprobe/internal/interaction"
	"github.com/xkilldash9x/portalprobe/internal/interaction/interactiontest"
	"github.com/xkilldash9x/portalprobe/internal/mocks"
	"github.com/xkilldash9x/portalprobe/internal/scenario"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// nopDriver matches nothing and evaluates everything to nil.
type nopDriver struct{}

func (nopDriver) Query(context.Context, interaction.Locator) (interaction.Element, error) {
	return nil, interaction.ErrNoMatch
}

func (nopDriver) Visible(context.Context, interaction.Locator) (bool, error) { return false, nil }

func (nopDriver) Evaluate(context.Context, string) (any, error) { return nil, nil }

// fakeSession is an in-memory page that records navigation.
type fakeSession struct {
	*interactiontest.Page
	mu        sync.Mutex
	navigated []string
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeSession) Snapshot(context.Context) (string, error) {
	return "<html><body>snapshot</body></html>", nil
}

var fastOptions = interaction.Options{
	ProbeTimeout: 50 * time.Millisecond,
	RungTimeout:  50 * time.Millisecond,
	Policy: interaction.RetryPolicy{
		PollInterval: 5 * time.Millisecond,
		Timeout:      80 * time.Millisecond,
	},
}

func createProjectSession() (*fakeSession, *interactiontest.Element) {
	page := interactiontest.NewPage()
	dialog := page.Add(interaction.CSS("#create-dialog"), "create dialog").SetVisible(false)
	page.Add(interaction.Text("Create project"), "button 'Create project'").OnAction(func(interaction.Action) {
		dialog.SetVisible(true)
	})
	input := page.Add(interaction.TestID("project-name"), "name input")
	page.SetScript("document.querySelector('[data-testid=project-name]').value === 'Quarterly'", func() (any, error) {
		return input.Value() == "Quarterly", nil
	})
	return &fakeSession{Page: page}, input
}

func TestRunnerPasses(t *testing.T) {
	s, err := scenario.Parse([]byte(createProject))
	require.NoError(t, err)
	// Keep the test fast; the YAML policy is exercised by TestBuildAppliesPolicy.
	s.Policy = nil

	sess, input := createProjectSession()
	res, err := scenario.NewRunner(zaptest.NewLogger(t), fastOptions).Run(context.Background(), sess, s)
	require.NoError(t, err)

	assert.True(t, res.Passed)
	assert.Equal(t, -1, res.FailedStep)
	assert.Equal(t, []string{s.URL}, sess.navigated)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, "text-only-match", res.Outcomes[0].StrategyUsed.Name)
	assert.Equal(t, "Quarterly", input.Value())
	assert.Empty(t, res.Snapshot)
	assert.Positive(t, res.Elapsed)
}

func TestRunnerStopsAtFirstFailure(t *testing.T) {
	doc := `
name: stops early
url: http://portal.test
steps:
  - intent: open-missing
    candidates: [{name: ghost, value: "#ghost"}]
    action: click
    success: {visible: "#panel"}
  - intent: never-reached
    candidates: [{value: "#other"}]
    action: click
    success: {visible: "#panel"}
`
	s, err := scenario.Parse([]byte(doc))
	require.NoError(t, err)

	sess := &fakeSession{Page: interactiontest.NewPage()}
	res, err := scenario.NewRunner(zaptest.NewLogger(t), fastOptions).Run(context.Background(), sess, s)
	require.NoError(t, err, "a failed outcome is not a run error")

	assert.False(t, res.Passed)
	assert.Equal(t, 0, res.FailedStep)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, interaction.StrategyExhausted, res.Outcomes[0].FailureKind)
	assert.Contains(t, res.Error, "strategy_exhausted")
	assert.Contains(t, res.Snapshot, "snapshot")
}

func TestRunnerPropagatesInfrastructureFailures(t *testing.T) {
	s, err := scenario.Parse([]byte(createProject))
	require.NoError(t, err)

	t.Run("navigation", func(t *testing.T) {
		sess := &mocks.MockSession{}
		sess.On("Navigate", mock.Anything, s.URL).Return(errors.New("net::ERR_NAME_NOT_RESOLVED"))

		res, err := scenario.NewRunner(nil, fastOptions).Run(context.Background(), sess, s)
		assert.ErrorContains(t, err, "ERR_NAME_NOT_RESOLVED")
		assert.False(t, res.Passed)
		assert.Empty(t, res.Outcomes)
		sess.AssertExpectations(t)
	})

	t.Run("dead browser", func(t *testing.T) {
		sess := &mocks.MockSession{}
		sess.On("Navigate", mock.Anything, s.URL).Return(nil)
		sess.On("Visible", mock.Anything, mock.Anything).Return(false, interaction.ErrDriverUnavailable)
		sess.On("Snapshot", mock.Anything).Return("", interaction.ErrDriverUnavailable)

		runner := scenario.NewRunner(nil, fastOptions)
		res, err := runner.Run(context.Background(), sess, s)
		assert.ErrorIs(t, err, interaction.ErrDriverUnavailable)
		assert.Equal(t, 0, res.FailedStep)
		assert.Empty(t, res.Snapshot)
		sess.AssertCalled(t, "Snapshot", mock.Anything)
	})

	t.Run("snapshots can be disabled", func(t *testing.T) {
		sess := &mocks.MockSession{}
		sess.On("Navigate", mock.Anything, s.URL).Return(nil)
		sess.On("Visible", mock.Anything, mock.Anything).Return(false, interaction.ErrDriverUnavailable)

		runner := scenario.NewRunner(nil, fastOptions)
		runner.CaptureSnapshot = false
		_, err := runner.Run(context.Background(), sess, s)
		assert.ErrorIs(t, err, interaction.ErrDriverUnavailable)
		sess.AssertNotCalled(t, "Snapshot", mock.Anything)
	})
}

func TestRunnerCapturesSnapshotAfterCancellation(t *testing.T) {
	s, err := scenario.Parse([]byte(createProject))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	sess := &mocks.MockSession{}
	sess.On("Navigate", mock.Anything, s.URL).Return(nil).Run(func(mock.Arguments) { cancel() })
	sess.On("Snapshot", mock.Anything).Return("<html/>", nil).Run(func(args mock.Arguments) {
		assert.NoError(t, args.Get(0).(context.Context).Err(), "snapshot context must outlive the canceled run")
	})

	res, err := scenario.NewRunner(nil, fastOptions).Run(ctx, sess, s)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, res.Snapshot, "<body></body>")
}
