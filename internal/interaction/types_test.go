// internal/interaction/types_test.go
package interaction_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/portalprobe/internal/interaction"
)

func TestParseLocatorKind(t *testing.T) {
	for in, want := range map[string]interaction.LocatorKind{
		"":        interaction.ByCSS,
		"css":     interaction.ByCSS,
		" XPath ": interaction.ByXPath,
		"text":    interaction.ByText,
		"role":    interaction.ByRole,
		"testid":  interaction.ByTestID,
	} {
		got, err := interaction.ParseLocatorKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := interaction.ParseLocatorKind("jquery")
	assert.ErrorContains(t, err, `unknown locator kind "jquery"`)
}

func TestParseActionKind(t *testing.T) {
	got, err := interaction.ParseActionKind("Uncheck")
	require.NoError(t, err)
	assert.Equal(t, interaction.ActionUncheck, got)

	_, err = interaction.ParseActionKind("")
	assert.Error(t, err)
	_, err = interaction.ParseActionKind("hover")
	assert.Error(t, err)
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "open-menu", interaction.Intent{Name: "open-menu"}.String())
	assert.Equal(t, "open-menu (open-multiselect)", interaction.Intent{Name: "open-menu", Role: "open-multiselect"}.String())
	assert.Equal(t, "css=#id", interaction.CSS("#id").String())
	assert.Equal(t, `role=button[name="Save"]`, interaction.Role("button", "Save").String())
	assert.Equal(t, "testid=save", interaction.TestID("save").String())
	assert.Equal(t, "xpath=//a", interaction.XPath("//a").String())
	assert.Equal(t, "text=Save", interaction.Text("Save").String())

	assert.Equal(t, "named", interaction.Candidate{Name: "named", Locator: interaction.CSS("a")}.String())
	assert.Equal(t, "css=a", interaction.Candidate{Locator: interaction.CSS("a")}.String())

	// Fill values may be secrets; only their length is rendered.
	assert.Equal(t, "fill(6 chars)", interaction.Action{Kind: interaction.ActionFill, Value: "hunter"}.String())
	assert.Equal(t, "click", interaction.Action{Kind: interaction.ActionClick}.String())

	assert.Equal(t, "verifying", interaction.PhaseVerifying.String())
	assert.Equal(t, "phase(42)", interaction.Phase(42).String())
	assert.Equal(t, "poll_timeout", interaction.PollTimeout.String())
	assert.Equal(t, "synthetic", interaction.TechniqueSynthetic.String())
}

func TestRetryPolicyValidate(t *testing.T) {
	assert.NoError(t, interaction.DefaultRetryPolicy.Validate())
	assert.NoError(t, interaction.RetryPolicy{PollInterval: time.Millisecond}.Validate())
	assert.ErrorContains(t, interaction.RetryPolicy{PollInterval: time.Millisecond, Timeout: -1}.Validate(), "timeout must not be negative")
	assert.ErrorContains(t, interaction.RetryPolicy{PollInterval: time.Millisecond, MaxStrategyAttempts: -1}.Validate(), "max strategy attempts")
}

func TestInteractionCopies(t *testing.T) {
	base := interaction.Interaction{Action: interaction.Action{Kind: interaction.ActionFill}}
	filled := base.WithValue("hello")
	assert.Equal(t, "hello", filled.Action.Value)
	assert.Empty(t, base.Action.Value)

	verified := base.WithSuccess(always(true))
	assert.False(t, verified.Success.IsZero())
	assert.True(t, base.Success.IsZero())
}
