// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/portalprobe/internal/config"
	"github.com/xkilldash9x/portalprobe/internal/interaction"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Interaction() config.InteractionConfig {
	args := m.Called()
	return args.Get(0).(config.InteractionConfig)
}

// --- Setters ---

func (m *MockConfig) SetBrowserHeadless(b bool) {
	m.Called(b)
}

func (m *MockConfig) SetBrowserDriver(d string) {
	m.Called(d)
}

func (m *MockConfig) SetBrowserConcurrency(n int) {
	m.Called(n)
}

// -- Driver Mocks --

// MockDriver mocks interaction.Driver.
type MockDriver struct {
	mock.Mock
}

var _ interaction.Driver = (*MockDriver)(nil)

func (m *MockDriver) Query(ctx context.Context, loc interaction.Locator) (interaction.Element, error) {
	args := m.Called(ctx, loc)
	var el interaction.Element
	if v := args.Get(0); v != nil {
		el = v.(interaction.Element)
	}
	return el, args.Error(1)
}

func (m *MockDriver) Visible(ctx context.Context, loc interaction.Locator) (bool, error) {
	args := m.Called(ctx, loc)
	return args.Bool(0), args.Error(1)
}

func (m *MockDriver) Evaluate(ctx context.Context, expression string) (any, error) {
	args := m.Called(ctx, expression)
	return args.Get(0), args.Error(1)
}

// MockElement mocks interaction.Element.
type MockElement struct {
	mock.Mock
}

var _ interaction.Element = (*MockElement)(nil)

func (m *MockElement) Describe() string { return m.Called().String(0) }

func (m *MockElement) Invoke(ctx context.Context, action interaction.Action, opts interaction.InvokeOptions) error {
	return m.Called(ctx, action, opts).Error(0)
}

func (m *MockElement) Dispatch(ctx context.Context, action interaction.Action) error {
	return m.Called(ctx, action).Error(0)
}

// -- Session Mock --

// MockSession mocks a browser session: a Driver that can also navigate and close.
type MockSession struct {
	MockDriver
}

func (m *MockSession) ID() string { return m.Called().String(0) }

func (m *MockSession) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockSession) Snapshot(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSession) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
