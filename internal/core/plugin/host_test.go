package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gantry-build/gantry/api/v1"
	"github.com/gantry-build/gantry/internal/core/logger"
)

// fakePlugin implements v1.PluginV1 in-process for host tests.
type fakePlugin struct {
	name       string
	apiVersion string
	initErr    error
	hooks      map[string]v1.HookFunc
	shutdowns  int
}

func (p *fakePlugin) Name() string { return p.name }

func (p *fakePlugin) APIVersion() string {
	if p.apiVersion == "" {
		return v1.PluginAPIVersion
	}
	return p.apiVersion
}

func (p *fakePlugin) Init(map[string]string) error { return p.initErr }

func (p *fakePlugin) Hooks() map[string]v1.HookFunc { return p.hooks }

func (p *fakePlugin) Shutdown() error {
	p.shutdowns++
	return nil
}

func TestRegisterRejectsAPIVersionMismatch(t *testing.T) {
	h := NewHost(logger.Nop())
	err := h.Register(&fakePlugin{name: "old", apiVersion: "v0"})
	require.Error(t, err)
	assert.Empty(t, h.List())
}

func TestRegisterRejectsInitFailure(t *testing.T) {
	h := NewHost(logger.Nop())
	err := h.Register(&fakePlugin{name: "broken", initErr: errors.New("no config")})
	require.Error(t, err)
	assert.Empty(t, h.List())
}

func TestFireContinuesPastErrorsAndPanics(t *testing.T) {
	h := NewHost(logger.Nop())

	var called []string
	require.NoError(t, h.Register(&fakePlugin{name: "erroring", hooks: map[string]v1.HookFunc{
		HookPostBuild: func(v1.HookContext) error {
			called = append(called, "erroring")
			return errors.New("hook failed")
		},
	}}))
	require.NoError(t, h.Register(&fakePlugin{name: "panicking", hooks: map[string]v1.HookFunc{
		HookPostBuild: func(v1.HookContext) error {
			called = append(called, "panicking")
			panic("boom")
		},
	}}))
	require.NoError(t, h.Register(&fakePlugin{name: "quiet", hooks: map[string]v1.HookFunc{
		HookPostBuild: func(v1.HookContext) error {
			called = append(called, "quiet")
			return nil
		},
	}}))

	h.Fire(context.Background(), HookPostBuild, v1.HookContext{})
	assert.Equal(t, []string{"erroring", "panicking", "quiet"}, called)
}

func TestFireStrictStopsAtFirstError(t *testing.T) {
	h := NewHost(logger.Nop())

	var called []string
	require.NoError(t, h.Register(&fakePlugin{name: "veto", hooks: map[string]v1.HookFunc{
		HookPreBuild: func(v1.HookContext) error {
			called = append(called, "veto")
			return errors.New("not on fridays")
		},
	}}))
	require.NoError(t, h.Register(&fakePlugin{name: "never", hooks: map[string]v1.HookFunc{
		HookPreBuild: func(v1.HookContext) error {
			called = append(called, "never")
			return nil
		},
	}}))

	err := h.FireStrict(context.Background(), HookPreBuild, v1.HookContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), HookPreBuild)
	assert.Equal(t, []string{"veto"}, called)
}

func TestFireStrictPassesContext(t *testing.T) {
	h := NewHost(logger.Nop())
	require.NoError(t, h.Register(&fakePlugin{name: "any", hooks: map[string]v1.HookFunc{
		HookPreBuild: func(v1.HookContext) error { return nil },
	}}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, h.FireStrict(ctx, HookPreBuild, v1.HookContext{}))
}

func TestShutdownReachesEveryPlugin(t *testing.T) {
	h := NewHost(logger.Nop())
	a := &fakePlugin{name: "a"}
	b := &fakePlugin{name: "b"}
	require.NoError(t, h.Register(a))
	require.NoError(t, h.Register(b))

	h.Shutdown()
	assert.Equal(t, 1, a.shutdowns)
	assert.Equal(t, 1, b.shutdowns)
	assert.ElementsMatch(t, []string{"a", "b"}, h.List())
}
