// Package plugin implements the Gantry plugin host.
// Plugins are loaded from ~/.gantry/plugins/ as Go shared objects (.so files).
// Each .so must export a "GantryPlugin" symbol implementing api/v1.PluginV1.
package plugin

import (
	"context"
	"fmt"
	"path/filepath"
	"plugin"
	"sync"

	v1 "github.com/gantry-build/gantry/api/v1"
	"github.com/gantry-build/gantry/internal/core/logger"
)

// Hook names dispatched by the build and packaging flows.
const (
	HookPreBuild  = "OnPreBuild"
	HookPostBuild = "OnPostBuild"
	HookPrePack   = "OnPrePack"
	HookPostPack  = "OnPostPack"
	HookPreSweep  = "OnPreSweep"
)

// Host manages plugin lifecycle and hook dispatch.
type Host struct {
	mu      sync.RWMutex
	plugins map[string]v1.PluginV1   // name → plugin
	hooks   map[string][]v1.HookFunc // hookName → ordered list
	log     *logger.Logger
}

// NewHost creates and returns an empty plugin host.
func NewHost(log *logger.Logger) *Host {
	return &Host{
		plugins: make(map[string]v1.PluginV1),
		hooks:   make(map[string][]v1.HookFunc),
		log:     log,
	}
}

// LoadDir scans dir for *.so files and attempts to load each as a Gantry plugin.
// Load failures are logged and skipped, they never abort the host startup.
func (h *Host) LoadDir(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.so"))
	if err != nil {
		return fmt.Errorf("glob plugins: %w", err)
	}

	for _, path := range matches {
		if err := h.loadPlugin(path); err != nil {
			h.log.Warn("plugin load failed, skipping",
				"path", path,
				"err", err,
			)
		}
	}
	return nil
}

// loadPlugin opens a single .so file and registers its hooks.
func (h *Host) loadPlugin(path string) (retErr error) {
	// Recover from plugin panics so a bad .so never crashes Gantry
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("plugin panicked during load: %v", r)
		}
	}()

	p, err := plugin.Open(path)
	if err != nil {
		return fmt.Errorf("open shared object: %w", err)
	}

	sym, err := p.Lookup("GantryPlugin")
	if err != nil {
		return fmt.Errorf("symbol GantryPlugin not found: %w", err)
	}

	impl, ok := sym.(v1.PluginV1)
	if !ok {
		return fmt.Errorf("GantryPlugin does not implement PluginV1")
	}

	return h.Register(impl)
}

// Register adds a plugin to the host, applying the same version and
// init checks as shared-object loading. Embedders can use it to wire
// in-process plugins without going through a .so file.
func (h *Host) Register(impl v1.PluginV1) error {
	if impl.APIVersion() != v1.PluginAPIVersion {
		return fmt.Errorf("API version mismatch: plugin=%q, host=%q",
			impl.APIVersion(), v1.PluginAPIVersion)
	}

	if err := impl.Init(nil); err != nil {
		return fmt.Errorf("plugin Init() failed: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	name := impl.Name()
	h.plugins[name] = impl

	for hookName, fn := range impl.Hooks() {
		h.hooks[hookName] = append(h.hooks[hookName], fn)
	}

	h.log.Info("plugin loaded", "name", name, "api_version", impl.APIVersion())
	return nil
}

// Fire dispatches a named hook to all registered plugins.
// Plugin errors are logged but do not prevent subsequent plugins from running.
// The context may be used to cancel long-running hook implementations.
func (h *Host) Fire(ctx context.Context, hookName string, hctx v1.HookContext) {
	h.mu.RLock()
	fns := h.hooks[hookName]
	h.mu.RUnlock()

	for _, fn := range fns {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func(f v1.HookFunc) {
			defer func() {
				if r := recover(); r != nil {
					h.log.Error("plugin hook panicked",
						"hook", hookName,
						"panic", fmt.Sprintf("%v", r),
					)
				}
			}()
			if err := f(hctx); err != nil {
				h.log.Warn("plugin hook returned error",
					"hook", hookName,
					"err", err,
				)
			}
		}(fn)
	}
}

// FireStrict dispatches a named hook and stops at the first error.
// Used for OnPreBuild, where a failing hook must abort before any
// metadata file is touched.
func (h *Host) FireStrict(ctx context.Context, hookName string, hctx v1.HookContext) error {
	h.mu.RLock()
	fns := h.hooks[hookName]
	h.mu.RUnlock()

	for _, fn := range fns {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(hctx); err != nil {
			return fmt.Errorf("hook %s: %w", hookName, err)
		}
	}
	return nil
}

// Shutdown calls Shutdown() on every loaded plugin.
func (h *Host) Shutdown() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for name, p := range h.plugins {
		if err := p.Shutdown(); err != nil {
			h.log.Warn("plugin shutdown error", "name", name, "err", err)
		}
	}
}

// List returns the names of all loaded plugins.
func (h *Host) List() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.plugins))
	for name := range h.plugins {
		names = append(names, name)
	}
	return names
}
