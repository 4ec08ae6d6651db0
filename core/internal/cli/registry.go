package cli

import (
	"fmt"

	"diag-bundle/collectors"
	"diag-bundle/collectors/builtin"
	"diag-bundle/collectors/descriptor"
	"diag-bundle/logging"
)

var log = logging.L("cli")

// loadRegistry returns the built-in plugins plus every valid descriptor found
// in cfg's plugin directories. Broken descriptors are logged and skipped; a
// descriptor reusing a known name is an error.
func (a *app) loadRegistry() (*collectors.Registry, error) {
	reg, err := builtin.Registry(a.cfg.Layout)
	if err != nil {
		return nil, fmt.Errorf("built-in plugins: %w", err)
	}
	for _, dir := range a.cfg.PluginDirs {
		plugins, err := descriptor.LoadDir(dir)
		if err != nil {
			log.Warn("some plugin descriptors were skipped", "dir", dir, logging.KeyError, err)
		}
		for _, p := range plugins {
			if err := reg.Register(p); err != nil {
				return nil, fmt.Errorf("plugin dir %s: %w", dir, err)
			}
		}
	}
	return reg, nil
}
