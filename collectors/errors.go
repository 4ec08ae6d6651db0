package collectors

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicatePlugin = errors.New("duplicate plugin")
	ErrUnknownPlugin   = errors.New("unknown plugin")
)

// ConfigError reports a malformed plugin declaration. It is a programming or
// packaging mistake, never a host condition.
type ConfigError struct {
	Plugin string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Plugin == "" {
		return fmt.Sprintf("plugin config: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("plugin %q: %s: %s", e.Plugin, e.Field, e.Reason)
}
