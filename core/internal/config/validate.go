package config

import (
	"fmt"
	"strings"
	"time"

	"diag-bundle/logging"
)

var log = logging.L("config")

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Validate clamps values that would break a run and returns every problem
// found. Problems are logged as warnings and do not stop a collection.
func (c *Config) Validate() []error {
	var errs []error

	if strings.TrimSpace(c.Output) == "" {
		errs = append(errs, fmt.Errorf("output must not be empty, using %s", Default().Output))
		c.Output = Default().Output
	}

	if c.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("parallelism %d is below minimum 1, clamping", c.Parallelism))
		c.Parallelism = 1
	} else if c.Parallelism > 64 {
		errs = append(errs, fmt.Errorf("parallelism %d exceeds maximum 64, clamping", c.Parallelism))
		c.Parallelism = 64
	}

	if c.CommandTimeout < time.Second {
		errs = append(errs, fmt.Errorf("command_timeout %s is below minimum 1s, clamping", c.CommandTimeout))
		c.CommandTimeout = time.Second
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout %s is negative, disabling", c.Timeout))
		c.Timeout = 0
	}

	if c.MaxFileBytes < 1024 {
		errs = append(errs, fmt.Errorf("max_file_bytes %d is below minimum 1024, clamping", c.MaxFileBytes))
		c.MaxFileBytes = 1024
	}
	if c.MaxPluginBytes < c.MaxFileBytes {
		errs = append(errs, fmt.Errorf("max_plugin_bytes %d is below max_file_bytes, raising to %d", c.MaxPluginBytes, c.MaxFileBytes))
		c.MaxPluginBytes = c.MaxFileBytes
	}

	if err := c.Layout.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w, using defaults", err))
		c.Layout = Default().Layout
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	for _, err := range errs {
		log.Warn("config validation", logging.KeyError, err)
	}
	return errs
}
