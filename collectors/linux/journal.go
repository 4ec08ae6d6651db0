package linux

import (
	"context"
	"fmt"
	"path/filepath"

	"diag-bundle/collectors"
)

func (c *PluginCollector) journalArgs(unit string) []string {
	args := []string{"--no-pager", "--unit", unit}
	if c.opts.JournalSince != "" {
		args = append(args, "--since", c.opts.JournalSince)
	}
	return args
}

func (c *PluginCollector) captureJournal(ctx context.Context, rc collectors.RunContext) []collectors.Artifact {
	if len(c.spec.JournalUnits) == 0 {
		return nil
	}
	if _, err := c.lookPath("journalctl"); err != nil {
		if c.plugin.Flags().NoExternalService {
			return nil
		}
		var artifacts []collectors.Artifact
		for _, unit := range c.spec.JournalUnits {
			artifacts = append(artifacts, c.failure(collectors.KindJournal, unit, fmt.Errorf("journalctl unavailable: %w", err)))
		}
		return artifacts
	}

	var artifacts []collectors.Artifact
	used := make(map[string]bool, len(c.spec.JournalUnits))
	for _, unit := range c.spec.JournalUnits {
		if ctx.Err() != nil {
			return artifacts
		}
		cctx, cancel := context.WithTimeout(ctx, c.opts.CommandTimeout)
		out, err := c.run(cctx, "journalctl", c.journalArgs(unit)...)
		cancel()
		if err != nil {
			artifacts = append(artifacts, c.failure(collectors.KindJournal, unit, fmt.Errorf("journalctl --unit %s: %w", unit, err)))
			continue
		}

		rel := filepath.Join(c.Name(), "journal", uniqueName(used, outputName(unit))+".log")
		a, err := c.writeCaptured(rc, collectors.KindJournal, unit, rel, out, map[string]string{"unit": unit})
		if err != nil {
			artifacts = append(artifacts, c.failure(collectors.KindJournal, unit, err))
			continue
		}
		artifacts = append(artifacts, a)
	}
	return artifacts
}
