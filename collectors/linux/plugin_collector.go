package linux

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"diag-bundle/analyzers/redact"
	"diag-bundle/collectors"
	"diag-bundle/evidence"
	"diag-bundle/logging"
)

const (
	DefaultMaxFileBytes   int64 = 25 * 1024 * 1024
	DefaultMaxPluginBytes int64 = 250 * 1024 * 1024
	DefaultCommandTimeout       = 60 * time.Second
)

type Options struct {
	// MaxFileBytes caps one copied file or captured output. Larger content
	// keeps its tail, which is where logs keep recent lines.
	MaxFileBytes int64
	// MaxPluginBytes caps everything one plugin copies from the filesystem.
	MaxPluginBytes int64
	CommandTimeout time.Duration
	// JournalSince is passed to journalctl --since when set.
	JournalSince string
	Redactor     *redact.Redactor
}

func (o Options) withDefaults() Options {
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = DefaultMaxFileBytes
	}
	if o.MaxPluginBytes <= 0 {
		o.MaxPluginBytes = DefaultMaxPluginBytes
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = DefaultCommandTimeout
	}
	return o
}

// PluginCollector executes one plugin's declaration. Output lands under
// <case>/<plugin>/{files,commands,journal}.
type PluginCollector struct {
	plugin   *collectors.Plugin
	spec     collectors.CollectionSpec
	opts     Options
	run      runFunc
	lookPath func(string) (string, error)
}

func NewPluginCollector(p *collectors.Plugin, opts Options) *PluginCollector {
	return &PluginCollector{
		plugin:   p,
		spec:     p.Spec(),
		opts:     opts.withDefaults(),
		run:      runCmd,
		lookPath: exec.LookPath,
	}
}

func (c *PluginCollector) Name() string { return c.plugin.Name() }

func (c *PluginCollector) Collect(ctx context.Context, rc collectors.RunContext) ([]collectors.Artifact, error) {
	var artifacts []collectors.Artifact

	artifacts = append(artifacts, c.copyFiles(ctx, rc)...)
	if err := ctx.Err(); err != nil {
		c.logFailures(ctx, artifacts)
		return artifacts, err
	}
	artifacts = append(artifacts, c.captureCommands(ctx, rc)...)
	if err := ctx.Err(); err != nil {
		c.logFailures(ctx, artifacts)
		return artifacts, err
	}
	artifacts = append(artifacts, c.captureJournal(ctx, rc)...)
	c.logFailures(ctx, artifacts)
	return artifacts, ctx.Err()
}

func (c *PluginCollector) logFailures(ctx context.Context, artifacts []collectors.Artifact) {
	lg := logging.For(ctx, "runtime").With(logging.KeyPlugin, c.Name())
	for _, a := range artifacts {
		if a.Failed() {
			lg.Debug("item failed", logging.KeyItem, a.Source, logging.KeyError, a.Error)
		}
	}
}

func (c *PluginCollector) failure(kind, source string, err error) collectors.Artifact {
	return collectors.Artifact{
		Collector:   c.Name(),
		Kind:        kind,
		Source:      source,
		CollectedAt: now(),
		Error:       err.Error(),
	}
}

// writeCaptured redacts and stores captured bytes, returning the artifact.
func (c *PluginCollector) writeCaptured(rc collectors.RunContext, kind, source, rel string, data []byte, meta map[string]string) (collectors.Artifact, error) {
	data, truncated := tail(data, c.opts.MaxFileBytes)
	if meta == nil {
		meta = map[string]string{}
	}
	if truncated {
		meta["truncated"] = "true"
	}
	if !looksBinary(data) {
		var n int
		data, n = c.opts.Redactor.Redact(data)
		if n > 0 {
			meta["redactions"] = strconv.Itoa(n)
		}
	}

	rel = filepath.ToSlash(rel)
	if err := evidence.WriteFileAtomic(filepath.Join(rc.OutputDir, filepath.FromSlash(rel)), data, 0o600); err != nil {
		return collectors.Artifact{}, err
	}
	if len(meta) == 0 {
		meta = nil
	}
	return collectors.Artifact{
		RelativePath: rel,
		Collector:    c.Name(),
		Kind:         kind,
		Source:       source,
		CollectedAt:  now(),
		SizeBytes:    int64(len(data)),
		SHA256:       evidence.SHA256Bytes(data),
		Metadata:     meta,
	}, nil
}

func (c *PluginCollector) captureCommands(ctx context.Context, rc collectors.RunContext) []collectors.Artifact {
	var artifacts []collectors.Artifact
	used := make(map[string]bool, len(c.spec.Commands))
	for _, line := range c.spec.Commands {
		if ctx.Err() != nil {
			return artifacts
		}
		argv := splitCommand(line)
		if _, err := c.lookPath(argv[0]); err != nil {
			artifacts = append(artifacts, c.failure(collectors.KindCommand, line, err))
			continue
		}

		cctx, cancel := context.WithTimeout(ctx, c.opts.CommandTimeout)
		out, runErr := c.run(cctx, argv[0], argv[1:]...)
		timedOut := errors.Is(cctx.Err(), context.DeadlineExceeded)
		cancel()

		meta := map[string]string{"cmd": line}
		var exitErr *exec.ExitError
		switch {
		case runErr == nil:
			meta["exit_code"] = "0"
		case errors.As(runErr, &exitErr):
			meta["exit_code"] = strconv.Itoa(exitErr.ExitCode())
		}

		if runErr != nil && len(out) == 0 {
			if timedOut {
				runErr = errors.New("timed out after " + c.opts.CommandTimeout.String())
			}
			artifacts = append(artifacts, c.failure(collectors.KindCommand, line, runErr))
			continue
		}

		rel := filepath.Join(c.Name(), "commands", uniqueName(used, outputName(line))+".txt")
		a, err := c.writeCaptured(rc, collectors.KindCommand, line, rel, out, meta)
		if err != nil {
			artifacts = append(artifacts, c.failure(collectors.KindCommand, line, err))
			continue
		}
		if runErr != nil {
			a.Error = runErr.Error()
			if timedOut {
				a.Error = "timed out after " + c.opts.CommandTimeout.String()
			}
		}
		artifacts = append(artifacts, a)
	}
	return artifacts
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
