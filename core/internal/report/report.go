// Package report runs a collection: it evaluates plugins against the host,
// executes the selected ones and packages the case directory.
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"diag-bundle/analyzers/timeline"
	"diag-bundle/collectors"
	"diag-bundle/collectors/hostenv"
	"diag-bundle/collectors/linux"
	"diag-bundle/collectors/system"
	"diag-bundle/evidence"
	"diag-bundle/logging"
)

var log = logging.L("report")

const DefaultParallelism = 4

type Options struct {
	CaseID   string
	Output   string
	Registry *collectors.Registry
	Only     []string
	Skip     []string
	// All runs every selected plugin without asking whether it applies.
	All         bool
	Env         hostenv.Environment
	Parallelism int
	Collector   linux.Options
	Archive     bool
	Version     string
	StartedAt   time.Time

	// host collectors; nil means the system defaults.
	hostCollectors []collectors.Collector
}

type Result struct {
	CaseID        string
	OutputDir     string
	ArchivePath   string
	ArchiveSHA256 string
	Plugins       []evidence.PluginRecord
	Artifacts     []collectors.Artifact
}

// Failures counts artifacts that record a per-item failure.
func (r Result) Failures() int {
	n := 0
	for _, a := range r.Artifacts {
		if a.Failed() {
			n++
		}
	}
	return n
}

type outcome struct {
	done      bool
	artifacts []collectors.Artifact
	err       error
	duration  time.Duration
}

func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.CaseID == "" {
		return Result{}, errors.New("case id is required")
	}
	if opts.Registry == nil {
		return Result{}, errors.New("plugin registry is required")
	}
	if opts.StartedAt.IsZero() {
		opts.StartedAt = time.Now().UTC()
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}

	rlog := log.With(logging.KeyCaseID, opts.CaseID)
	ctx = logging.NewContext(ctx, logging.FromContext(ctx).With(logging.KeyCaseID, opts.CaseID))

	outDir := filepath.Join(opts.Output, opts.CaseID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, err
	}
	rc := collectors.RunContext{CaseID: opts.CaseID, OutputDir: outDir}

	selected, err := opts.Registry.Select(opts.Only, opts.Skip)
	if err != nil {
		return Result{}, err
	}

	var records []evidence.PluginRecord
	var runnable []*collectors.Plugin
	for _, p := range selected {
		rec := evidence.PluginRecord{Name: p.Name()}
		if bad := p.Spec().IneffectiveForbidden(); len(bad) > 0 {
			rlog.Warn("forbidden paths outside every copy path have no effect",
				logging.KeyPlugin, p.Name(), "paths", bad)
			rec.IneffectiveForbidden = bad
		}
		if !opts.All && !p.Applicable(ctx, opts.Env) {
			rec.Status = evidence.PluginSkipped
			rec.Reason = "not applicable on this host"
			rlog.Debug("plugin skipped", logging.KeyPlugin, p.Name())
			records = append(records, rec)
			continue
		}
		runnable = append(runnable, p)
		records = append(records, rec)
	}

	cols := opts.hostCollectors
	if cols == nil {
		cols = []collectors.Collector{
			system.NewHostInfoCollector(),
			system.NewOSReleaseCollector(),
		}
	}
	hostCount := len(cols)
	for _, p := range runnable {
		cols = append(cols, linux.NewPluginCollector(p, opts.Collector))
	}

	rlog.Info("collection started", "plugins", len(runnable), "skipped", len(selected)-len(runnable))

	outcomes := make([]outcome, len(cols))
	var g errgroup.Group
	g.SetLimit(opts.Parallelism)
	for i, c := range cols {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			arts, err := c.Collect(ctx, rc)
			outcomes[i] = outcome{done: true, artifacts: arts, err: err, duration: time.Since(start)}
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
	}
	// An interrupted run still indexes what it gathered; it is not archived.
	runErr := g.Wait()
	fctx := context.WithoutCancel(ctx)

	var artifacts []collectors.Artifact
	byPlugin := make(map[string]outcome, len(runnable))
	for i, c := range cols {
		o := outcomes[i]
		if o.err != nil {
			rlog.Error("collector failed", logging.KeyPlugin, c.Name(), logging.KeyError, o.err)
			artifacts = append(artifacts, writeCollectorError(outDir, c.Name(), o.err))
		}
		artifacts = append(artifacts, o.artifacts...)
		if i >= hostCount {
			byPlugin[c.Name()] = o
		}
	}

	for i := range records {
		o, ok := byPlugin[records[i].Name]
		if !ok {
			continue
		}
		if !o.done {
			records[i].Status = evidence.PluginFailed
			records[i].Reason = "not started: " + runErr.Error()
			continue
		}
		records[i].Artifacts = len(o.artifacts)
		for _, a := range o.artifacts {
			if a.Failed() {
				records[i].Failures++
			}
		}
		records[i].DurationMs = o.duration.Milliseconds()
		records[i].Status = evidence.PluginCollected
		if o.err != nil {
			records[i].Status = evidence.PluginFailed
			records[i].Reason = o.err.Error()
		}
	}

	manifest := evidence.Manifest{
		CaseID:    opts.CaseID,
		Version:   opts.Version,
		Hostname:  system.Hostname(fctx),
		CreatedAt: opts.StartedAt.UTC().Format(time.RFC3339Nano),
		Plugins:   records,
		Artifacts: artifacts,
		Metadata: map[string]string{
			"parallelism": strconv.Itoa(opts.Parallelism),
			"all":         strconv.FormatBool(opts.All),
		},
	}

	if rel, err := timeline.WriteJSONL(fctx, outDir, artifacts, timeline.Options{
		CaseID:    opts.CaseID,
		StartedAt: opts.StartedAt,
		Plugins:   records,
	}); err != nil {
		rlog.Warn("timeline not written", logging.KeyError, err)
	} else if sha, size, err := evidence.SHA256File(filepath.Join(outDir, filepath.FromSlash(rel))); err == nil {
		manifest.Artifacts = append(manifest.Artifacts, collectors.Artifact{
			RelativePath: rel,
			Collector:    "timeline",
			CollectedAt:  now(),
			SizeBytes:    size,
			SHA256:       sha,
		})
	}

	if runErr == nil {
		runErr = ctx.Err()
	}
	if runErr != nil {
		manifest.Metadata["interrupted"] = runErr.Error()
		manifest.Metadata["timed_out"] = strconv.FormatBool(errors.Is(runErr, context.DeadlineExceeded))
	}

	manifest.FinishedAt = now()
	if err := evidence.WriteManifest(outDir, manifest); err != nil {
		return Result{}, fmt.Errorf("write manifest: %w", err)
	}

	res := Result{
		CaseID:    opts.CaseID,
		OutputDir: outDir,
		Plugins:   records,
		Artifacts: manifest.Artifacts,
	}
	if runErr != nil {
		rlog.Warn("collection interrupted, partial manifest written", logging.KeyError, runErr)
		return res, runErr
	}

	if opts.Archive {
		dest := outDir + ".tar.gz"
		sha, size, err := evidence.Archive(outDir, dest)
		if err != nil {
			return res, fmt.Errorf("archive case: %w", err)
		}
		res.ArchivePath = dest
		res.ArchiveSHA256 = sha
		rlog.Info("archive written", "path", dest, "bytes", size)
	}

	rlog.Info("collection finished",
		"artifacts", len(res.Artifacts),
		"failures", res.Failures(),
		logging.KeyDurationMs, time.Since(opts.StartedAt).Milliseconds())
	return res, nil
}

// writeCollectorError records an error that stopped a whole collector under
// errors/<name>.txt so the bundle shows why its output is missing.
func writeCollectorError(outDir, name string, err error) collectors.Artifact {
	rel := filepath.ToSlash(filepath.Join("errors", name+".txt"))
	a := collectors.Artifact{
		RelativePath: rel,
		Collector:    name,
		CollectedAt:  now(),
		Error:        err.Error(),
		Metadata:     map[string]string{"error": err.Error()},
	}
	b := []byte(err.Error() + "\n")
	if werr := evidence.WriteFileAtomic(filepath.Join(outDir, filepath.FromSlash(rel)), b, 0o600); werr == nil {
		a.SizeBytes = int64(len(b))
		a.SHA256 = evidence.SHA256Bytes(b)
	}
	return a
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
