package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diag-bundle/analyzers/redact"
	"diag-bundle/collectors"
	"diag-bundle/collectors/hostenv"
	"diag-bundle/collectors/linux"
	"diag-bundle/evidence"
)

type stubCollector struct {
	name string
	err  error
}

func (s stubCollector) Name() string { return s.name }

func (s stubCollector) Collect(context.Context, collectors.RunContext) ([]collectors.Artifact, error) {
	return nil, s.err
}

func fixture(t *testing.T) (src string, reg *collectors.Registry) {
	t.Helper()
	src = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "app.conf"), []byte("listen 8080\npassword = hunter2\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "keys"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "keys", "server.key"), []byte("private"), 0o600))

	reg, err := collectors.NewRegistry(
		collectors.MustNew(collectors.PluginConfig{
			Name:           "app",
			Packages:       []string{"app"},
			CopyPaths:      []string{src + "/"},
			ForbiddenPaths: []string{filepath.Join(src, "keys"), "/var/other/x"},
		}),
		collectors.MustNew(collectors.PluginConfig{
			Name:      "absent",
			Packages:  []string{"absent"},
			CopyPaths: []string{src + "/"},
		}),
	)
	require.NoError(t, err)
	return src, reg
}

func pluginRecords(recs []evidence.PluginRecord) map[string]evidence.PluginRecord {
	m := make(map[string]evidence.PluginRecord, len(recs))
	for _, r := range recs {
		m[r.Name] = r
	}
	return m
}

func TestRunCollectsApplicablePlugins(t *testing.T) {
	src, reg := fixture(t)
	out := t.TempDir()

	res, err := Run(context.Background(), Options{
		CaseID:         "case-1",
		Output:         out,
		Registry:       reg,
		Env:            hostenv.Static{Packages: []string{"app"}},
		Version:        "test",
		Archive:        true,
		Collector:      linux.Options{Redactor: redact.Default()},
		hostCollectors: []collectors.Collector{},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "case-1"), res.OutputDir)

	recs := pluginRecords(res.Plugins)
	assert.Equal(t, evidence.PluginCollected, recs["app"].Status)
	assert.Equal(t, 1, recs["app"].Artifacts)
	assert.Equal(t, []string{"/var/other/x"}, recs["app"].IneffectiveForbidden)
	assert.Equal(t, evidence.PluginSkipped, recs["absent"].Status)
	assert.NotEmpty(t, recs["absent"].Reason)

	copied := filepath.Join(res.OutputDir, "app", "files", strings.TrimPrefix(src, "/"), "app.conf")
	b, err := os.ReadFile(copied)
	require.NoError(t, err)
	assert.Contains(t, string(b), "listen 8080")
	assert.NotContains(t, string(b), "hunter2")
	assert.NoFileExists(t, filepath.Join(res.OutputDir, "app", "files", strings.TrimPrefix(src, "/"), "keys", "server.key"))

	m, err := evidence.ReadManifest(res.OutputDir)
	require.NoError(t, err)
	assert.Equal(t, "case-1", m.CaseID)
	assert.Equal(t, "test", m.Version)
	assert.NotEmpty(t, m.FinishedAt)
	assert.Len(t, m.Plugins, 2)
	assert.FileExists(t, filepath.Join(res.OutputDir, "analysis", "timeline.jsonl"))

	assert.Equal(t, res.OutputDir+".tar.gz", res.ArchivePath)
	assert.FileExists(t, res.ArchivePath)
	assert.FileExists(t, res.ArchivePath+".sha256")
	assert.Len(t, res.ArchiveSHA256, 64)
}

func TestRunAllIgnoresApplicability(t *testing.T) {
	_, reg := fixture(t)

	res, err := Run(context.Background(), Options{
		CaseID:         "case-all",
		Output:         t.TempDir(),
		Registry:       reg,
		All:            true,
		Env:            hostenv.Static{},
		hostCollectors: []collectors.Collector{},
	})
	require.NoError(t, err)

	recs := pluginRecords(res.Plugins)
	assert.Equal(t, evidence.PluginCollected, recs["app"].Status)
	assert.Equal(t, evidence.PluginCollected, recs["absent"].Status)
	assert.Empty(t, res.ArchivePath)
}

func TestRunOnlyAndSkip(t *testing.T) {
	_, reg := fixture(t)

	res, err := Run(context.Background(), Options{
		CaseID:         "case-only",
		Output:         t.TempDir(),
		Registry:       reg,
		Only:           []string{"app", "absent"},
		Skip:           []string{"absent"},
		All:            true,
		hostCollectors: []collectors.Collector{},
	})
	require.NoError(t, err)
	require.Len(t, res.Plugins, 1)
	assert.Equal(t, "app", res.Plugins[0].Name)

	_, err = Run(context.Background(), Options{
		CaseID:   "case-bad",
		Output:   t.TempDir(),
		Registry: reg,
		Only:     []string{"nope"},
	})
	assert.ErrorIs(t, err, collectors.ErrUnknownPlugin)
}

func TestRunIsolatesCollectorErrors(t *testing.T) {
	_, reg := fixture(t)

	res, err := Run(context.Background(), Options{
		CaseID:   "case-err",
		Output:   t.TempDir(),
		Registry: reg,
		Env:      hostenv.Static{Packages: []string{"app"}},
		hostCollectors: []collectors.Collector{
			stubCollector{name: "broken", err: errors.New("boom")},
			stubCollector{name: "fine"},
		},
	})
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(res.OutputDir, "errors", "broken.txt"))
	require.NoError(t, err)
	assert.Equal(t, "boom\n", string(b))
	assert.Equal(t, 1, res.Failures())
	assert.Equal(t, evidence.PluginCollected, pluginRecords(res.Plugins)["app"].Status)
}

func TestRunCancelledWritesPartialManifest(t *testing.T) {
	_, reg := fixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, Options{
		CaseID:         "case-cancel",
		Output:         t.TempDir(),
		Registry:       reg,
		All:            true,
		Archive:        true,
		StartedAt:      time.Now(),
		hostCollectors: []collectors.Collector{},
	})
	assert.ErrorIs(t, err, context.Canceled)

	m, err := evidence.ReadManifest(res.OutputDir)
	require.NoError(t, err)
	assert.Equal(t, "false", m.Metadata["timed_out"])
	assert.NotEmpty(t, m.Metadata["interrupted"])
	for _, p := range m.Plugins {
		assert.Equal(t, evidence.PluginFailed, p.Status, p.Name)
	}
	assert.Empty(t, res.ArchivePath)
	assert.NoFileExists(t, res.OutputDir+".tar.gz")
}

// blockingCollector returns one artifact, then waits for the run to end.
type blockingCollector struct{}

func (blockingCollector) Name() string { return "slow" }

func (blockingCollector) Collect(ctx context.Context, _ collectors.RunContext) ([]collectors.Artifact, error) {
	arts := []collectors.Artifact{{Collector: "slow", RelativePath: "slow/partial.txt", CollectedAt: now()}}
	<-ctx.Done()
	return arts, ctx.Err()
}

func TestRunTimeoutKeepsCollectedArtifacts(t *testing.T) {
	_, reg := fixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res, err := Run(ctx, Options{
		CaseID:         "case-timeout",
		Output:         t.TempDir(),
		Registry:       reg,
		Only:           []string{"app"},
		Env:            hostenv.Static{Packages: []string{"app"}},
		Parallelism:    2,
		Archive:        true,
		hostCollectors: []collectors.Collector{blockingCollector{}},
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	m, err := evidence.ReadManifest(res.OutputDir)
	require.NoError(t, err)
	assert.Equal(t, "true", m.Metadata["timed_out"])
	assert.NotEmpty(t, m.FinishedAt)

	var sources []string
	for _, a := range m.Artifacts {
		sources = append(sources, a.RelativePath)
	}
	assert.Contains(t, sources, "slow/partial.txt")
	assert.Contains(t, sources, "analysis/timeline.jsonl")
	assert.NoFileExists(t, res.OutputDir+".tar.gz")
}

func TestRunRequiresCaseAndRegistry(t *testing.T) {
	reg, err := collectors.NewRegistry()
	require.NoError(t, err)
	_, err = Run(context.Background(), Options{Registry: reg})
	assert.Error(t, err)

	_, err = Run(context.Background(), Options{CaseID: "x"})
	assert.Error(t, err)
}
