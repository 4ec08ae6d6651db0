package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"diag-bundle/collectors"
	"diag-bundle/collectors/hostenv"
	"diag-bundle/core/internal/config"
	"diag-bundle/evidence"
)

func staticEnv(cfg *config.Config) hostenv.Environment {
	return hostenv.Static{Packages: cfg.AssumePackages, Services: cfg.AssumeServices}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	cmd := newRootCmd(staticEnv)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// pluginDir writes a descriptor for a plugin that copies src.
func pluginDir(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	desc := "name: sample\n" +
		"short_desc: Sample app\n" +
		"packages: [sample]\n" +
		"copy_paths: [" + src + "/]\n" +
		"forbidden_paths: [" + filepath.Join(src, "private") + "]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.yaml"), []byte(desc), 0o644))
	return dir
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dev")
}

func TestPluginsList(t *testing.T) {
	out, err := execute(t, "plugins", "list", "--plugin-dir", pluginDir(t, t.TempDir()), "--assume-package", "warewulf")
	require.NoError(t, err)

	for _, name := range []string{"warewulf", "nfs", "tftp", "proc", "sample"} {
		assert.Contains(t, out, name)
	}
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, " warewulf "):
			assert.Contains(t, line, "yes")
		case strings.Contains(line, " sample "):
			assert.Contains(t, line, "no")
		}
	}
}

func TestPluginsShow(t *testing.T) {
	out, err := execute(t, "plugins", "show", "warewulf")
	require.NoError(t, err)

	var cfg collectors.PluginConfig
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "warewulf", cfg.Name)
	assert.Equal(t, []string{"warewulfd.service"}, cfg.JournalUnits)
	assert.Contains(t, cfg.Commands, "wwctl node list")
}

func TestPluginsShowUnknown(t *testing.T) {
	_, err := execute(t, "plugins", "show", "nope")
	assert.ErrorIs(t, err, collectors.ErrUnknownPlugin)
}

func TestCollect(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "sample.conf"), []byte("mode=fast\ntoken: abc123\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "private"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "private", "id"), []byte("x"), 0o600))
	output := t.TempDir()

	out, err := execute(t, "collect",
		"--output", output,
		"--case-id", "case-42",
		"--plugin-dir", pluginDir(t, src),
		"--only", "sample",
		"--assume-package", "sample",
		"--no-archive",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "case=case-42")
	assert.NotContains(t, out, "archive=")

	caseDir := filepath.Join(output, "case-42")
	m, err := evidence.ReadManifest(caseDir)
	require.NoError(t, err)
	require.Len(t, m.Plugins, 1)
	assert.Equal(t, "sample", m.Plugins[0].Name)
	assert.Equal(t, evidence.PluginCollected, m.Plugins[0].Status)

	b, err := os.ReadFile(filepath.Join(caseDir, "sample", "files", strings.TrimPrefix(src, "/"), "sample.conf"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "mode=fast")
	assert.NotContains(t, string(b), "abc123")
	assert.NoDirExists(t, filepath.Join(caseDir, "sample", "files", strings.TrimPrefix(src, "/"), "private"))
	assert.NoFileExists(t, filepath.Join(output, "case-42.tar.gz"))
}

func TestCollectRejectsUnsafeCaseID(t *testing.T) {
	_, err := execute(t, "collect", "--output", t.TempDir(), "--case-id", "../escape", "--only", "proc")
	assert.ErrorContains(t, err, "invalid case id")
}

func TestCollectUnknownPlugin(t *testing.T) {
	_, err := execute(t, "collect", "--output", t.TempDir(), "--only", "nope", "--no-archive")
	assert.ErrorIs(t, err, collectors.ErrUnknownPlugin)
}

func TestRelativeLayoutDoesNotPanic(t *testing.T) {
	t.Setenv("DIAG_BUNDLE_LAYOUT_SYSCONFDIR", "etc")

	var out string
	var err error
	require.NotPanics(t, func() {
		out, err = execute(t, "plugins", "show", "warewulf")
	})
	require.NoError(t, err)
	assert.Contains(t, out, "/etc/warewulf/")
}
