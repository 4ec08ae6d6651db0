package timeline

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diag-bundle/collectors"
	"diag-bundle/evidence"
)

func TestEvents(t *testing.T) {
	arts := []collectors.Artifact{
		{Collector: "warewulf", RelativePath: "warewulf/commands/wwctl_version.txt", CollectedAt: "2026-01-01T00:00:02Z"},
		{Collector: "warewulf", Source: "/etc/dhcp/", Error: "not found", CollectedAt: "2026-01-01T00:00:01Z"},
	}
	events := Events(arts, Options{
		CaseID:    "c1",
		StartedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Plugins:   []evidence.PluginRecord{{Name: "nfs", Status: evidence.PluginSkipped, Reason: "not applicable"}},
	})

	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{RunStarted, PluginSkipped, ItemFailed, ArtifactCollected, RunFinished}, types)
	assert.Equal(t, "nfs", events[1].Collector)
	assert.Equal(t, "1", events[4].Metadata["failures"])
	assert.Equal(t, "1", events[4].Metadata["artifacts"])
}

func TestWriteJSONL(t *testing.T) {
	dir := t.TempDir()
	rel, err := WriteJSONL(context.Background(), dir, []collectors.Artifact{{Collector: "proc", CollectedAt: "x"}}, Options{CaseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "analysis/timeline.jsonl", rel)

	f, err := os.Open(filepath.Join(dir, "analysis", "timeline.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var lines int
	s := bufio.NewScanner(f)
	for s.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(s.Bytes(), &e))
		lines++
	}
	assert.Equal(t, 3, lines)
}
