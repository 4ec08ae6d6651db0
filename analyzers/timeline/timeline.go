package timeline

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"diag-bundle/collectors"
	"diag-bundle/evidence"
)

// Event types.
const (
	RunStarted        = "run_started"
	PluginSkipped     = "plugin_skipped"
	ArtifactCollected = "artifact_collected"
	ItemFailed        = "item_failed"
	RunFinished       = "run_finished"
)

type Event struct {
	Time      string            `json:"time"`
	Type      string            `json:"type"`
	Artifact  string            `json:"artifact,omitempty"`
	Collector string            `json:"collector,omitempty"`
	Source    string            `json:"source,omitempty"`
	SHA256    string            `json:"sha256,omitempty"`
	SizeBytes int64             `json:"size_bytes,omitempty"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type Options struct {
	CaseID    string
	StartedAt time.Time
	Plugins   []evidence.PluginRecord
}

// Events orders artifacts by collection time between a start and a finish
// event.
func Events(artifacts []collectors.Artifact, opts Options) []Event {
	started := opts.StartedAt
	if started.IsZero() {
		started = time.Now().UTC()
	}

	events := []Event{{
		Time:     started.UTC().Format(time.RFC3339Nano),
		Type:     RunStarted,
		Metadata: map[string]string{"case_id": opts.CaseID},
	}}

	for _, p := range opts.Plugins {
		if p.Status != evidence.PluginSkipped {
			continue
		}
		events = append(events, Event{
			Time:      started.UTC().Format(time.RFC3339Nano),
			Type:      PluginSkipped,
			Collector: p.Name,
			Metadata:  map[string]string{"reason": p.Reason},
		})
	}

	sorted := make([]collectors.Artifact, len(artifacts))
	copy(sorted, artifacts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CollectedAt < sorted[j].CollectedAt })

	failed := 0
	for _, a := range sorted {
		typ := ArtifactCollected
		if a.Failed() {
			typ = ItemFailed
			failed++
		}
		events = append(events, Event{
			Time:      a.CollectedAt,
			Type:      typ,
			Artifact:  a.RelativePath,
			Collector: a.Collector,
			Source:    a.Source,
			SHA256:    a.SHA256,
			SizeBytes: a.SizeBytes,
			Error:     a.Error,
			Metadata:  a.Metadata,
		})
	}

	events = append(events, Event{
		Time: time.Now().UTC().Format(time.RFC3339Nano),
		Type: RunFinished,
		Metadata: map[string]string{
			"case_id":   opts.CaseID,
			"artifacts": strconv.Itoa(len(artifacts) - failed),
			"failures":  strconv.Itoa(failed),
		},
	})
	return events
}

// WriteJSONL writes the run timeline and returns its path relative to
// outputDir.
func WriteJSONL(ctx context.Context, outputDir string, artifacts []collectors.Artifact, opts Options) (string, error) {
	_ = ctx

	rel := filepath.ToSlash(filepath.Join("analysis", "timeline.jsonl"))
	path := filepath.Join(outputDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, e := range Events(artifacts, opts) {
		if err := enc.Encode(e); err != nil {
			return "", err
		}
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return rel, nil
}
