package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"diag-bundle/collectors"
)

const ManifestName = "manifest.json"

// Plugin run states recorded in the manifest.
const (
	PluginCollected = "collected"
	PluginSkipped   = "skipped"
	PluginFailed    = "failed"
)

type PluginRecord struct {
	Name                 string   `json:"name"`
	Status               string   `json:"status"`
	Reason               string   `json:"reason,omitempty"`
	IneffectiveForbidden []string `json:"ineffective_forbidden,omitempty"`
	Artifacts            int      `json:"artifacts"`
	Failures             int      `json:"failures"`
	DurationMs           int64    `json:"duration_ms"`
}

type Manifest struct {
	CaseID     string                `json:"case_id"`
	Version    string                `json:"version,omitempty"`
	Hostname   string                `json:"hostname,omitempty"`
	CreatedAt  string                `json:"created_at"`
	FinishedAt string                `json:"finished_at,omitempty"`
	Plugins    []PluginRecord        `json:"plugins"`
	Artifacts  []collectors.Artifact `json:"artifacts"`
	Metadata   map[string]string     `json:"metadata,omitempty"`
}

// Failures returns the artifacts that record a per-item failure.
func (m Manifest) Failures() []collectors.Artifact {
	var out []collectors.Artifact
	for _, a := range m.Artifacts {
		if a.Failed() {
			out = append(out, a)
		}
	}
	return out
}

func WriteManifest(outputDir string, m Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(filepath.Join(outputDir, ManifestName), b, 0o600)
}

func ReadManifest(outputDir string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(filepath.Join(outputDir, ManifestName))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}
