package collectors

import "context"

// Artifact kinds.
const (
	KindFile    = "file"
	KindCommand = "command"
	KindJournal = "journal"
	KindHost    = "host"
)

type Artifact struct {
	RelativePath string            `json:"relative_path,omitempty"`
	Collector    string            `json:"collector"`
	Kind         string            `json:"kind,omitempty"`
	Source       string            `json:"source,omitempty"`
	CollectedAt  string            `json:"collected_at"`
	SizeBytes    int64             `json:"size_bytes"`
	SHA256       string            `json:"sha256,omitempty"`
	Error        string            `json:"error,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Failed reports whether the artifact records a per-item failure.
func (a Artifact) Failed() bool { return a.Error != "" }

type RunContext struct {
	CaseID    string
	OutputDir string
}

// Collector performs I/O for one unit of a collection run. Per-item problems are
// reported as failed artifacts; a returned error means the collector as a whole
// could not run.
type Collector interface {
	Name() string
	Collect(ctx context.Context, rc RunContext) ([]Artifact, error)
}
