package system

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"diag-bundle/collectors"
	"diag-bundle/evidence"
)

type OSReleaseCollector struct {
	paths []string
}

func NewOSReleaseCollector() *OSReleaseCollector {
	return &OSReleaseCollector{paths: []string{"/etc/os-release", "/usr/lib/os-release"}}
}

func (c *OSReleaseCollector) Name() string { return "os_release" }

func (c *OSReleaseCollector) Collect(ctx context.Context, rc collectors.RunContext) ([]collectors.Artifact, error) {
	_ = ctx

	var data []byte
	var src string
	var err error
	for _, p := range c.paths {
		data, err = os.ReadFile(p)
		if err == nil {
			src = p
			break
		}
	}
	if err != nil {
		return nil, err
	}

	rel := filepath.ToSlash(filepath.Join("system", "os-release.txt"))
	out := filepath.Join(rc.OutputDir, rel)
	if err := evidence.WriteFileAtomic(out, data, 0o600); err != nil {
		return nil, err
	}

	return []collectors.Artifact{{
		RelativePath: rel,
		Collector:    c.Name(),
		Kind:         collectors.KindHost,
		Source:       src,
		CollectedAt:  time.Now().UTC().Format(time.RFC3339Nano),
		SizeBytes:    int64(len(data)),
		SHA256:       evidence.SHA256Bytes(data),
	}}, nil
}
