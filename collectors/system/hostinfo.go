package system

import (
	"context"
	"encoding/json"
	"path/filepath"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"diag-bundle/collectors"
	"diag-bundle/evidence"
)

type hostInfo struct {
	GOOS            string `json:"goos"`
	GOARCH          string `json:"goarch"`
	Hostname        string `json:"hostname,omitempty"`
	Platform        string `json:"platform,omitempty"`
	PlatformFamily  string `json:"platform_family,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty"`
	KernelVersion   string `json:"kernel_version,omitempty"`
	KernelArch      string `json:"kernel_arch,omitempty"`
	Virtualization  string `json:"virtualization,omitempty"`
	BootTime        string `json:"boot_time,omitempty"`
	UptimeSeconds   uint64 `json:"uptime_seconds,omitempty"`
	Error           string `json:"error,omitempty"`
}

type HostInfoCollector struct {
	info func(ctx context.Context) (*host.InfoStat, error)
}

func NewHostInfoCollector() *HostInfoCollector {
	return &HostInfoCollector{info: host.InfoWithContext}
}

func (c *HostInfoCollector) Name() string { return "host_info" }

func (c *HostInfoCollector) Collect(ctx context.Context, rc collectors.RunContext) ([]collectors.Artifact, error) {
	data := hostInfo{GOOS: runtime.GOOS, GOARCH: runtime.GOARCH}

	// Partial host facts are still worth recording.
	if st, err := c.info(ctx); err != nil {
		data.Error = err.Error()
	} else if st != nil {
		data.Hostname = st.Hostname
		data.Platform = st.Platform
		data.PlatformFamily = st.PlatformFamily
		data.PlatformVersion = st.PlatformVersion
		data.KernelVersion = st.KernelVersion
		data.KernelArch = st.KernelArch
		data.Virtualization = st.VirtualizationSystem
		data.UptimeSeconds = st.Uptime
		if st.BootTime > 0 {
			data.BootTime = time.Unix(int64(st.BootTime), 0).UTC().Format(time.RFC3339)
		}
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, err
	}

	rel := filepath.ToSlash(filepath.Join("system", "host_info.json"))
	path := filepath.Join(rc.OutputDir, rel)
	if err := evidence.WriteFileAtomic(path, b, 0o600); err != nil {
		return nil, err
	}

	return []collectors.Artifact{{
		RelativePath: rel,
		Collector:    c.Name(),
		Kind:         collectors.KindHost,
		CollectedAt:  time.Now().UTC().Format(time.RFC3339Nano),
		SizeBytes:    int64(len(b)),
		SHA256:       evidence.SHA256Bytes(b),
	}}, nil
}

// Hostname returns the host name as gopsutil reports it, or "" on error.
func Hostname(ctx context.Context) string {
	st, err := host.InfoWithContext(ctx)
	if err != nil || st == nil {
		return ""
	}
	return st.Hostname
}
