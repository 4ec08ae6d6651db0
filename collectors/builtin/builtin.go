// Package builtin is the catalogue of plugins compiled into diag-bundle.
package builtin

import (
	"fmt"
	"path"

	"diag-bundle/collectors"
)

// Layout locates the provisioning tool's directories. Packagers relocate these
// at build time, so the plugin derives its paths instead of hard-coding them.
type Layout struct {
	SysconfDir    string `mapstructure:"sysconfdir"`
	LocalstateDir string `mapstructure:"localstatedir"`
	DataDir       string `mapstructure:"datadir"`
	LogDir        string `mapstructure:"logdir"`
}

func DefaultLayout() Layout {
	return Layout{
		SysconfDir:    "/etc",
		LocalstateDir: "/var/lib",
		DataDir:       "/usr/share",
		LogDir:        "/var/log",
	}
}

func (l Layout) withDefaults() Layout {
	d := DefaultLayout()
	if l.SysconfDir == "" {
		l.SysconfDir = d.SysconfDir
	}
	if l.LocalstateDir == "" {
		l.LocalstateDir = d.LocalstateDir
	}
	if l.DataDir == "" {
		l.DataDir = d.DataDir
	}
	if l.LogDir == "" {
		l.LogDir = d.LogDir
	}
	return l
}

// Validate reports a set dir that is not absolute. Empty dirs take defaults.
func (l Layout) Validate() error {
	for _, d := range []struct{ key, value string }{
		{"sysconfdir", l.SysconfDir},
		{"localstatedir", l.LocalstateDir},
		{"datadir", l.DataDir},
		{"logdir", l.LogDir},
	} {
		if d.value != "" && !path.IsAbs(d.value) {
			return fmt.Errorf("layout.%s %q is not an absolute path", d.key, d.value)
		}
	}
	return nil
}

// dir joins elems and keeps a trailing slash, which marks a directory tree in
// the declaration.
func dir(elem ...string) string {
	return path.Join(elem...) + "/"
}

// Plugins returns a fresh copy of every built-in plugin.
func Plugins(l Layout) ([]*collectors.Plugin, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	ww, err := Warewulf(l.withDefaults())
	if err != nil {
		return nil, err
	}
	return []*collectors.Plugin{
		ww,
		NFS(),
		TFTP(),
		Proc(),
		Networking(),
		Login(),
		Cron(),
		Systemd(),
	}, nil
}

// Registry returns a registry pre-loaded with the built-in plugins.
func Registry(l Layout) (*collectors.Registry, error) {
	plugins, err := Plugins(l)
	if err != nil {
		return nil, err
	}
	return collectors.NewRegistry(plugins...)
}
