package builtin

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diag-bundle/collectors"
	"diag-bundle/collectors/hostenv"
)

func TestWarewulfDefaultLayout(t *testing.T) {
	p, err := Warewulf(DefaultLayout())
	require.NoError(t, err)

	want := collectors.CollectionSpec{
		CopyPaths: []string{
			"/var/lib/warewulf/overlays/",
			"/usr/share/warewulf/overlays/",
			"/var/log/warewulfd.log",
			"/etc/warewulf/",
			"/var/lib/dhcpd/",
			"/etc/dhcp/",
			"/etc/dnsmasq.d",
			"/var/lib/dnsmasq/dnsmasq.leases",
		},
		ForbiddenPaths: []string{
			"/var/lib/warewulf/overlays/wwinit/rootfs/warewulf/wwclient",
			"/usr/share/warewulf/overlays/wwinit/rootfs/warewulf/wwclient",
		},
		Commands: []string{
			"wwctl node list",
			"wwctl node list -a",
			"wwctl container list",
			"wwctl profile list",
			"wwctl profile list -a",
			"wwctl image kernels",
			"wwctl version",
		},
		JournalUnits: []string{"warewulfd.service"},
	}
	if diff := cmp.Diff(want, p.Spec()); diff != "" {
		t.Errorf("warewulf collection spec mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"warewulfd"}, p.Services())
	assert.Equal(t, []string{"warewulf"}, p.Packages())
	assert.False(t, p.Flags().AlwaysApplicable)
}

func TestWarewulfRelocatedLayout(t *testing.T) {
	p, err := Warewulf(Layout{SysconfDir: "/opt/ww/etc", LocalstateDir: "/opt/ww/var/lib"})
	require.NoError(t, err)
	spec := p.Spec()

	assert.Equal(t, "/opt/ww/var/lib/warewulf/overlays/", spec.CopyPaths[0])
	assert.Equal(t, "/usr/share/warewulf/overlays/", spec.CopyPaths[1], "unset dirs keep their defaults")
	assert.Equal(t, "/opt/ww/etc/warewulf/", spec.CopyPaths[3])
	assert.Equal(t, "/opt/ww/var/lib/warewulf/overlays/wwinit/rootfs/warewulf/wwclient", spec.ForbiddenPaths[0])
}

func TestBuiltinForbiddenPathsAreEffective(t *testing.T) {
	plugins, err := Plugins(DefaultLayout())
	require.NoError(t, err)
	for _, p := range plugins {
		assert.Empty(t, p.Spec().IneffectiveForbidden(), p.Name())
		assert.False(t, p.Spec().Empty(), p.Name())
	}
}

func TestRegistry(t *testing.T) {
	r, err := Registry(DefaultLayout())
	require.NoError(t, err)
	var names []string
	for _, p := range r.All() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"cron", "login", "networking", "nfs", "proc", "systemd", "tftp", "warewulf"}, names)
}

func TestApplicability(t *testing.T) {
	ctx := context.Background()
	bare := hostenv.Static{}
	provisioner := hostenv.Static{Packages: []string{"warewulf"}, Services: []string{"nfs-server.service"}}

	tests := []struct {
		plugin string
		env    hostenv.Environment
		want   bool
	}{
		{"warewulf", bare, false},
		{"warewulf", provisioner, true},
		{"warewulf", hostenv.Static{Services: []string{"warewulfd.service"}}, true},
		{"nfs", provisioner, true},
		{"tftp", provisioner, false},
		{"proc", bare, true},
		{"login", hostenv.Static{Err: assert.AnError}, true},
	}
	r, err := Registry(DefaultLayout())
	require.NoError(t, err)
	for _, tt := range tests {
		p, ok := r.Get(tt.plugin)
		require.True(t, ok, tt.plugin)
		assert.Equal(t, tt.want, p.Applicable(ctx, tt.env), "%s applicable", tt.plugin)
	}
}

func TestRelativeLayoutIsAnError(t *testing.T) {
	tests := []Layout{
		{SysconfDir: "etc"},
		{LocalstateDir: "var/lib"},
		{DataDir: "./share"},
		{LogDir: "log"},
	}
	for _, l := range tests {
		assert.NotPanics(t, func() {
			_, err := Registry(l)
			assert.Error(t, err, "%+v", l)
		})
	}

	_, err := Warewulf(Layout{SysconfDir: "etc"})
	var cerr *collectors.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "copy_paths", cerr.Field)
}
