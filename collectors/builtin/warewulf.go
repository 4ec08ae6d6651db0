package builtin

import (
	"path"

	"diag-bundle/collectors"
)

// Warewulf gathers the cluster provisioning daemon's configuration, overlays,
// the DHCP/dnsmasq state it manages, and wwctl's view of nodes and profiles.
// Layout dirs come from operator config, so a bad layout is an error.
func Warewulf(l Layout) (*collectors.Plugin, error) {
	l = l.withDefaults()
	return collectors.New(collectors.PluginConfig{
		Name:      "warewulf",
		ShortDesc: "Warewulf provisioning platform",
		Services:  []string{"warewulfd"},
		Packages:  []string{"warewulf"},
		CopyPaths: []string{
			dir(l.LocalstateDir, "warewulf/overlays"),
			dir(l.DataDir, "warewulf/overlays"),
			path.Join(l.LogDir, "warewulfd.log"),
			dir(l.SysconfDir, "warewulf"),
			"/var/lib/dhcpd/",
			"/etc/dhcp/",
			"/etc/dnsmasq.d",
			"/var/lib/dnsmasq/dnsmasq.leases",
		},
		// wwclient is a large static binary with no diagnostic value.
		ForbiddenPaths: []string{
			path.Join(l.LocalstateDir, "warewulf/overlays/wwinit/rootfs/warewulf/wwclient"),
			path.Join(l.DataDir, "warewulf/overlays/wwinit/rootfs/warewulf/wwclient"),
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
	})
}
