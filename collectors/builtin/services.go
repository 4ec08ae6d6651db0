package builtin

import "diag-bundle/collectors"

// NFS covers the exports a provisioning server hands out to its nodes.
func NFS() *collectors.Plugin {
	return collectors.MustNew(collectors.PluginConfig{
		Name:      "nfs",
		ShortDesc: "NFS server exports",
		Services:  []string{"nfs-server"},
		Packages:  []string{"nfs-utils", "nfs-kernel-server"},
		CopyPaths: []string{
			"/etc/exports",
			"/etc/exports.d/",
			"/etc/nfs.conf",
			"/var/lib/nfs/etab",
		},
		Commands: []string{
			"exportfs -v",
			"nfsstat -s",
		},
		JournalUnits: []string{"nfs-server.service"},
	})
}

// TFTP covers the boot file server used for network boot.
func TFTP() *collectors.Plugin {
	return collectors.MustNew(collectors.PluginConfig{
		Name:      "tftp",
		ShortDesc: "TFTP boot server",
		Services:  []string{"tftp", "tftpd-hpa"},
		Packages:  []string{"tftp-server", "tftpd-hpa"},
		CopyPaths: []string{
			"/etc/default/tftpd-hpa",
			"/etc/xinetd.d/tftp",
		},
		Commands: []string{
			"ls -lanR /var/lib/tftpboot",
		},
		JournalUnits: []string{"tftp.service", "tftpd-hpa.service"},
	})
}
