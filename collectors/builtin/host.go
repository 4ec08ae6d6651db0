package builtin

import "diag-bundle/collectors"

var hostFlags = collectors.Flags{AlwaysApplicable: true, NoExternalService: true}

func Proc() *collectors.Plugin {
	return collectors.MustNew(collectors.PluginConfig{
		Name:      "proc",
		ShortDesc: "Kernel, memory and process summary",
		CopyPaths: []string{
			"/proc/meminfo",
			"/proc/cpuinfo",
			"/proc/uptime",
			"/proc/loadavg",
			"/proc/version",
			"/proc/cmdline",
		},
		Commands: []string{"ps aux"},
		Flags:    hostFlags,
	})
}

func Networking() *collectors.Plugin {
	return collectors.MustNew(collectors.PluginConfig{
		Name:      "networking",
		ShortDesc: "Interfaces, routes and listening sockets",
		CopyPaths: []string{
			"/etc/hosts",
			"/etc/resolv.conf",
		},
		Commands: []string{
			"ss -tulpen",
			"netstat -anp",
			"ip addr",
			"ip route",
		},
		Flags: hostFlags,
	})
}

func Login() *collectors.Plugin {
	return collectors.MustNew(collectors.PluginConfig{
		Name:      "login",
		ShortDesc: "Logged in users and recent logins",
		Commands: []string{
			"who -a",
			"w",
			"users",
			"last -F -n 50",
		},
		Flags: hostFlags,
	})
}

func Cron() *collectors.Plugin {
	return collectors.MustNew(collectors.PluginConfig{
		Name:      "cron",
		ShortDesc: "Scheduled jobs",
		CopyPaths: []string{
			"/etc/crontab",
			"/etc/cron.d",
			"/etc/cron.daily",
			"/etc/cron.hourly",
			"/etc/cron.weekly",
			"/etc/cron.monthly",
		},
		Flags: hostFlags,
	})
}

func Systemd() *collectors.Plugin {
	return collectors.MustNew(collectors.PluginConfig{
		Name:      "systemd",
		ShortDesc: "Service manager state",
		CopyPaths: []string{"/etc/systemd/system/"},
		Commands: []string{
			"systemctl list-units --all --no-pager",
			"systemctl list-unit-files --no-pager",
			"systemctl --failed --no-pager",
		},
		Flags: hostFlags,
	})
}
