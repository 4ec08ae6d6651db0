package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"diag-bundle/collectors/builtin"
)

const EnvPrefix = "DIAG_BUNDLE"

type Config struct {
	Output         string         `mapstructure:"output"`
	PluginDirs     []string       `mapstructure:"plugin_dirs"`
	Only           []string       `mapstructure:"only"`
	Skip           []string       `mapstructure:"skip"`
	All            bool           `mapstructure:"all"`
	Parallelism    int            `mapstructure:"parallelism"`
	Timeout        time.Duration  `mapstructure:"timeout"`
	CommandTimeout time.Duration  `mapstructure:"command_timeout"`
	JournalSince   string         `mapstructure:"journal_since"`
	MaxFileBytes   int64          `mapstructure:"max_file_bytes"`
	MaxPluginBytes int64          `mapstructure:"max_plugin_bytes"`
	RedactFile     string         `mapstructure:"redact_file"`
	Archive        bool           `mapstructure:"archive"`
	AssumePackages []string       `mapstructure:"assume_packages"`
	AssumeServices []string       `mapstructure:"assume_services"`
	LogLevel       string         `mapstructure:"log_level"`
	LogFormat      string         `mapstructure:"log_format"`
	Layout         builtin.Layout `mapstructure:"layout"`
}

func Default() *Config {
	return &Config{
		Output:         "/var/tmp/diag-bundle",
		PluginDirs:     []string{"/etc/diag-bundle/plugins.d"},
		Parallelism:    4,
		Timeout:        30 * time.Minute,
		CommandTimeout: 60 * time.Second,
		JournalSince:   "-7d",
		MaxFileBytes:   25 * 1024 * 1024,
		MaxPluginBytes: 250 * 1024 * 1024,
		Archive:        true,
		LogLevel:       "info",
		LogFormat:      "text",
		Layout:         builtin.DefaultLayout(),
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("output", d.Output)
	v.SetDefault("plugin_dirs", d.PluginDirs)
	v.SetDefault("only", d.Only)
	v.SetDefault("skip", d.Skip)
	v.SetDefault("all", d.All)
	v.SetDefault("parallelism", d.Parallelism)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("command_timeout", d.CommandTimeout)
	v.SetDefault("journal_since", d.JournalSince)
	v.SetDefault("max_file_bytes", d.MaxFileBytes)
	v.SetDefault("max_plugin_bytes", d.MaxPluginBytes)
	v.SetDefault("redact_file", d.RedactFile)
	v.SetDefault("archive", d.Archive)
	v.SetDefault("assume_packages", d.AssumePackages)
	v.SetDefault("assume_services", d.AssumeServices)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("layout.sysconfdir", d.Layout.SysconfDir)
	v.SetDefault("layout.localstatedir", d.Layout.LocalstateDir)
	v.SetDefault("layout.datadir", d.Layout.DataDir)
	v.SetDefault("layout.logdir", d.Layout.LogDir)
}

// Load reads cfgFile, or diag-bundle.yaml from /etc/diag-bundle or the working
// directory when cfgFile is empty. A missing default file is not an error.
// Flags bound to v before Load take precedence over the file.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("diag-bundle")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/diag-bundle")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
