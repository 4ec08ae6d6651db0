package cli

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"diag-bundle/collectors/hostenv"
	"diag-bundle/core/internal/config"
	"diag-bundle/core/internal/version"
	"diag-bundle/logging"
)

// app carries state shared by every subcommand. cfg is populated before any
// RunE executes.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	env     func(*config.Config) hostenv.Environment
}

func hostEnvironment(cfg *config.Config) hostenv.Environment {
	return hostenv.Overlay(hostenv.NewHost(hostenv.HostOptions{LookupTimeout: 5 * time.Second}), hostenv.Static{
		Packages: cfg.AssumePackages,
		Services: cfg.AssumeServices,
	})
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(hostEnvironment)
}

func newRootCmd(env func(*config.Config) hostenv.Environment) *cobra.Command {
	a := &app{v: viper.New(), env: env}

	cmd := &cobra.Command{
		Use:           "diag-bundle",
		Short:         "Collect a diagnostic bundle from a provisioning server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logging.Init(cfg.LogFormat, cfg.LogLevel, cmd.ErrOrStderr())
			cfg.Validate()
			a.cfg = cfg
			return nil
		},
	}

	d := config.Default()
	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "Config file (default: /etc/diag-bundle/diag-bundle.yaml or ./diag-bundle.yaml)")
	cmd.PersistentFlags().String("log-level", d.LogLevel, "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().String("log-format", d.LogFormat, "Log format (text|json)")
	cmd.PersistentFlags().StringSlice("assume-package", nil, "Treat this package as installed (repeatable)")
	cmd.PersistentFlags().StringSlice("assume-service", nil, "Treat this service as present (repeatable)")
	_ = a.v.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("log_format", cmd.PersistentFlags().Lookup("log-format"))
	_ = a.v.BindPFlag("assume_packages", cmd.PersistentFlags().Lookup("assume-package"))
	_ = a.v.BindPFlag("assume_services", cmd.PersistentFlags().Lookup("assume-service"))

	cmd.AddCommand(newCollectCmd(a))
	cmd.AddCommand(newPluginsCmd(a))
	cmd.AddCommand(NewVersionCmd())

	cmd.SetVersionTemplate(fmt.Sprintf("%s (%s/%s)\n", version.Version, runtime.GOOS, runtime.GOARCH))
	cmd.Version = version.Version

	return cmd
}
