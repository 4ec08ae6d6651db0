package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"diag-bundle/collectors"
)

func newPluginsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect the plugins known to diag-bundle",
	}
	cmd.AddCommand(newPluginsListCmd(a))
	cmd.AddCommand(newPluginsShowCmd(a))
	return cmd
}

func newPluginsListCmd(a *app) *cobra.Command {
	var pluginDirs []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plugins and whether they apply to this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("plugin-dir") {
				a.cfg.PluginDirs = pluginDirs
			}
			reg, err := a.loadRegistry()
			if err != nil {
				return err
			}

			env := a.env(a.cfg)
			out := cmd.OutOrStdout()
			tw := newTable(out, terminalWidth(out))
			tw.AppendHeader(table.Row{"Name", "Applicable", "Description"})
			for _, p := range reg.All() {
				applicable := "no"
				if p.Applicable(cmd.Context(), env) {
					applicable = "yes"
				}
				tw.AppendRow(table.Row{p.Name(), applicable, p.ShortDesc()})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&pluginDirs, "plugin-dir", nil, "Directory of plugin descriptors (repeatable)")
	return cmd
}

func newPluginsShowCmd(a *app) *cobra.Command {
	var pluginDirs []string

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a plugin declaration as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("plugin-dir") {
				a.cfg.PluginDirs = pluginDirs
			}
			reg, err := a.loadRegistry()
			if err != nil {
				return err
			}
			p, ok := reg.Get(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", collectors.ErrUnknownPlugin, args[0])
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(p.Config()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringArrayVar(&pluginDirs, "plugin-dir", nil, "Directory of plugin descriptors (repeatable)")
	return cmd
}

func newTable(w io.Writer, width int) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	if width > 0 {
		tw.SetStyle(table.StyleRounded)
		tw.SetAllowedRowLength(width)
	} else {
		tw.SetStyle(table.StyleLight)
	}
	tw.Style().Format.Header = text.FormatDefault
	return tw
}

// terminalWidth is zero unless w is a terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
