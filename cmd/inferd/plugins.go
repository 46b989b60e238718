package main

import (
	"errors"
	"fmt"
	"io/fs"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"inferd/internal/registry"
)

func newPluginsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List built-in plugins and plugin shared objects in the plugins directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			reg, err := newRegistry(cfg, nil)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSOURCE")
			for _, n := range reg.Names() {
				fmt.Fprintf(tw, "%s\tbuilt-in\n", n)
			}
			found, err := registry.LoadDir(cfg.PluginsDir)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			for _, d := range found {
				fmt.Fprintf(tw, "%s\t%s\n", d.Name, d.Path)
			}
			return tw.Flush()
		},
	}
}
