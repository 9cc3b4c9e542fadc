package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mensylisir/xmupgrade/config"
)

func (a *app) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "example",
		Short: "Print a commented reference configuration",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprint(a.out, config.Example())
			return err
		},
	}, &cobra.Command{
		Use:   "path",
		Short: "Print the config file that would be used",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			path, err := config.Discover(a.args.ConfigPath)
			if err != nil {
				return fatal(err)
			}
			if path == "" {
				fmt.Fprintln(a.out, "No config file found, using defaults.")
				return nil
			}
			fmt.Fprintln(a.out, path)
			return nil
		},
	})
	return cmd
}
