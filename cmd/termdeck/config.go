package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/termdeck/internal/appconfig"
	"pkt.systems/pslog"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the termdeck config file",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var path string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := appconfig.WriteDefault(path, force)
			if err != nil {
				return err
			}
			pslog.Ctx(cmd.Context()).Info("config written", "path", written)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), written)
			return err
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}
