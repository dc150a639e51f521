package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/termdeck/internal/version"
)

func newVersionCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Read()
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintln(out, info.String()); err != nil {
				return err
			}
			if verbose && info.Revision != "" {
				_, err := fmt.Fprintf(out, "revision %s %s\n", info.Revision, info.Time.Format("2006-01-02T15:04:05Z"))
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "include vcs revision")
	return cmd
}
