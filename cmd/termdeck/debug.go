package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pkt.systems/termdeck/schema"
)

func newDebugCmd() *cobra.Command {
	flags := &deckFlags{}
	var tab string
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Run terminal diagnostics against the active pane",
	}
	cmd.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "path to config file")
	cmd.PersistentFlags().StringVarP(&flags.workspace, "workspace", "w", "", "workspace id (overrides config)")
	cmd.PersistentFlags().StringVar(&tab, "tab", "", "switch to this tab before running")

	cmd.AddCommand(newDebugActionCmd(flags, &tab, "snapshot", "Capture the visible output of the active pane", schema.DiagnosticCaptureSnapshot))
	cmd.AddCommand(newDebugActionCmd(flags, &tab, "hang", "Report a hang with a goroutine dump", schema.DiagnosticReportHang))
	cmd.AddCommand(newDebugActionCmd(flags, &tab, "stress", "Stress the active pane's live output path", schema.DiagnosticStressTest))
	return cmd
}

func newDebugActionCmd(flags *deckFlags, tab *string, use, short string, action schema.DiagnosticAction) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deck, _, err := openDeck(ctx, flags)
			if err != nil {
				return err
			}
			defer closeDeck(ctx, deck)
			ws := deck.Workspace()
			if *tab != "" && !ws.Store().SwitchToTab(ctx, schema.TabID(*tab)) {
				return fmt.Errorf("%s: %w", *tab, schema.ErrTabNotFound)
			}
			report, err := ws.RunDiagnostic(ctx, action)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(report); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
