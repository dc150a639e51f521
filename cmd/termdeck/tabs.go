package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pkt.systems/termdeck/core"
	"pkt.systems/termdeck/schema"
)

func newTabsCmd() *cobra.Command {
	flags := &deckFlags{}
	cmd := &cobra.Command{
		Use:   "tabs",
		Short: "Manage workspace tabs and panes",
	}
	cmd.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "path to config file")
	cmd.PersistentFlags().StringVarP(&flags.workspace, "workspace", "w", "", "workspace id (overrides config)")

	cmd.AddCommand(newTabsListCmd(flags))
	cmd.AddCommand(newTabsShowCmd(flags))
	cmd.AddCommand(newTabsOpenCmd(flags))
	cmd.AddCommand(newTabsCloseCmd(flags))
	cmd.AddCommand(newTabsSwitchCmd(flags))
	cmd.AddCommand(newTabsLockCmd(flags))
	cmd.AddCommand(newTabsTitleCmd(flags))
	cmd.AddCommand(newTabsSplitCmd(flags))
	cmd.AddCommand(newTabsClosePaneCmd(flags))
	cmd.AddCommand(newTabsFocusCmd(flags))

	return cmd
}

func newTabsListCmd(flags *deckFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tabs in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deck, _, err := openDeck(ctx, flags)
			if err != nil {
				return err
			}
			defer closeDeck(ctx, deck)
			store := deck.Workspace().Store()
			return writeTabs(cmd.OutOrStdout(), store.Tabs(), store.ActiveTabID())
		},
	}
}

func writeTabs(out io.Writer, tabs []schema.TerminalTab, active schema.TabID) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, tab := range tabs {
		marker := " "
		if tab.ID == active {
			marker = "*"
		}
		title := tab.Title
		if tab.TitleLocked {
			title += " [locked]"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", marker, tab.ID, tab.Kind, tab.Status, len(core.Leaves(tab.PaneTree)), title)
	}
	return w.Flush()
}

func newTabsShowCmd(flags *deckFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <tab>",
		Short: "Print a tab's pane tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deck, _, err := openDeck(ctx, flags)
			if err != nil {
				return err
			}
			defer closeDeck(ctx, deck)
			tab, ok := deck.Workspace().Store().Tab(schema.TabID(args[0]))
			if !ok {
				return fmt.Errorf("%s: %w", args[0], schema.ErrTabNotFound)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s %q %s\n", tab.ID, tab.Title, tab.Status)
			writePaneTree(out, tab.PaneTree, tab.ActivePaneID, 1)
			return nil
		},
	}
}

func writePaneTree(out io.Writer, node schema.PaneNode, active schema.PaneID, depth int) {
	indent := strings.Repeat("  ", depth)
	switch n := node.(type) {
	case nil:
	case schema.Leaf:
		marker := ""
		if n.ID == active {
			marker = " *"
		}
		_, _ = fmt.Fprintf(out, "%spane %s session %s%s\n", indent, n.ID, n.SessionID, marker)
	case schema.Split:
		_, _ = fmt.Fprintf(out, "%ssplit %s %v\n", indent, n.Orientation, n.Sizes)
		for _, child := range n.Children {
			writePaneTree(out, child, active, depth+1)
		}
	default:
		panic(fmt.Sprintf("unknown pane node %T", node))
	}
}

func newTabsOpenCmd(flags *deckFlags) *cobra.Command {
	var kind, title, provider, project string
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a tab and make it active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			normalized, ok := schema.NormalizeTabKind(kind)
			if !ok {
				return fmt.Errorf("%w: unknown kind %q", schema.ErrInvalidTab, kind)
			}
			ctx := cmd.Context()
			deck, _, err := openDeck(ctx, flags)
			if err != nil {
				return err
			}
			defer closeDeck(ctx, deck)
			tab, err := deck.Workspace().OpenTab(ctx, core.TabOptions{
				Kind:         normalized,
				Title:        title,
				ProviderID:   schema.ProviderID(provider),
				SessionState: schema.SessionState{ProjectPath: project},
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", tab.ID, tab.ActivePaneID)
			return err
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(schema.TabKindChat), "tab kind (chat, shell, agent)")
	cmd.Flags().StringVar(&title, "title", "", "tab title")
	cmd.Flags().StringVar(&provider, "provider", "", "session provider id")
	cmd.Flags().StringVar(&project, "project", "", "project path of the session")
	return cmd
}

func newTabsCloseCmd(flags *deckFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "close <tab>",
		Short: "Close a tab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deck, _, err := openDeck(ctx, flags)
			if err != nil {
				return err
			}
			defer closeDeck(ctx, deck)
			return deck.Workspace().CloseTab(ctx, schema.TabID(args[0]))
		},
	}
}

func newTabsSwitchCmd(flags *deckFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <tab>",
		Short: "Make a tab active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deck, _, err := openDeck(ctx, flags)
			if err != nil {
				return err
			}
			defer closeDeck(ctx, deck)
			if !deck.Workspace().Store().SwitchToTab(ctx, schema.TabID(args[0])) {
				return fmt.Errorf("%s: %w", args[0], schema.ErrTabNotFound)
			}
			return nil
		},
	}
}

func newTabsLockCmd(flags *deckFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lock <tab>",
		Short: "Toggle a tab's title lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deck, _, err := openDeck(ctx, flags)
			if err != nil {
				return err
			}
			defer closeDeck(ctx, deck)
			store := deck.Workspace().Store()
			tab, ok := store.Tab(schema.TabID(args[0]))
			if !ok {
				return fmt.Errorf("%s: %w", args[0], schema.ErrTabNotFound)
			}
			core.ToggleTerminalTitleLock(store.Updater(ctx), tab)
			updated, _ := store.Tab(tab.ID)
			state := "unlocked"
			if updated.TitleLocked {
				state = "locked"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", tab.ID, state)
			return err
		},
	}
}

func newTabsTitleCmd(flags *deckFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "title <tab> <title>",
		Short: "Apply a session title unless the tab's title is locked",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deck, _, err := openDeck(ctx, flags)
			if err != nil {
				return err
			}
			defer closeDeck(ctx, deck)
			applied, err := deck.Workspace().Store().ApplySessionTitle(ctx, schema.TabID(args[0]), args[1])
			if err != nil {
				return err
			}
			if !applied {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s title locked\n", args[0])
			}
			return err
		},
	}
}

func newTabsSplitCmd(flags *deckFlags) *cobra.Command {
	var pane, orientation string
	cmd := &cobra.Command{
		Use:   "split <tab>",
		Short: "Split a pane; the new pane becomes active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			normalized, err := schema.NormalizeOrientation(orientation)
			if err != nil {
				return fmt.Errorf("%w: %q", err, orientation)
			}
			ctx := cmd.Context()
			deck, _, err := openDeck(ctx, flags)
			if err != nil {
				return err
			}
			defer closeDeck(ctx, deck)
			tabID := schema.TabID(args[0])
			target, err := paneOrActive(deck.Workspace().Store(), tabID, pane)
			if err != nil {
				return err
			}
			created, err := deck.Workspace().SplitPane(ctx, tabID, target, normalized)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), created)
			return err
		},
	}
	cmd.Flags().StringVar(&pane, "pane", "", "pane to split (defaults to the active pane)")
	cmd.Flags().StringVarP(&orientation, "orientation", "o", string(schema.OrientationHorizontal), "split orientation (horizontal, vertical)")
	return cmd
}

func newTabsClosePaneCmd(flags *deckFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "close-pane <tab> <pane>",
		Short: "Close a pane; closing the last pane closes the tab",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deck, _, err := openDeck(ctx, flags)
			if err != nil {
				return err
			}
			defer closeDeck(ctx, deck)
			tabClosed, err := deck.Workspace().ClosePane(ctx, schema.TabID(args[0]), schema.PaneID(args[1]))
			if err != nil {
				return err
			}
			if tabClosed {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s closed\n", args[0])
			}
			return err
		},
	}
}

func newTabsFocusCmd(flags *deckFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "focus <tab> <pane>",
		Short: "Make a pane active",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deck, _, err := openDeck(ctx, flags)
			if err != nil {
				return err
			}
			defer closeDeck(ctx, deck)
			return deck.Workspace().Store().ActivatePane(ctx, schema.TabID(args[0]), schema.PaneID(args[1]))
		},
	}
}

func paneOrActive(store *core.Store, tabID schema.TabID, pane string) (schema.PaneID, error) {
	if strings.TrimSpace(pane) != "" {
		return schema.PaneID(pane), nil
	}
	tab, ok := store.Tab(tabID)
	if !ok {
		return "", fmt.Errorf("%s: %w", tabID, schema.ErrTabNotFound)
	}
	return tab.ActivePaneID, nil
}
