package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/termdeck/internal/format"
	"pkt.systems/termdeck/schema"
	"pkt.systems/pslog"
)

const replayMaxLine = 4 << 20

func newReplayCmd() *cobra.Command {
	flags := &deckFlags{}
	var pane, input string
	var showHistory, serveMetrics, plain bool
	cmd := &cobra.Command{
		Use:   "replay <tab>",
		Short: "Feed recorded live output into a pane, one payload per line",
		Long: "Feed payloads into a pane's output view in order. Payloads already\n" +
			"present in the pane's history are dropped; accepted payloads are printed\n" +
			"and recorded to the output cache.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deck, cfg, err := openDeck(ctx, flags)
			if err != nil {
				return err
			}
			defer closeDeck(ctx, deck)
			log := pslog.Ctx(ctx)

			if serveMetrics && cfg.Metrics.Enabled {
				if _, err := deck.ServeMetrics(ctx); err != nil {
					return err
				}
			}

			tabID := schema.TabID(args[0])
			paneID, err := paneOrActive(deck.Workspace().Store(), tabID, pane)
			if err != nil {
				return err
			}
			view, ok := deck.Workspace().View(tabID, paneID)
			if !ok {
				return fmt.Errorf("%s/%s: %w", tabID, paneID, schema.ErrPaneNotMounted)
			}
			select {
			case <-view.Ready():
			case <-ctx.Done():
				return ctx.Err()
			}

			out := cmd.OutOrStdout()
			emit := rawEmitter(out)
			if plain {
				emit = plainEmitter(out, format.NewPlainRenderer())
			}
			if showHistory {
				for _, payload := range view.Snapshot(0).Payloads {
					if err := emit("history", payload); err != nil {
						return err
					}
				}
			}

			src, closeSrc, err := openReplayInput(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			defer closeSrc()

			accepted, rejected := 0, 0
			scanner := bufio.NewScanner(src)
			scanner.Buffer(make([]byte, 0, 64*1024), replayMaxLine)
			for scanner.Scan() {
				payload := scanner.Text()
				if payload == "" {
					continue
				}
				ok, err := deck.Workspace().Feed(ctx, tabID, paneID, payload)
				if err != nil {
					return err
				}
				if !ok {
					rejected++
					continue
				}
				accepted++
				if err := emit("live", payload); err != nil {
					return err
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read replay input: %w", err)
			}
			log.Info("replay complete", "tab", tabID, "pane", paneID, "accepted", accepted, "rejected", rejected)
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.config, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&flags.workspace, "workspace", "w", "", "workspace id (overrides config)")
	cmd.Flags().StringVar(&pane, "pane", "", "pane to feed (defaults to the tab's active pane)")
	cmd.Flags().StringVarP(&input, "input", "i", "-", "payload file, or - for stdin")
	cmd.Flags().BoolVar(&showHistory, "history", false, "print the pane's seeded history first")
	cmd.Flags().BoolVar(&plain, "plain", false, "render agent payloads as plain text")
	cmd.Flags().BoolVar(&serveMetrics, "metrics", false, "serve /metrics on metrics.addr while replaying")
	return cmd
}

func openReplayInput(stdin io.Reader, path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open replay input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

type emitFunc func(source, payload string) error

func rawEmitter(out io.Writer) emitFunc {
	return func(source, payload string) error {
		_, err := fmt.Fprintf(out, "%s %s\n", source, payload)
		return err
	}
}

func plainEmitter(out io.Writer, renderer *format.PlainRenderer) emitFunc {
	return func(_ string, payload string) error {
		for _, line := range renderer.FormatPayload(payload) {
			if _, err := fmt.Fprintln(out, line); err != nil {
				return err
			}
		}
		return nil
	}
}
