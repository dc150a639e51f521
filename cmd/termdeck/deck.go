package main

import (
	"context"
	"strings"

	"pkt.systems/termdeck"
	"pkt.systems/termdeck/internal/appconfig"
	"pkt.systems/termdeck/schema"
	"pkt.systems/pslog"
)

type deckFlags struct {
	config    string
	workspace string
}

func openDeck(ctx context.Context, flags *deckFlags) (*termdeck.Deck, appconfig.Config, error) {
	cfg, err := appconfig.Load(flags.config)
	if err != nil {
		return nil, appconfig.Config{}, err
	}
	if ws := strings.TrimSpace(flags.workspace); ws != "" {
		if err := schema.ValidateWorkspaceID(schema.WorkspaceID(ws)); err != nil {
			return nil, appconfig.Config{}, err
		}
		cfg.Workspace = ws
	}
	deck, err := termdeck.New(ctx, termdeck.ConfigFromApp(cfg), termdeck.Deps{Logger: pslog.Ctx(ctx)})
	if err != nil {
		return nil, appconfig.Config{}, err
	}
	return deck, cfg, nil
}

func closeDeck(ctx context.Context, deck *termdeck.Deck) {
	if err := deck.Close(); err != nil {
		pslog.Ctx(ctx).Warn("termdeck close failed", "err", err)
	}
}
