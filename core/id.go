package core

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"pkt.systems/termdeck/schema"
)

// Tab ids sort by creation time so restored workspaces keep a stable order
// even when the persisted order is missing.
func newTabID() schema.TabID {
	return schema.TabID(ulid.Make().String())
}

func newPaneID() schema.PaneID {
	return schema.PaneID(uuid.NewString())
}

func newSessionID() schema.SessionID {
	return schema.SessionID(uuid.NewString())
}
