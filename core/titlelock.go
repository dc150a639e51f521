package core

import "pkt.systems/termdeck/schema"

// TabUpdateFunc applies a patch to the tab with the given id.
type TabUpdateFunc func(id schema.TabID, patch schema.TabPatch)

// ToggleTerminalTitleLock flips the tab's title lock through updateFn. The
// patch only carries TitleLocked, so the current title text is kept as is.
func ToggleTerminalTitleLock(updateFn TabUpdateFunc, tab schema.TerminalTab) {
	if updateFn == nil {
		return
	}
	locked := !tab.TitleLocked
	updateFn(tab.ID, schema.TabPatch{TitleLocked: &locked})
}
