package core

import "pkt.systems/termdeck/schema"

// renderView is a snapshot of a pane's rendered sequence.
type renderView struct {
	Payloads     []string
	Total        int
	ScrollOffset int
	AtBottom     bool
}

// renderBuffer holds the payloads rendered in a pane, history first, then
// accepted live payloads in arrival order.
// scrollOffset counts entries from the bottom; 0 means at bottom.
type renderBuffer struct {
	payloads     []string
	scrollOffset int
	maxEntries   int
}

func newRenderBuffer(maxEntries int) *renderBuffer {
	if maxEntries <= 0 {
		maxEntries = schema.DefaultBufferMaxEntries
	}
	return &renderBuffer{maxEntries: maxEntries}
}

// Append adds payloads. A scrolled-up view stays anchored on the same entries.
func (b *renderBuffer) Append(payloads ...string) {
	if len(payloads) == 0 {
		return
	}
	b.payloads = append(b.payloads, payloads...)
	if b.scrollOffset > 0 {
		b.scrollOffset += len(payloads)
	}
	if b.maxEntries > 0 && len(b.payloads) > b.maxEntries {
		trim := len(b.payloads) - b.maxEntries
		b.payloads = append([]string(nil), b.payloads[trim:]...)
		if b.scrollOffset > len(b.payloads) {
			b.scrollOffset = len(b.payloads)
		}
	}
}

// Scroll moves the view by delta entries; positive scrolls towards older
// output. limit is the viewport height.
func (b *renderBuffer) Scroll(delta, limit int) {
	b.scrollOffset = clampScroll(b.scrollOffset+delta, len(b.payloads), limit)
}

// ResetScroll returns the view to the bottom.
func (b *renderBuffer) ResetScroll() {
	b.scrollOffset = 0
}

// Snapshot returns the visible window for the given viewport height.
func (b *renderBuffer) Snapshot(limit int) renderView {
	total := len(b.payloads)
	if limit <= 0 || limit > total {
		limit = total
	}
	if max := maxScroll(total, limit); b.scrollOffset > max {
		b.scrollOffset = max
	}
	end := total - b.scrollOffset
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	return renderView{
		Payloads:     append([]string(nil), b.payloads[start:end]...),
		Total:        total,
		ScrollOffset: b.scrollOffset,
		AtBottom:     b.scrollOffset == 0,
	}
}

func maxScroll(total, limit int) int {
	if total <= 0 || limit <= 0 || total <= limit {
		return 0
	}
	return total - limit
}

func clampScroll(offset, total, limit int) int {
	if offset < 0 {
		return 0
	}
	if max := maxScroll(total, limit); offset > max {
		return max
	}
	return offset
}
