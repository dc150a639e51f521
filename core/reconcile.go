package core

import "strings"

// KnownPayloadSet records which raw output payloads a pane has already
// rendered. It holds membership only; ordering lives with the caller.
//
// Payloads are compared by exact string identity. Two payloads that encode
// the same JSON with different whitespace or key order are distinct members.
type KnownPayloadSet struct {
	payloads map[string]struct{}
}

// BuildKnownOutputPayloads seeds a set from history/cache payloads. Entries
// that are blank after trimming are skipped; every other entry is stored as
// its original, untrimmed string.
func BuildKnownOutputPayloads(payloads []string) *KnownPayloadSet {
	known := &KnownPayloadSet{payloads: make(map[string]struct{}, len(payloads))}
	for _, payload := range payloads {
		if strings.TrimSpace(payload) == "" {
			continue
		}
		known.payloads[payload] = struct{}{}
	}
	return known
}

// ShouldProcessLiveOutputPayload reports whether a live payload is new. A new
// payload is added to the set so a later verbatim re-send is rejected.
// Blank payloads are not special-cased here.
func ShouldProcessLiveOutputPayload(known *KnownPayloadSet, payload string) bool {
	if known == nil {
		return true
	}
	if known.payloads == nil {
		known.payloads = make(map[string]struct{})
	}
	if _, ok := known.payloads[payload]; ok {
		return false
	}
	known.payloads[payload] = struct{}{}
	return true
}

// Len returns the number of known payloads.
func (k *KnownPayloadSet) Len() int {
	if k == nil {
		return 0
	}
	return len(k.payloads)
}

// Contains reports whether the payload is known.
func (k *KnownPayloadSet) Contains(payload string) bool {
	if k == nil {
		return false
	}
	_, ok := k.payloads[payload]
	return ok
}
