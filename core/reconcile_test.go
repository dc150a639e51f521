package core

import "testing"

const (
	assistantPayload = `{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}`
	resultPayload    = `{"type":"result","result":"done"}`
)

func TestBuildKnownOutputPayloadsSkipsBlankEntries(t *testing.T) {
	known := BuildKnownOutputPayloads([]string{assistantPayload, "", "   ", resultPayload})
	if known.Len() != 2 {
		t.Fatalf("expected 2 known payloads, got %d", known.Len())
	}
	if known.Contains("") || known.Contains("   ") {
		t.Fatalf("blank entries must not be known")
	}
}

func TestBuildKnownOutputPayloadsCountsDistinctEntries(t *testing.T) {
	cases := []struct {
		name     string
		payloads []string
		want     int
	}{
		{name: "nil", payloads: nil, want: 0},
		{name: "duplicates", payloads: []string{"a", "a", "b"}, want: 2},
		{name: "whitespace only", payloads: []string{"\n", "\t ", ""}, want: 0},
		{name: "padding kept distinct", payloads: []string{"a", " a", "a "}, want: 3},
		{name: "reordered keys distinct", payloads: []string{`{"a":1,"b":2}`, `{"b":2,"a":1}`}, want: 2},
	}
	for _, tc := range cases {
		if got := BuildKnownOutputPayloads(tc.payloads).Len(); got != tc.want {
			t.Fatalf("%s: expected %d known payloads, got %d", tc.name, tc.want, got)
		}
	}
}

func TestBuildKnownOutputPayloadsKeepsOriginalString(t *testing.T) {
	padded := "  " + resultPayload + "\n"
	known := BuildKnownOutputPayloads([]string{padded})
	if !known.Contains(padded) {
		t.Fatalf("expected untrimmed payload to be known")
	}
	if known.Contains(resultPayload) {
		t.Fatalf("trimmed form must not be known")
	}
}

func TestLivePayloadAcceptedOnceAfterEmptyHistory(t *testing.T) {
	known := BuildKnownOutputPayloads(nil)
	if !ShouldProcessLiveOutputPayload(known, assistantPayload) {
		t.Fatalf("expected first live payload to be processed")
	}
	if ShouldProcessLiveOutputPayload(known, assistantPayload) {
		t.Fatalf("expected verbatim repeat to be rejected")
	}
	if known.Len() != 1 {
		t.Fatalf("expected 1 known payload, got %d", known.Len())
	}
}

func TestLivePayloadFromHistoryRejected(t *testing.T) {
	known := BuildKnownOutputPayloads([]string{resultPayload})
	if ShouldProcessLiveOutputPayload(known, resultPayload) {
		t.Fatalf("expected history payload to be rejected")
	}
	if known.Len() != 1 {
		t.Fatalf("rejection must not grow the set, got %d", known.Len())
	}
}

func TestLiveBlankPayloadNotSpecialCased(t *testing.T) {
	known := BuildKnownOutputPayloads([]string{"", "  "})
	if !ShouldProcessLiveOutputPayload(known, "") {
		t.Fatalf("expected first blank live payload to be processed")
	}
	if ShouldProcessLiveOutputPayload(known, "") {
		t.Fatalf("expected repeated blank live payload to be rejected")
	}
}

func TestLivePayloadSemanticDuplicateAccepted(t *testing.T) {
	known := BuildKnownOutputPayloads([]string{`{"type":"result","result":"done"}`})
	if !ShouldProcessLiveOutputPayload(known, `{"result":"done","type":"result"}`) {
		t.Fatalf("differently serialized payload must be treated as new")
	}
}

func TestNilKnownSetAcceptsEverything(t *testing.T) {
	var known *KnownPayloadSet
	for i := 0; i < 2; i++ {
		if !ShouldProcessLiveOutputPayload(known, resultPayload) {
			t.Fatalf("nil set must accept payloads")
		}
	}
	if known.Len() != 0 || known.Contains(resultPayload) {
		t.Fatalf("nil set must stay empty")
	}
}

func TestZeroKnownSetIsUsable(t *testing.T) {
	known := &KnownPayloadSet{}
	if !ShouldProcessLiveOutputPayload(known, "x") || ShouldProcessLiveOutputPayload(known, "x") {
		t.Fatalf("zero value set must dedup")
	}
}

func TestBuildKnownOutputPayloadsIsIdempotent(t *testing.T) {
	history := []string{assistantPayload, "", "  ", resultPayload, assistantPayload, " padded "}
	first := BuildKnownOutputPayloads(history)
	second := BuildKnownOutputPayloads(history)
	if first.Len() != second.Len() {
		t.Fatalf("expected equal sizes, got %d and %d", first.Len(), second.Len())
	}
	for payload := range first.payloads {
		if !second.Contains(payload) {
			t.Fatalf("second build is missing %q", payload)
		}
	}
	for payload := range second.payloads {
		if !first.Contains(payload) {
			t.Fatalf("first build is missing %q", payload)
		}
	}
	if len(history) != 6 || history[1] != "" {
		t.Fatalf("expected input left untouched, got %q", history)
	}
}
