package outputcache

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
)

func openTestCache(t *testing.T, max int) *Cache {
	t.Helper()
	cache, err := Open(context.Background(), filepath.Join(t.TempDir(), "cache.db"), "default", Options{MaxPayloadsPerPane: max})
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() {
		_ = cache.Close()
	})
	return cache
}

func TestRecordAndLoadKeepsOrder(t *testing.T) {
	ctx := context.Background()
	cache := openTestCache(t, 0)
	payloads := []string{`{"type":"assistant"}`, "", `{"type":"result","result":"done"}`, `{"type":"assistant"}`}
	for _, p := range payloads {
		if err := cache.RecordPayload(ctx, "tab1", "pane1", p); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := cache.RecordPayload(ctx, "tab1", "pane2", "other"); err != nil {
		t.Fatalf("record other pane: %v", err)
	}
	got, err := cache.LoadPaneHistory(ctx, "tab1", "pane1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, payloads) {
		t.Fatalf("expected %q, got %q", payloads, got)
	}
}

func TestRecordTrimsOldest(t *testing.T) {
	ctx := context.Background()
	cache := openTestCache(t, 2)
	for _, p := range []string{"a", "b", "c"} {
		if err := cache.RecordPayload(ctx, "tab1", "pane1", p); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	got, err := cache.LoadPaneHistory(ctx, "tab1", "pane1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("expected trimmed history, got %q", got)
	}
}

func TestDropPaneAndTab(t *testing.T) {
	ctx := context.Background()
	cache := openTestCache(t, 0)
	_ = cache.RecordPayload(ctx, "tab1", "pane1", "a")
	_ = cache.RecordPayload(ctx, "tab1", "pane2", "b")
	_ = cache.RecordPayload(ctx, "tab2", "pane3", "c")

	if err := cache.DropPane(ctx, "tab1", "pane1"); err != nil {
		t.Fatalf("drop pane: %v", err)
	}
	if got, _ := cache.LoadPaneHistory(ctx, "tab1", "pane1"); len(got) != 0 {
		t.Fatalf("expected pane history dropped, got %q", got)
	}
	if err := cache.DropTab(ctx, "tab1"); err != nil {
		t.Fatalf("drop tab: %v", err)
	}
	if got, _ := cache.LoadPaneHistory(ctx, "tab1", "pane2"); len(got) != 0 {
		t.Fatalf("expected tab history dropped, got %q", got)
	}
	if got, _ := cache.LoadPaneHistory(ctx, "tab2", "pane3"); len(got) != 1 {
		t.Fatalf("expected other tab untouched, got %q", got)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	cache := openTestCache(t, 0)
	if err := ApplyMigrations(context.Background(), cache.db); err != nil {
		t.Fatalf("reapply migrations: %v", err)
	}
}
