package core

import (
	"context"
	"testing"

	"pkt.systems/tabnap/schema"
)

func TestSessionSaveIsDebounced(t *testing.T) {
	tab := pageTab(1, 1, 0, "https://plain.example/")
	h := newHarness(t, nil, tab)
	ctx := context.Background()

	h.c.HandleEvent(ctx, schema.HostEvent{Type: schema.EventTabCreated, TabID: 1, Tab: &tab})
	h.c.HandleEvent(ctx, schema.HostEvent{Type: schema.EventTabCreated, TabID: 1, Tab: &tab})
	h.c.HandleEvent(ctx, schema.HostEvent{Type: schema.EventWindowRemoved, WindowID: 4})

	if got := h.sched.pending(); got != 1 {
		t.Fatalf("expected a single pending session save, got %d", got)
	}
	h.sched.fire()
	if h.session.saves != 1 {
		t.Fatalf("expected one session save, got %d", h.session.saves)
	}
}

func TestSessionSaveSkippedWithoutTabs(t *testing.T) {
	h := newHarness(t, nil)
	h.c.SaveWindowHistory(context.Background())
	if h.session.saves != 0 {
		t.Fatalf("expected no save without tabs")
	}
}

func TestTabRemovedClearsFlags(t *testing.T) {
	h := newHarness(t, nil)
	h.c.Flags().Set(3, FlagDiscardOnLoad, true)
	h.c.HandleEvent(context.Background(), schema.HostEvent{Type: schema.EventTabRemoved, TabID: 3})
	if h.c.Flags().Len() != 0 {
		t.Fatalf("expected flags cleared on removal")
	}
}

func TestHistoryVisitedRewritesSuspendedURL(t *testing.T) {
	h := newHarness(t, nil)
	suspendedURL := fakeCodec{}.Encode("https://docs.example/", "Docs", "0")

	h.c.HandleEvent(context.Background(), schema.HostEvent{Type: schema.EventHistoryVisited, URL: suspendedURL})
	h.c.HandleEvent(context.Background(), schema.HostEvent{Type: schema.EventHistoryVisited, URL: "https://plain.example/"})

	if len(h.history.deleted) != 1 || h.history.deleted[0] != suspendedURL {
		t.Fatalf("expected placeholder entry deleted, got %v", h.history.deleted)
	}
	if len(h.history.added) != 1 || h.history.added[0] != "https://docs.example/" {
		t.Fatalf("expected original url added, got %v", h.history.added)
	}
}
