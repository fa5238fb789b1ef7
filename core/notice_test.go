package core

import (
	"context"
	"testing"

	"pkt.systems/tabnap/schema"
)

func TestNoticeLifecycle(t *testing.T) {
	tab := pageTab(1, 1, 0, "https://plain.example/")
	h := newHarness(t, schema.Settings{schema.OptionNoticeVersion: "3"}, tab)
	ctx := context.Background()
	notice := schema.Notice{Active: true, Version: "4", Target: "7.1.8", Text: "Hello"}

	if !h.c.OfferNotice(ctx, notice) {
		t.Fatalf("expected notice accepted")
	}
	if got, ok := h.c.RequestNotice(); !ok || got.Version != "4" {
		t.Fatalf("expected pending notice, got %+v %v", got, ok)
	}

	h.c.HandleEvent(ctx, schema.HostEvent{Type: schema.EventWindowCreated, WindowID: 2})
	if len(h.host.created) != 1 || h.host.created[0].URL != "http://tabnap.test/notice.html" || h.host.created[0].WindowID != 2 {
		t.Fatalf("expected notice tab opened, got %+v", h.host.created)
	}

	h.c.ClearNotice(ctx)
	if _, ok := h.c.RequestNotice(); ok {
		t.Fatalf("expected notice cleared")
	}
	if got := h.settings.Snapshot().String(schema.OptionNoticeVersion); got != "4" {
		t.Fatalf("expected notice version saved, got %q", got)
	}
	if h.c.OfferNotice(ctx, notice) {
		t.Fatalf("expected seen notice rejected")
	}
}

func TestNoticeRejections(t *testing.T) {
	h := newHarness(t, schema.Settings{schema.OptionNoticeVersion: "3"})
	ctx := context.Background()
	cases := []schema.Notice{
		{Active: false, Version: "9", Target: "7.1.8", Text: "inactive"},
		{Active: true, Version: "9", Target: "7.1.7", Text: "other target"},
		{Active: true, Version: "2", Target: "7.1.8", Text: "older"},
		{Active: true, Version: "9", Target: "7.1.8", Text: " "},
	}
	for _, notice := range cases {
		if h.c.OfferNotice(ctx, notice) {
			t.Fatalf("expected notice rejected: %+v", notice)
		}
	}
}
