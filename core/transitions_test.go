package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"pkt.systems/tabnap/schema"
)

func previewOfLength(n int) string {
	prefix := "data:image/webp;base64,"
	return prefix + strings.Repeat("A", n-len(prefix))
}

func TestBuildSuspendedPayloadPreviewThreshold(t *testing.T) {
	cases := []struct {
		name   string
		length int
		want   bool
	}{
		{name: "undersized", length: 9999, want: false},
		{name: "exact threshold", length: MinPreviewBytes, want: false},
		{name: "accepted", length: 10001, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			suspendedURL := fakeCodec{}.Encode("https://docs.example/", "Docs", "0")
			tab := pageTab(4, 1, 0, suspendedURL)
			h := newHarness(t, nil, tab)
			preview := previewOfLength(tc.length)
			_ = h.tabInfo.SavePreview(context.Background(), "https://docs.example/", preview)

			payload := h.c.BuildSuspendedPayload(context.Background(), tab)
			if got := payload.PreviewURI != ""; got != tc.want {
				t.Fatalf("expected preview accepted=%v for %d bytes", tc.want, tc.length)
			}
		})
	}
}

func TestBuildSuspendedPayloadFallbacks(t *testing.T) {
	suspendedURL := fakeCodec{}.Encode("https://docs.example/a", "Fallback <b>title</b>", "300")
	tab := pageTab(4, 1, 0, suspendedURL)
	h := newHarness(t, schema.Settings{schema.OptionTheme: "dark", schema.OptionNoNag: true}, tab)
	h.whitelist.entries = []string{"docs.example"}

	payload := h.c.BuildSuspendedPayload(context.Background(), tab)

	if payload.URL != "https://docs.example/a" {
		t.Fatalf("unexpected original url %q", payload.URL)
	}
	if payload.Favicon != "chrome://favicon/https://docs.example/a" {
		t.Fatalf("unexpected favicon fallback %q", payload.Favicon)
	}
	if payload.Title != "Fallback &lt;b&gt;title&lt;/b&gt;" {
		t.Fatalf("expected escaped title, got %q", payload.Title)
	}
	if payload.ScrollPosition != "300" || !payload.Whitelisted || payload.Theme != "dark" || !payload.HideNag {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if !payload.RequestUnsuspendOnReload {
		t.Fatalf("expected unsuspend on reload requested")
	}
	if payload.Command != "Ctrl+Shift+S" {
		t.Fatalf("unexpected hotkey label %q", payload.Command)
	}
}

func TestBuildSuspendedPayloadPrefersStoredInfo(t *testing.T) {
	suspendedURL := fakeCodec{}.Encode("https://docs.example/a", "Old", "0")
	tab := pageTab(4, 1, 0, suspendedURL)
	h := newHarness(t, nil, tab)
	_ = h.tabInfo.SaveTabInfo(context.Background(), TabProperties{URL: "https://docs.example/a", Title: "Stored", Favicon: "https://docs.example/icon.png"})

	payload := h.c.BuildSuspendedPayload(context.Background(), tab)
	if payload.Title != "Stored" || payload.Favicon != "https://docs.example/icon.png" {
		t.Fatalf("expected stored tab info, got %+v", payload)
	}
}

func TestUnsuspendOnReload(t *testing.T) {
	suspendedURL := fakeCodec{}.Encode("https://docs.example/", "Docs", "0")
	tab := pageTab(5, 1, 0, suspendedURL)
	h := newHarness(t, nil, tab)
	h.agents.reply(5, schema.StatusSuspended)
	ctx := context.Background()

	h.c.HandleAgentReport(ctx, schema.AgentReport{Action: schema.ReportUnsuspendOnReload, TabID: 5, URL: suspendedURL})

	loading := tab
	loading.Status = schema.LoadStatusLoading
	update := schema.HostEvent{Type: schema.EventTabUpdated, TabID: 5, Tab: &loading, Change: schema.ChangeInfo{Status: schema.LoadStatusLoading}}
	h.c.HandleEvent(ctx, update)
	if got := h.agents.count(5, schema.ActionUnsuspend); got != 1 {
		t.Fatalf("expected one unsuspend request, got %d", got)
	}

	h.c.HandleEvent(ctx, update)
	if got := h.agents.count(5, schema.ActionUnsuspend); got != 1 {
		t.Fatalf("flag must be consumed by the first reload, got %d requests", got)
	}
}

func TestDisabledUnsuspendOnReloadKeepsPlaceholder(t *testing.T) {
	suspendedURL := fakeCodec{}.Encode("https://docs.example/", "Docs", "0")
	tab := pageTab(5, 1, 0, suspendedURL)
	h := newHarness(t, nil, tab)
	h.agents.reply(5, schema.StatusSuspended)
	ctx := context.Background()

	h.c.HandleAgentReport(ctx, schema.AgentReport{Action: schema.ReportUnsuspendOnReload, TabID: 5, URL: suspendedURL})
	h.c.HandleAgentReport(ctx, schema.AgentReport{Action: schema.ReportUnsuspendOnReload, TabID: 5})

	loading := tab
	loading.Status = schema.LoadStatusLoading
	h.c.HandleEvent(ctx, schema.HostEvent{Type: schema.EventTabUpdated, TabID: 5, Tab: &loading, Change: schema.ChangeInfo{Status: schema.LoadStatusLoading}})
	if got := h.agents.count(5, schema.ActionUnsuspend); got != 0 {
		t.Fatalf("expected no unsuspend, got %d", got)
	}
}

func TestResuspendTabDisablesUnsuspendThenReloads(t *testing.T) {
	suspendedURL := fakeCodec{}.Encode("https://docs.example/", "Docs", "0")
	tab := pageTab(5, 1, 0, suspendedURL)
	h := newHarness(t, nil, tab)
	h.agents.reply(5, schema.StatusSuspended)

	if err := h.c.ResuspendTab(context.Background(), tab); err != nil {
		t.Fatalf("resuspend: %v", err)
	}
	if got := h.agents.actions(5); len(got) != 1 || got[0] != schema.ActionDisableUnsuspendOnReload {
		t.Fatalf("unexpected agent messages %v", got)
	}
	if len(h.host.reloaded) != 1 || h.host.reloaded[0] != 5 {
		t.Fatalf("expected reload, got %v", h.host.reloaded)
	}
}

func TestUnsuspendFallsBackToNavigation(t *testing.T) {
	suspendedURL := fakeCodec{}.Encode("https://docs.example/page", "Docs", "640")
	tab := pageTab(6, 1, 0, suspendedURL)
	h := newHarness(t, nil, tab)

	h.c.UnsuspendTab(context.Background(), tab)

	if len(h.host.navigated) != 1 || h.host.navigated[0].url != "https://docs.example/page" {
		t.Fatalf("expected navigation to original url, got %+v", h.host.navigated)
	}
	if got := h.c.Flags().String(6, FlagScrollPos); got != "640" {
		t.Fatalf("expected scroll pos flag, got %q", got)
	}
}

func TestSuspendedTabCompleteInitialisesPlaceholder(t *testing.T) {
	suspendedURL := fakeCodec{}.Encode("https://docs.example/", "Docs", "0")
	tab := pageTab(7, 1, 0, suspendedURL)
	h := newHarness(t, nil, tab)
	h.agents.reply(7, schema.StatusSuspended)
	h.session.recovery = true
	h.c.Flags().Set(7, FlagScrollPos, "10")

	h.c.HandleEvent(context.Background(), schema.HostEvent{Type: schema.EventTabUpdated, TabID: 7, Tab: &tab, Change: schema.ChangeInfo{Status: schema.LoadStatusComplete}})

	msg, ok := h.agents.last(7, schema.ActionInitSuspendedTab)
	if !ok || msg.Payload == nil || msg.Payload.URL != "https://docs.example/" {
		t.Fatalf("expected placeholder payload, got %+v", msg)
	}
	ops := h.queue.ops(7)
	if len(ops) != 1 || ops[0].op != "markSuspended" {
		t.Fatalf("expected suspension marked, got %+v", ops)
	}
	if _, ok := h.c.Flags().Get(7, FlagScrollPos); ok {
		t.Fatalf("expected flags cleared")
	}
	if len(h.session.recover) != 1 {
		t.Fatalf("expected recovery notified")
	}
}

func TestDiscardAfterSuspendOnPlaceholderLoad(t *testing.T) {
	suspendedURL := fakeCodec{}.Encode("https://docs.example/", "Docs", "0")
	tab := pageTab(7, 1, 0, suspendedURL)
	h := newHarness(t, schema.Settings{schema.OptionDiscardAfterSuspend: true}, tab)
	h.agents.reply(7, schema.StatusSuspended)
	ctx := context.Background()

	loading := tab
	loading.Status = schema.LoadStatusLoading
	h.c.HandleEvent(ctx, schema.HostEvent{Type: schema.EventTabUpdated, TabID: 7, Tab: &loading, Change: schema.ChangeInfo{Status: schema.LoadStatusLoading}})
	h.c.HandleEvent(ctx, schema.HostEvent{Type: schema.EventTabUpdated, TabID: 7, Tab: &tab, Change: schema.ChangeInfo{Status: schema.LoadStatusComplete}})

	ops := h.queue.ops(7)
	if len(ops) != 2 || ops[1].op != "forceDiscard" {
		t.Fatalf("expected discard after placeholder load, got %+v", ops)
	}
}

func TestUnsuspendedTabCompletePushesInit(t *testing.T) {
	tab := pageTab(8, 1, 0, "https://plain.example/")
	h := newHarness(t, schema.Settings{schema.OptionSuspendTime: "15"}, tab)
	h.agents.reply(8, schema.StatusNormal)
	h.c.Flags().Set(8, FlagScrollPos, "512")
	h.c.Flags().Set(8, FlagWhitelistOnReload, true)

	h.c.HandleEvent(context.Background(), schema.HostEvent{Type: schema.EventTabUpdated, TabID: 8, Tab: &tab, Change: schema.ChangeInfo{Status: schema.LoadStatusComplete}})

	msg, ok := h.agents.last(8, schema.ActionInitTab)
	if !ok {
		t.Fatalf("expected init message")
	}
	if msg.SuspendTime == nil || *msg.SuspendTime != "15" {
		t.Fatalf("unexpected suspend time %v", msg.SuspendTime)
	}
	if msg.IgnoreForms == nil || !*msg.IgnoreForms || !msg.TempWhitelist || msg.ScrollPos != "512" {
		t.Fatalf("unexpected init message %+v", msg)
	}
	if h.c.Flags().Len() != 0 {
		t.Fatalf("expected flags cleared after load")
	}
}

func TestInitialiseUnsuspendedTabNeverForStationaryTab(t *testing.T) {
	tab := pageTab(8, 1, 0, "https://plain.example/")
	tab.Active = true
	h := newHarness(t, nil, tab)
	h.agents.reply(8, schema.StatusNormal)
	h.c.Init(context.Background())

	if _, err := h.c.InitialiseUnsuspendedTab(context.Background(), tab); err != nil {
		t.Fatalf("init tab: %v", err)
	}
	msg, _ := h.agents.last(8, schema.ActionInitTab)
	if msg.SuspendTime == nil || *msg.SuspendTime != schema.SuspendTimeNever {
		t.Fatalf("expected stationary tab timer disabled, got %v", msg.SuspendTime)
	}
}

func TestSpawnedTabQueuedOnLoad(t *testing.T) {
	parent := pageTab(1, 1, 0, "https://parent.example/")
	parent.Active = true
	sibling := pageTab(2, 1, 1, "https://child.example/")
	sibling.OpenerTabID = 1
	other := pageTab(3, 1, 2, "https://other.example/")
	h := newHarness(t, nil, parent, sibling, other)
	ctx := context.Background()

	spawned, err := h.c.OpenLinkInSuspendedTab(ctx, parent, "https://spawned.example/")
	if err != nil {
		t.Fatalf("open link: %v", err)
	}
	if got := h.host.created[0]; got.Index != 2 || got.Active || got.OpenerTabID != 1 {
		t.Fatalf("unexpected create options %+v", got)
	}

	h.now = h.now.Add(time.Minute)
	loaded := spawned
	loaded.Status = schema.LoadStatusComplete
	h.c.HandleEvent(ctx, schema.HostEvent{Type: schema.EventTabUpdated, TabID: spawned.ID, Tab: &loaded, Change: schema.ChangeInfo{Status: schema.LoadStatusComplete}})

	ops := h.queue.ops(spawned.ID)
	if len(ops) != 1 || ops[0].op != "queue" || ops[0].level != ForceLevelAlways {
		t.Fatalf("expected spawned tab queued, got %+v", ops)
	}
	if h.agents.count(spawned.ID, schema.ActionInitTab) != 0 {
		t.Fatalf("spawned tab must not be initialised")
	}
}

func TestSpawnedTabExpiresAfterWindow(t *testing.T) {
	parent := pageTab(1, 1, 0, "https://parent.example/")
	h := newHarness(t, nil, parent)
	ctx := context.Background()

	spawned, err := h.c.OpenLinkInSuspendedTab(ctx, parent, "https://spawned.example/")
	if err != nil {
		t.Fatalf("open link: %v", err)
	}
	h.now = h.now.Add(schema.DefaultSpawnedTabWindow + time.Second)
	loaded := spawned
	loaded.Status = schema.LoadStatusComplete
	h.c.HandleEvent(ctx, schema.HostEvent{Type: schema.EventTabUpdated, TabID: spawned.ID, Tab: &loaded, Change: schema.ChangeInfo{Status: schema.LoadStatusComplete}})

	if len(h.queue.ops(spawned.ID)) != 0 {
		t.Fatalf("expired spawn must not queue")
	}
	if h.agents.count(spawned.ID, schema.ActionInitTab) != 1 {
		t.Fatalf("expected normal init after spawn window")
	}
}

func TestSuspendInPlaceOfDiscard(t *testing.T) {
	tab := pageTab(9, 1, 0, "https://plain.example/")
	tab.Discarded = true
	h := newHarness(t, schema.Settings{schema.OptionSuspendInPlaceOfDiscard: true}, tab)

	h.c.HandleEvent(context.Background(), schema.HostEvent{Type: schema.EventTabUpdated, TabID: 9, Tab: &tab, Change: schema.ChangeInfo{Discarded: schema.Bool(true)}})

	ops := h.queue.ops(9)
	if len(ops) != 1 || ops[0].op != "forceSuspend" {
		t.Fatalf("expected forced suspension, got %+v", ops)
	}
	if ops[0].url != (fakeCodec{}).Encode(tab.URL, tab.Title, "0") {
		t.Fatalf("unexpected suspended url %q", ops[0].url)
	}
}

func TestThawedTabIsNotForceSuspended(t *testing.T) {
	tab := pageTab(9, 1, 0, "https://plain.example/")
	h := newHarness(t, schema.Settings{schema.OptionSuspendInPlaceOfDiscard: true}, tab)
	h.agents.reply(9, schema.StatusNormal)

	h.c.HandleEvent(context.Background(), schema.HostEvent{Type: schema.EventTabUpdated, TabID: 9, Tab: &tab, Change: schema.ChangeInfo{Discarded: schema.Bool(false)}})

	if ops := h.queue.ops(9); len(ops) != 0 {
		t.Fatalf("expected no suspension when a tab is thawed, got %+v", ops)
	}
}

func TestUnpinRestartsTimerWhenPinnedIgnored(t *testing.T) {
	tab := pageTab(9, 1, 0, "https://pinned.example/")
	h := newHarness(t, schema.Settings{schema.OptionIgnorePinned: true}, tab)
	h.agents.reply(9, schema.StatusNormal)

	h.c.HandleEvent(context.Background(), schema.HostEvent{Type: schema.EventTabUpdated, TabID: 9, Tab: &tab, Change: schema.ChangeInfo{Pinned: schema.Bool(false)}})

	if h.agents.count(9, schema.ActionRestartTimer) != 1 {
		t.Fatalf("expected restart after unpinning, got %v", h.agents.actions(9))
	}
}

func TestUnpinKeepsTimerWhenPinnedNotIgnored(t *testing.T) {
	tab := pageTab(9, 1, 0, "https://pinned.example/")
	h := newHarness(t, schema.Settings{schema.OptionIgnorePinned: false}, tab)
	h.agents.reply(9, schema.StatusNormal)

	h.c.HandleEvent(context.Background(), schema.HostEvent{Type: schema.EventTabUpdated, TabID: 9, Tab: &tab, Change: schema.ChangeInfo{Pinned: schema.Bool(false)}})

	if h.agents.count(9, schema.ActionRestartTimer) != 0 {
		t.Fatalf("expected no restart, got %v", h.agents.actions(9))
	}
}

func TestAudioEndRestartsTimer(t *testing.T) {
	tab := pageTab(9, 1, 0, "https://music.example/")
	h := newHarness(t, nil, tab)
	h.agents.reply(9, schema.StatusNormal)

	h.c.HandleEvent(context.Background(), schema.HostEvent{Type: schema.EventTabUpdated, TabID: 9, Tab: &tab, Change: schema.ChangeInfo{Audible: schema.Bool(false)}})

	if h.agents.count(9, schema.ActionRestartTimer) != 1 {
		t.Fatalf("expected restart after audio ended, got %v", h.agents.actions(9))
	}
}

func TestThanksPageHidesNag(t *testing.T) {
	tab := pageTab(9, 1, 0, schema.DefaultThanksURL)
	h := newHarness(t, nil, tab)

	h.c.HandleEvent(context.Background(), schema.HostEvent{Type: schema.EventTabUpdated, TabID: 9, Tab: &tab, Change: schema.ChangeInfo{URL: schema.String(schema.DefaultThanksURL)}})

	if !h.settings.Snapshot().Bool(schema.OptionNoNag) {
		t.Fatalf("expected nag hidden")
	}
	if len(h.host.navigated) != 1 || h.host.navigated[0].url != "http://tabnap.test/thanks.html" {
		t.Fatalf("expected local thanks redirect, got %+v", h.host.navigated)
	}
}
