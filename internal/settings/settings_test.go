package settings

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pkt.systems/tabnap/internal/persist"
	"pkt.systems/tabnap/schema"
)

func newManager(t *testing.T, opts Options) (*Manager, *persist.Store) {
	t.Helper()
	store, err := persist.NewStore(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	m, err := New(store, opts)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, store
}

func TestDefaultsWithoutOverrides(t *testing.T) {
	m, _ := newManager(t, Options{})
	if got := schema.OptionString(m.Option(schema.OptionSuspendTime)); got != "60" {
		t.Fatalf("expected default suspend time, got %q", got)
	}
	if !m.Snapshot().Bool(schema.OptionIgnorePinned) {
		t.Fatalf("expected ignorePinned default true")
	}
}

func TestSetOptionPersistsOverridesOnly(t *testing.T) {
	m, store := newManager(t, Options{})
	var changed schema.Settings
	m.OnChange(func(_ context.Context, c schema.Settings) { changed = c })

	if err := m.SetOption(context.Background(), schema.OptionSuspendTime, "5"); err != nil {
		t.Fatalf("set option: %v", err)
	}
	if changed.String(schema.OptionSuspendTime) != "5" {
		t.Fatalf("expected change callback, got %+v", changed)
	}
	snapshot, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if len(snapshot.Options) != 1 || snapshot.Options.String(schema.OptionSuspendTime) != "5" {
		t.Fatalf("expected single override, got %+v", snapshot.Options)
	}

	changed = nil
	if err := m.SetOption(context.Background(), schema.OptionSuspendTime, "5"); err != nil {
		t.Fatalf("set option again: %v", err)
	}
	if changed != nil {
		t.Fatalf("did not expect callback for unchanged value, got %+v", changed)
	}
}

func TestNewLoadsExistingOverrides(t *testing.T) {
	store, err := persist.NewStore(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Save(persist.SettingsSnapshot{Options: schema.Settings{schema.OptionIgnoreForms: false}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	m, err := New(store, Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if m.Snapshot().Bool(schema.OptionIgnoreForms) {
		t.Fatalf("expected override to disable ignoreForms")
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	m, _ := newManager(t, Options{})
	ctx := context.Background()
	if err := m.SetOption(ctx, schema.OptionSuspendTime, "5"); err != nil {
		t.Fatalf("set: %v", err)
	}
	var changed schema.Settings
	m.OnChange(func(_ context.Context, c schema.Settings) { changed = c })
	if err := m.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if changed.String(schema.OptionSuspendTime) != "60" || len(changed) != 1 {
		t.Fatalf("expected only suspendTime change, got %+v", changed)
	}
}

func TestSystemThemeResolves(t *testing.T) {
	dark := true
	m, _ := newManager(t, Options{IsDarkMode: func() (bool, error) { return dark, nil }})
	if err := m.SetOption(context.Background(), schema.OptionTheme, ThemeSystem); err != nil {
		t.Fatalf("set theme: %v", err)
	}
	if got := m.Option(schema.OptionTheme); got != "dark" {
		t.Fatalf("expected dark theme, got %v", got)
	}
	dark = false
	if got := m.Snapshot().String(schema.OptionTheme); got != "light" {
		t.Fatalf("expected light theme, got %q", got)
	}
}

func TestSystemThemeFallsBackOnError(t *testing.T) {
	m, _ := newManager(t, Options{IsDarkMode: func() (bool, error) { return false, errors.New("no dbus") }})
	if err := m.SetOption(context.Background(), schema.OptionTheme, ThemeSystem); err != nil {
		t.Fatalf("set theme: %v", err)
	}
	if got := m.Option(schema.OptionTheme); got != "light" {
		t.Fatalf("expected light fallback, got %v", got)
	}
}

func TestHotkeyLabel(t *testing.T) {
	m, _ := newManager(t, Options{HotkeyLabel: "Ctrl+Shift+S"})
	label, err := m.SuspendToggleLabel(context.Background())
	if err != nil || label != "Ctrl+Shift+S" {
		t.Fatalf("unexpected label %q err=%v", label, err)
	}
	m.SetHotkeyLabel("")
	if label, _ := m.SuspendToggleLabel(context.Background()); label != "" {
		t.Fatalf("expected cleared label, got %q", label)
	}
}

func TestWatchReloadsExternalEdits(t *testing.T) {
	m, store := newManager(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	got := make(chan schema.Settings, 1)
	m.OnChange(func(_ context.Context, changed schema.Settings) {
		mu.Lock()
		defer mu.Unlock()
		select {
		case got <- changed:
		default:
		}
	})
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(store.Path(), []byte(`{"options":{"suspendTime":"15"}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case changed := <-got:
		if changed.String(schema.OptionSuspendTime) != "15" {
			t.Fatalf("unexpected change %+v", changed)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for reload")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch: %v", err)
	}
}
