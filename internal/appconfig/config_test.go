package appconfig

import "testing"

func TestDefaultConfigTimings(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Coordinator.FocusDelayMillis != 500 {
		t.Fatalf("expected 500ms focus delay, got %d", cfg.Coordinator.FocusDelayMillis)
	}
	if cfg.Coordinator.SpawnedTabWindowSeconds != 300 {
		t.Fatalf("expected 300s spawned tab window, got %d", cfg.Coordinator.SpawnedTabWindowSeconds)
	}
	if cfg.Notice.IntervalHours != 12 || cfg.Notice.TimeoutSeconds != 4 {
		t.Fatalf("unexpected notice defaults: %+v", cfg.Notice)
	}
	if cfg.Browser.Mode != BrowserModeLaunch {
		t.Fatalf("expected launch mode, got %q", cfg.Browser.Mode)
	}
}
