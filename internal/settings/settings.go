// Package settings holds user options: built-in defaults overlaid with
// overrides persisted to a JSON file that may be edited while running.
package settings

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	dark "github.com/thiagokokada/dark-mode-go"
	"pkt.systems/pslog"
	"pkt.systems/tabnap/internal/persist"
	"pkt.systems/tabnap/schema"
)

// ThemeSystem follows the desktop dark mode preference.
const ThemeSystem = "system"

const reloadDebounce = 100 * time.Millisecond

// ChangeFunc receives the options whose effective value changed.
type ChangeFunc func(ctx context.Context, changed schema.Settings)

// Options configures a Manager.
type Options struct {
	HotkeyLabel string
	Logger      pslog.Logger
	// IsDarkMode overrides desktop theme detection.
	IsDarkMode func() (bool, error)
}

// Manager implements the coordinator's settings and hotkey collaborators.
type Manager struct {
	store  *persist.Store
	log    pslog.Logger
	isDark func() (bool, error)

	mu          sync.RWMutex
	values      schema.Settings
	hotkeyLabel string
	onChange    ChangeFunc
}

// New loads overrides from store and returns a manager.
func New(store *persist.Store, opts Options) (*Manager, error) {
	if store == nil {
		return nil, errors.New("settings store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	isDark := opts.IsDarkMode
	if isDark == nil {
		isDark = dark.IsDarkMode
	}
	m := &Manager{
		store:       store,
		log:         logger,
		isDark:      isDark,
		values:      schema.DefaultSettings(),
		hotkeyLabel: opts.HotkeyLabel,
	}
	snapshot, ok, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if ok {
		for name, value := range snapshot.Options {
			m.values[name] = value
		}
	}
	return m, nil
}

// OnChange registers the change callback used by Update, SetOption and the file watcher.
func (m *Manager) OnChange(fn ChangeFunc) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Option returns the effective value of an option. A system theme resolves
// to light or dark.
func (m *Manager) Option(name string) any {
	m.mu.RLock()
	value := m.values[name]
	m.mu.RUnlock()
	if name == schema.OptionTheme && schema.OptionString(value) == ThemeSystem {
		return m.systemTheme()
	}
	return value
}

// Snapshot returns a copy of every effective option.
func (m *Manager) Snapshot() schema.Settings {
	m.mu.RLock()
	out := make(schema.Settings, len(m.values))
	for name, value := range m.values {
		out[name] = value
	}
	m.mu.RUnlock()
	if schema.OptionString(out[schema.OptionTheme]) == ThemeSystem {
		out[schema.OptionTheme] = m.systemTheme()
	}
	return out
}

// SetOption stores a single option.
func (m *Manager) SetOption(ctx context.Context, name string, value any) error {
	return m.Update(ctx, schema.Settings{name: value})
}

// Update stores several options at once and notifies the change callback
// with those whose value differs from before.
func (m *Manager) Update(ctx context.Context, values schema.Settings) error {
	m.mu.Lock()
	changed := schema.Settings{}
	for name, value := range values {
		if old, ok := m.values[name]; ok && reflect.DeepEqual(old, value) {
			continue
		}
		m.values[name] = value
		changed[name] = value
	}
	overrides := m.overridesLocked()
	m.mu.Unlock()
	if len(changed) == 0 {
		return nil
	}
	if err := m.store.Save(persist.SettingsSnapshot{Options: overrides}); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	pslog.Ctx(ctx).Debug("settings updated", "changed", len(changed))
	m.notify(ctx, changed)
	return nil
}

// Reset restores every option to its default.
func (m *Manager) Reset(ctx context.Context) error {
	return m.Update(ctx, schema.DefaultSettings())
}

// Reload rereads the overrides file and applies the difference.
func (m *Manager) Reload(ctx context.Context) error {
	snapshot, _, err := m.store.Load()
	if err != nil {
		return err
	}
	next := schema.DefaultSettings()
	for name, value := range snapshot.Options {
		next[name] = value
	}
	m.mu.Lock()
	changed := diff(m.values, next)
	m.values = next
	m.mu.Unlock()
	if len(changed) > 0 {
		pslog.Ctx(ctx).Info("settings reloaded", "changed", len(changed))
		m.notify(ctx, changed)
	}
	return nil
}

// SuspendToggleLabel returns the configured shortcut label.
func (m *Manager) SuspendToggleLabel(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hotkeyLabel, nil
}

// SetHotkeyLabel replaces the shortcut label.
func (m *Manager) SetHotkeyLabel(label string) {
	m.mu.Lock()
	m.hotkeyLabel = label
	m.mu.Unlock()
}

// Watch reloads the overrides file whenever it changes until ctx is done.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	path := filepath.Clean(m.store.Path())
	// Editors replace files by rename so the directory is watched.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	log := pslog.Ctx(ctx).With("settings_file", path)
	log.Debug("settings watch started")

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				if err := m.Reload(ctx); err != nil {
					log.Warn("settings reload failed", "err", err)
				}
			})
			timerMu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("settings watch error", "err", err)
		}
	}
}

func (m *Manager) notify(ctx context.Context, changed schema.Settings) {
	m.mu.RLock()
	fn := m.onChange
	m.mu.RUnlock()
	if fn != nil {
		fn(ctx, changed)
	}
}

func (m *Manager) overridesLocked() schema.Settings {
	defaults := schema.DefaultSettings()
	out := schema.Settings{}
	for name, value := range m.values {
		if def, ok := defaults[name]; ok && reflect.DeepEqual(def, value) {
			continue
		}
		out[name] = value
	}
	return out
}

func (m *Manager) systemTheme() string {
	isDark, err := m.isDark()
	if err != nil {
		m.log.Debug("settings theme detection failed", "err", err)
		return "light"
	}
	if isDark {
		return "dark"
	}
	return "light"
}

func diff(prev, next schema.Settings) schema.Settings {
	changed := schema.Settings{}
	for name, value := range next {
		if old, ok := prev[name]; !ok || !reflect.DeepEqual(old, value) {
			changed[name] = value
		}
	}
	for name := range prev {
		if _, ok := next[name]; !ok {
			changed[name] = nil
		}
	}
	return changed
}
