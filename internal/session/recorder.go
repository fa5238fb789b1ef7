// Package session records window snapshots for the running session and
// reopens suspended tabs lost when a previous session ended abruptly.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"
	"pkt.systems/tabnap/core"
	"pkt.systems/tabnap/internal/tabstore"
	"pkt.systems/tabnap/schema"
)

const defaultKeep = 5

// Store persists snapshots.
type Store interface {
	SaveSession(ctx context.Context, sessionID string, windows []schema.Window) error
	LatestSession(ctx context.Context, exclude string) (tabstore.SessionSnapshot, bool, error)
	TrimSessions(ctx context.Context, keep int) error
}

// Options configures a Recorder.
type Options struct {
	// Keep bounds the number of stored snapshots.
	Keep int
	// RecoveryTimeout ends recovery mode even if some tabs never load.
	RecoveryTimeout time.Duration
}

// Recorder implements the coordinator session collaborator.
type Recorder struct {
	id    string
	store Store
	opts  Options

	mu       sync.Mutex
	pending  map[string]struct{}
	deadline *time.Timer
}

// New returns a recorder with a fresh session id.
func New(store Store, opts Options) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if opts.Keep <= 0 {
		opts.Keep = defaultKeep
	}
	if opts.RecoveryTimeout <= 0 {
		opts.RecoveryTimeout = 2 * time.Minute
	}
	return &Recorder{id: uuid.NewString(), store: store, opts: opts}, nil
}

// SessionID identifies the running session.
func (r *Recorder) SessionID() string {
	return r.id
}

// SaveWindows stores the snapshot and trims old sessions.
func (r *Recorder) SaveWindows(ctx context.Context, sessionID string, windows []schema.Window) error {
	if err := r.store.SaveSession(ctx, sessionID, windows); err != nil {
		return err
	}
	return r.store.TrimSessions(ctx, r.opts.Keep)
}

// IsRecoveryMode reports whether reopened tabs are still loading.
func (r *Recorder) IsRecoveryMode() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending) > 0
}

// TabRecovered marks a reopened suspended tab as loaded.
func (r *Recorder) TabRecovered(ctx context.Context, tab schema.Tab) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[tab.URL]; !ok {
		return
	}
	delete(r.pending, tab.URL)
	pslog.Ctx(ctx).Debug("session tab recovered", "tab", tab.ID, "remaining", len(r.pending))
	if len(r.pending) == 0 {
		r.stopDeadlineLocked()
		pslog.Ctx(ctx).Info("session recovery complete")
	}
}

// Recover reopens suspended tabs of the previous session that the host no
// longer shows. It returns the number of tabs opened.
func (r *Recorder) Recover(ctx context.Context, host core.Host, codec core.URLCodec) (int, error) {
	log := pslog.Ctx(ctx)
	snap, ok, err := r.store.LatestSession(ctx, r.id)
	if err != nil {
		return 0, err
	}
	if !ok {
		log.Debug("session recovery skipped", "reason", "no previous session")
		return 0, nil
	}
	current, err := host.QueryTabs(ctx, schema.TabQuery{})
	if err != nil {
		return 0, err
	}
	open := make(map[string]struct{}, len(current))
	for _, tab := range current {
		open[tab.URL] = struct{}{}
	}
	window, err := host.CurrentWindow(ctx)
	if err != nil {
		return 0, err
	}

	var missing []string
	for _, w := range snap.Windows {
		for _, tab := range w.Tabs {
			if !codec.IsSuspendedURL(tab.URL) {
				continue
			}
			if _, ok := open[tab.URL]; ok {
				continue
			}
			open[tab.URL] = struct{}{}
			missing = append(missing, tab.URL)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	r.pending = make(map[string]struct{}, len(missing))
	for _, url := range missing {
		r.pending[url] = struct{}{}
	}
	r.stopDeadlineLocked()
	r.deadline = time.AfterFunc(r.opts.RecoveryTimeout, r.endRecovery)
	r.mu.Unlock()

	opened := 0
	for i, url := range missing {
		if _, err := host.CreateTab(ctx, core.CreateTabOptions{
			URL:      url,
			WindowID: window.ID,
			Index:    len(window.Tabs) + i,
			Active:   false,
		}); err != nil {
			log.Warn("session recovery tab open failed", "url", url, "err", err)
			r.mu.Lock()
			delete(r.pending, url)
			r.mu.Unlock()
			continue
		}
		opened++
	}
	log.Info("session recovery started", "previous", snap.SessionID, "tabs", opened)
	return opened, nil
}

func (r *Recorder) endRecovery() {
	r.mu.Lock()
	r.pending = nil
	r.deadline = nil
	r.mu.Unlock()
}

func (r *Recorder) stopDeadlineLocked() {
	if r.deadline != nil {
		r.deadline.Stop()
		r.deadline = nil
	}
}
