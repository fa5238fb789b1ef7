package chromehost

import (
	"context"
	"slices"
	"sync"

	"github.com/chromedp/cdproto/target"

	"pkt.systems/tabnap/schema"
)

// registry maps browser targets to stable tab ids and tracks window layout.
// Tab snapshots are assembled on read so Index and Active always agree with
// the window order.
type registry struct {
	mu       sync.Mutex
	nextID   schema.TabID
	byTarget map[target.ID]schema.TabID
	tabs     map[schema.TabID]*tabRecord
	windows  map[schema.WindowID]*windowRecord
	// windowOrder keeps windows in creation order.
	windowOrder []schema.WindowID
	focused     schema.WindowID
	waiters     map[target.ID][]chan schema.TabID
}

type tabRecord struct {
	target target.ID
	tab    schema.Tab
}

type windowRecord struct {
	order  []schema.TabID
	active schema.TabID
}

// removal describes the layout change caused by a closed tab.
type removal struct {
	tab           schema.Tab
	windowRemoved bool
	// activated is the tab that took over as active tab of the window, if any.
	activated schema.TabID
}

// activation describes the focus change caused by activating a tab.
type activation struct {
	tabID         schema.TabID
	windowID      schema.WindowID
	tabChanged    bool
	windowChanged bool
}

func newRegistry() *registry {
	return &registry{
		byTarget: make(map[target.ID]schema.TabID),
		tabs:     make(map[schema.TabID]*tabRecord),
		windows:  make(map[schema.WindowID]*windowRecord),
		focused:  schema.WindowIDNone,
		waiters:  make(map[target.ID][]chan schema.TabID),
	}
}

// add registers a target. existed is true when the target was already known.
func (r *registry) add(id target.ID, windowID schema.WindowID, url, title string) (tab schema.Tab, newWindow bool, existed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tabID, ok := r.byTarget[id]; ok {
		tab, _ := r.snapshotLocked(tabID)
		return tab, false, true
	}
	r.nextID++
	tabID := r.nextID
	r.byTarget[id] = tabID
	r.tabs[tabID] = &tabRecord{
		target: id,
		tab: schema.Tab{
			ID:       tabID,
			WindowID: windowID,
			URL:      url,
			Title:    title,
			Status:   schema.LoadStatusLoading,
		},
	}
	win, ok := r.windows[windowID]
	if !ok {
		win = &windowRecord{}
		r.windows[windowID] = win
		r.windowOrder = append(r.windowOrder, windowID)
		newWindow = true
	}
	win.order = append(win.order, tabID)
	if !win.active.Valid() {
		win.active = tabID
	}
	if !r.focused.Valid() {
		r.focused = windowID
	}
	for _, ch := range r.waiters[id] {
		ch <- tabID
	}
	delete(r.waiters, id)
	tab, _ = r.snapshotLocked(tabID)
	return tab, newWindow, false
}

// remove forgets a target and repairs the window it lived in.
func (r *registry) remove(id target.ID) (removal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tabID, ok := r.byTarget[id]
	if !ok {
		return removal{}, false
	}
	tab, _ := r.snapshotLocked(tabID)
	out := removal{tab: tab}
	delete(r.byTarget, id)
	delete(r.tabs, tabID)

	win := r.windows[tab.WindowID]
	if win == nil {
		return out, true
	}
	idx := slices.Index(win.order, tabID)
	if idx >= 0 {
		win.order = slices.Delete(win.order, idx, idx+1)
	}
	if len(win.order) == 0 {
		delete(r.windows, tab.WindowID)
		r.windowOrder = slices.DeleteFunc(r.windowOrder, func(w schema.WindowID) bool { return w == tab.WindowID })
		out.windowRemoved = true
		if r.focused == tab.WindowID {
			r.focused = schema.WindowIDNone
			if n := len(r.windowOrder); n > 0 {
				r.focused = r.windowOrder[n-1]
			}
		}
		return out, true
	}
	if win.active == tabID {
		next := min(idx, len(win.order)-1)
		win.active = win.order[next]
		out.activated = win.active
	}
	return out, true
}

func (r *registry) tabID(id target.ID) (schema.TabID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tabID, ok := r.byTarget[id]
	return tabID, ok
}

func (r *registry) targetOf(tabID schema.TabID) (target.ID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tabs[tabID]
	if !ok {
		return "", false
	}
	return rec.target, true
}

// update applies fn to the stored tab and returns the fresh snapshot.
func (r *registry) update(id target.ID, fn func(tab *schema.Tab)) (schema.Tab, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tabID, ok := r.byTarget[id]
	if !ok {
		return schema.Tab{}, false
	}
	fn(&r.tabs[tabID].tab)
	return r.snapshotLocked(tabID)
}

// activate makes tabID the active tab of its window and focuses that window.
func (r *registry) activate(tabID schema.TabID) (activation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tabs[tabID]
	if !ok {
		return activation{}, false
	}
	windowID := rec.tab.WindowID
	out := activation{tabID: tabID, windowID: windowID}
	if win := r.windows[windowID]; win != nil && win.active != tabID {
		win.active = tabID
		out.tabChanged = true
	}
	if r.focused != windowID {
		r.focused = windowID
		out.windowChanged = true
	}
	return out, true
}

// place records the opener of a tab and moves it to index within its window.
func (r *registry) place(tabID, opener schema.TabID, index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tabs[tabID]
	if !ok {
		return
	}
	rec.tab.OpenerTabID = opener
	win := r.windows[rec.tab.WindowID]
	if win == nil {
		return
	}
	idx := slices.Index(win.order, tabID)
	if idx < 0 {
		return
	}
	win.order = slices.Delete(win.order, idx, idx+1)
	index = max(0, min(index, len(win.order)))
	win.order = slices.Insert(win.order, index, tabID)
}

func (r *registry) tab(tabID schema.TabID) (schema.Tab, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(tabID)
}

func (r *registry) focusedWindow() schema.WindowID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.focused
}

// query returns matching tabs ordered by window then index.
func (r *registry) query(q schema.TabQuery) []schema.Tab {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q.CurrentWindow {
		if !r.focused.Valid() {
			return nil
		}
		focused := r.focused
		q.WindowID = &focused
	}
	var out []schema.Tab
	for _, windowID := range r.windowOrder {
		for _, tab := range r.windowTabsLocked(windowID) {
			if q.Matches(tab) {
				out = append(out, tab)
			}
		}
	}
	return out
}

func (r *registry) window(windowID schema.WindowID) (schema.Window, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.windows[windowID]; !ok {
		return schema.Window{}, false
	}
	return schema.Window{
		ID:      windowID,
		Focused: r.focused == windowID,
		Tabs:    r.windowTabsLocked(windowID),
	}, true
}

func (r *registry) allWindows() []schema.Window {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schema.Window, 0, len(r.windowOrder))
	for _, windowID := range r.windowOrder {
		out = append(out, schema.Window{
			ID:      windowID,
			Focused: r.focused == windowID,
			Tabs:    r.windowTabsLocked(windowID),
		})
	}
	return out
}

// wait blocks until target id is registered.
func (r *registry) wait(ctx context.Context, id target.ID) (schema.TabID, error) {
	r.mu.Lock()
	if tabID, ok := r.byTarget[id]; ok {
		r.mu.Unlock()
		return tabID, nil
	}
	ch := make(chan schema.TabID, 1)
	r.waiters[id] = append(r.waiters[id], ch)
	r.mu.Unlock()
	select {
	case tabID := <-ch:
		return tabID, nil
	case <-ctx.Done():
		r.mu.Lock()
		r.waiters[id] = slices.DeleteFunc(r.waiters[id], func(c chan schema.TabID) bool { return c == ch })
		if len(r.waiters[id]) == 0 {
			delete(r.waiters, id)
		}
		r.mu.Unlock()
		return schema.TabIDNone, ctx.Err()
	}
}

func (r *registry) windowTabsLocked(windowID schema.WindowID) []schema.Tab {
	win := r.windows[windowID]
	if win == nil {
		return nil
	}
	out := make([]schema.Tab, 0, len(win.order))
	for _, tabID := range win.order {
		if tab, ok := r.snapshotLocked(tabID); ok {
			out = append(out, tab)
		}
	}
	return out
}

func (r *registry) snapshotLocked(tabID schema.TabID) (schema.Tab, bool) {
	rec, ok := r.tabs[tabID]
	if !ok {
		return schema.Tab{}, false
	}
	tab := rec.tab
	if win := r.windows[tab.WindowID]; win != nil {
		tab.Index = slices.Index(win.order, tabID)
		tab.Active = win.active == tabID
		// Chrome highlights exactly the active tab unless the user multi-selects,
		// which the protocol does not expose.
		tab.Highlighted = tab.Active
	}
	return tab, true
}
