package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"pkt.systems/tabnap/internal/eventbus"
	"pkt.systems/tabnap/internal/logx"
	"pkt.systems/tabnap/internal/suspendqueue"
	"pkt.systems/tabnap/internal/version"
	"pkt.systems/tabnap/schema"
)

// Coordinator is the operation surface served over HTTP.
type Coordinator interface {
	ExecuteCommand(ctx context.Context, name schema.CommandName) error
	ActiveTabStatus(ctx context.Context) schema.Status
	ActiveWindowID() schema.WindowID
	DebugInfo(ctx context.Context, tabID schema.TabID) schema.DebugInfo
	RequestNotice() (schema.Notice, bool)
	ClearNotice(ctx context.Context)
	HotkeyLabel(ctx context.Context) string
}

// Host exposes the tab layout and host-only tab flags.
type Host interface {
	Windows(ctx context.Context) ([]schema.Window, error)
	SetPinned(ctx context.Context, id schema.TabID, pinned bool) error
}

// Settings reads and updates user options.
type Settings interface {
	Snapshot() schema.Settings
	Update(ctx context.Context, values schema.Settings) error
}

// Previews looks up stored preview images by original url.
type Previews interface {
	Preview(ctx context.Context, url string) (string, bool, error)
}

// QueueStats reports suspend queue occupancy.
type QueueStats interface {
	Stats() suspendqueue.Stats
}

// Events streams UI events.
type Events interface {
	Subscribe() (<-chan eventbus.Event, func())
}

// Deps captures the collaborators of the server. Coordinator is required.
type Deps struct {
	Coordinator Coordinator
	Host        Host
	Settings    Settings
	Previews    Previews
	Queue       QueueStats
	Events      Events
}

// StatusPayload summarizes the running coordinator.
type StatusPayload struct {
	Status        schema.Status      `json:"status"`
	Icon          schema.IconState   `json:"icon"`
	WindowID      schema.WindowID    `json:"windowId"`
	Hotkey        string             `json:"hotkey"`
	NoticePending bool               `json:"noticePending"`
	Queue         suspendqueue.Stats `json:"queue"`
	Version       string             `json:"version"`
}

// Server serves the HTTP API and the suspended placeholder page.
type Server struct {
	cfg      Config
	deps     Deps
	basePath string
	baseHref string

	mu      sync.Mutex
	baseCtx context.Context
}

// NewServer constructs an HTTP server.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Coordinator == nil {
		return nil, errors.New("http coordinator is required")
	}
	return &Server{
		cfg:      cfg,
		deps:     deps,
		basePath: basePathFromURL(cfg.BaseURL),
		baseHref: buildBaseHref(cfg.BaseURL),
		baseCtx:  context.Background(),
	}, nil
}

// SetBaseContext sets the parent context for event streams.
func (s *Server) SetBaseContext(ctx context.Context) {
	if s == nil || ctx == nil {
		return
	}
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()
}

func (s *Server) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /suspended.html", s.handleSuspended)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/windows", s.handleWindows)
	mux.HandleFunc("GET /api/tabs/{id}/debug", s.handleDebug)
	mux.HandleFunc("PUT /api/tabs/{id}/pinned", s.handlePinned)
	mux.HandleFunc("GET /api/commands", s.handleCommandList)
	mux.HandleFunc("POST /api/commands/{name}", s.handleCommand)
	mux.HandleFunc("GET /api/notice", s.handleNotice)
	mux.HandleFunc("DELETE /api/notice", s.handleNoticeClear)
	mux.HandleFunc("GET /api/settings", s.handleSettings)
	mux.HandleFunc("PUT /api/settings", s.handleSettingsUpdate)
	mux.HandleFunc("GET /api/preview", s.handlePreview)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	handler := withRequestLogging(mux)
	if s.basePath == "" {
		return handler
	}
	prefix := s.basePath
	root := http.NewServeMux()
	root.Handle(prefix+"/", http.StripPrefix(prefix, handler))
	return root
}

const baseHrefPlaceholder = "<!-- BASE_HREF -->"

func applyBaseHref(data []byte, baseHref string) []byte {
	replacement := ""
	if strings.TrimSpace(baseHref) != "" {
		replacement = fmt.Sprintf(`<base href="%s" />`, html.EscapeString(baseHref))
	}
	return bytes.ReplaceAll(data, []byte(baseHrefPlaceholder), []byte(replacement))
}

func (s *Server) handleSuspended(w http.ResponseWriter, r *http.Request) {
	data := applyBaseHref(suspendedPage, s.baseHref)
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "suspended.html", pageModTime, bytes.NewReader(data))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.statusPayload(r))
}

func (s *Server) statusPayload(r *http.Request) StatusPayload {
	ctx := r.Context()
	coord := s.deps.Coordinator
	status := coord.ActiveTabStatus(ctx)
	_, pending := coord.RequestNotice()
	payload := StatusPayload{
		Status:        status,
		Icon:          status.Icon(),
		WindowID:      coord.ActiveWindowID(),
		Hotkey:        coord.HotkeyLabel(ctx),
		NoticePending: pending,
		Version:       version.Current(),
	}
	if s.deps.Queue != nil {
		payload.Queue = s.deps.Queue.Stats()
	}
	return payload
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	if s.deps.Host == nil {
		writeError(w, http.StatusNotImplemented, errors.New("host unavailable"))
		return
	}
	windows, err := s.deps.Host.Windows(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"windows": windows})
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	tabID, ok := parseTabID(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusBadRequest, errors.New("invalid tab id"))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Coordinator.DebugInfo(r.Context(), tabID))
}

func (s *Server) handlePinned(w http.ResponseWriter, r *http.Request) {
	if s.deps.Host == nil {
		writeError(w, http.StatusNotImplemented, errors.New("host unavailable"))
		return
	}
	tabID, ok := parseTabID(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusBadRequest, errors.New("invalid tab id"))
		return
	}
	var payload struct {
		Pinned bool `json:"pinned"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.deps.Host.SetPinned(r.Context(), tabID, payload.Pinned); err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCommandList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"commands": schema.Commands})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := schema.CommandName(r.PathValue("name"))
	log := logx.Ctx(r.Context()).With("command", name)
	if err := s.deps.Coordinator.ExecuteCommand(r.Context(), name); err != nil {
		log.Warn("http command failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	log.Info("http command ok")
	writeJSON(w, http.StatusOK, map[string]any{"command": name})
}

func (s *Server) handleNotice(w http.ResponseWriter, _ *http.Request) {
	notice, ok := s.deps.Coordinator.RequestNotice()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, notice)
}

func (s *Server) handleNoticeClear(w http.ResponseWriter, r *http.Request) {
	s.deps.Coordinator.ClearNotice(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSettings(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Settings == nil {
		writeError(w, http.StatusNotImplemented, errors.New("settings unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Settings.Snapshot())
}

func (s *Server) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		writeError(w, http.StatusNotImplemented, errors.New("settings unavailable"))
		return
	}
	values := schema.Settings{}
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.deps.Settings.Update(r.Context(), values); err != nil {
		logx.Ctx(r.Context()).Warn("http settings update failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Settings.Snapshot())
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.deps.Previews == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	target := r.URL.Query().Get("url")
	if target == "" {
		writeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}
	preview, ok, err := s.deps.Previews.Preview(r.Context(), target)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": target, "preview": preview})
}

func parseTabID(value string) (schema.TabID, bool) {
	id, err := strconv.Atoi(value)
	if err != nil || !schema.TabID(id).Valid() {
		return schema.TabIDNone, false
	}
	return schema.TabID(id), true
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, schema.ErrUnknownCommand), errors.Is(err, schema.ErrTabNotFound), errors.Is(err, schema.ErrWindowNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrNoActiveTab):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
