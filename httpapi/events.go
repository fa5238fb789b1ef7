package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pkt.systems/tabnap/internal/eventbus"
	"pkt.systems/tabnap/internal/logx"
	"pkt.systems/tabnap/schema"
)

const wsWriteTimeout = 10 * time.Second

var errMissingEvents = errors.New("event stream unavailable")

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     allowWSOrigin,
}

func allowWSOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return false
	}
	return strings.EqualFold(originURL.Host, r.Host)
}

// streamMessage is one frame on the event stream.
type streamMessage struct {
	Type   string            `json:"type"`
	Status *StatusPayload    `json:"status,omitempty"`
	Icon   *schema.IconEvent `json:"icon,omitempty"`
	Notice *schema.Notice    `json:"notice,omitempty"`
}

type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.conn.WriteJSON(v)
}

// handleEvents streams icon and notice events. The first frame is a status snapshot.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		writeError(w, http.StatusNotImplemented, errMissingEvents)
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	log := logx.Ctx(r.Context()).With("remote", clientIP(r))
	writer := &wsWriter{conn: conn}

	ch, unsubscribe := s.deps.Events.Subscribe()
	defer unsubscribe()

	snapshot := s.statusPayload(r)
	if err := writer.WriteJSON(streamMessage{Type: "status", Status: &snapshot}); err != nil {
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
					log.Warn("http events closed unexpectedly", "err", err)
				}
				return
			}
		}
	}()

	log.Info("http events opened")
	base := s.baseContext()
	for {
		select {
		case <-closed:
			log.Info("http events closed")
			return
		case <-base.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), time.Now().Add(time.Second))
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := writer.WriteJSON(toStreamMessage(ev)); err != nil {
				log.Debug("http events write failed", "err", err)
				return
			}
		}
	}
}

func toStreamMessage(ev eventbus.Event) streamMessage {
	return streamMessage{Type: string(ev.Type), Icon: ev.Icon, Notice: ev.Notice}
}
