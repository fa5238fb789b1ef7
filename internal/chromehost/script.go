package chromehost

import (
	"encoding/json"
	"fmt"
)

const (
	bindingName = "tabnapEvent"
	// editedAttr tags controls the user typed into so agents can read them back.
	editedAttr = "data-tabnap-edited"
)

// pageScript reports key presses, media playback and focus through the binding.
var pageScript = fmt.Sprintf(`(() => {
  if (window.__tabnap) { return; }
  window.__tabnap = true;
  const send = (ev) => { try { window[%[1]q](JSON.stringify(ev)); } catch (e) {} };
  let seq = 0;
  document.addEventListener('keydown', (e) => {
    const t = e.target;
    if (!t || !t.tagName) { return; }
    let marker = t.getAttribute && t.getAttribute(%[2]q);
    if (!marker && t.setAttribute) { marker = String(++seq); t.setAttribute(%[2]q, marker); }
    send({type: 'key', keyCode: e.keyCode, tag: t.tagName, editable: !!t.isContentEditable, marker: marker || ''});
  }, true);
  const media = () => {
    const playing = Array.from(document.querySelectorAll('audio,video')).some((m) => !m.paused && !m.muted && m.volume > 0);
    send({type: 'media', playing: playing});
  };
  ['play', 'pause', 'ended', 'volumechange'].forEach((name) => document.addEventListener(name, media, true));
  const focus = () => send({type: 'focus', visible: document.visibilityState === 'visible' && document.hasFocus()});
  document.addEventListener('visibilitychange', focus);
  window.addEventListener('focus', focus);
  if (document.visibilityState === 'visible' && document.hasFocus()) { focus(); }
})();`, bindingName, editedAttr)

// pageEvent is one binding call from pageScript.
type pageEvent struct {
	Type     string `json:"type"`
	KeyCode  int    `json:"keyCode"`
	Tag      string `json:"tag"`
	Editable bool   `json:"editable"`
	Marker   string `json:"marker"`
	Playing  bool   `json:"playing"`
	Visible  bool   `json:"visible"`
}

func parsePageEvent(payload string) (pageEvent, error) {
	var ev pageEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return pageEvent{}, fmt.Errorf("decode page event: %w", err)
	}
	return ev, nil
}
