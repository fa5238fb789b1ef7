package schema

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Notice is an externally published announcement shown once per version.
type Notice struct {
	Active  bool   `json:"active"`
	Version string `json:"version"`
	Target  string `json:"target"`
	Text    string `json:"text"`
	Title   string `json:"title,omitempty"`
}

// UnmarshalJSON accepts numeric or string versions.
func (n *Notice) UnmarshalJSON(data []byte) error {
	var raw struct {
		Active  bool            `json:"active"`
		Version json.RawMessage `json:"version"`
		Target  string          `json:"target"`
		Text    string          `json:"text"`
		Title   string          `json:"title"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	version := string(bytes.TrimSpace(raw.Version))
	if unquoted, err := strconv.Unquote(version); err == nil {
		version = unquoted
	} else if version == "null" {
		version = ""
	}
	n.Active = raw.Active
	n.Version = version
	n.Target = raw.Target
	n.Text = raw.Text
	n.Title = raw.Title
	return nil
}

// NewerThan reports whether the notice version is greater than last.
// Numeric versions compare numerically, anything else lexically.
func (n Notice) NewerThan(last string) bool {
	cur, curErr := strconv.ParseFloat(n.Version, 64)
	prev, prevErr := strconv.ParseFloat(last, 64)
	if curErr == nil && prevErr == nil {
		return cur > prev
	}
	return n.Version > last
}
