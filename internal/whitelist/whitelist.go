// Package whitelist matches urls against the user's never-suspend list.
//
// The list lives in the whitelist option, one entry per line. An entry
// wrapped in slashes is a regular expression, an entry containing glob
// metacharacters is a glob matched against the url with and without its
// scheme, and anything else matches as a substring.
package whitelist

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"pkt.systems/pslog"
	"pkt.systems/tabnap/schema"
)

// Options is the subset of settings the whitelist reads and writes.
type Options interface {
	Option(name string) any
	SetOption(ctx context.Context, name string, value any) error
}

type matcher func(string) bool

type compiled struct {
	raw     string
	entries []string
	match   []matcher
}

// Whitelist implements the coordinator whitelist against settings.
type Whitelist struct {
	opts Options

	mu    sync.Mutex
	cache compiled
}

// New returns a whitelist backed by opts.
func New(opts Options) *Whitelist {
	return &Whitelist{opts: opts}
}

// Entries returns the current entries.
func (w *Whitelist) Entries() []string {
	return append([]string(nil), w.current().entries...)
}

// Match reports whether any entry matches url.
func (w *Whitelist) Match(rawURL string) bool {
	if strings.TrimSpace(rawURL) == "" {
		return false
	}
	for _, m := range w.current().match {
		if m(rawURL) {
			return true
		}
	}
	return false
}

// SaveRootURL appends the host of url to the list unless already present.
func (w *Whitelist) SaveRootURL(ctx context.Context, rawURL string) error {
	root := RootURL(rawURL)
	if root == "" {
		return nil
	}
	entries := w.current().entries
	for _, entry := range entries {
		if entry == root {
			return nil
		}
	}
	entries = append(append([]string(nil), entries...), root)
	pslog.Ctx(ctx).Info("whitelist entry added", "entry", root)
	return w.opts.SetOption(ctx, schema.OptionWhitelist, strings.Join(entries, "\n"))
}

// Remove drops every entry that matches url.
func (w *Whitelist) Remove(ctx context.Context, rawURL string) error {
	current := w.current()
	kept := make([]string, 0, len(current.entries))
	removed := 0
	for i, entry := range current.entries {
		if current.match[i](rawURL) {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	if removed == 0 {
		return nil
	}
	pslog.Ctx(ctx).Info("whitelist entries removed", "count", removed)
	return w.opts.SetOption(ctx, schema.OptionWhitelist, strings.Join(kept, "\n"))
}

// RootURL returns the host part of url, or the trimmed input when it has none.
func RootURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

func (w *Whitelist) current() compiled {
	raw := schema.OptionString(w.opts.Option(schema.OptionWhitelist))
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cache.raw == raw && (raw == "" || w.cache.match != nil) {
		return w.cache
	}
	w.cache = compile(raw)
	return w.cache
}

func compile(raw string) compiled {
	out := compiled{raw: raw}
	for _, line := range strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == '\r' }) {
		entry := strings.TrimSpace(line)
		if entry == "" {
			continue
		}
		out.entries = append(out.entries, entry)
		out.match = append(out.match, compileEntry(entry))
	}
	if out.match == nil {
		out.match = []matcher{}
	}
	return out
}

func compileEntry(entry string) matcher {
	if len(entry) > 2 && strings.HasPrefix(entry, "/") && strings.HasSuffix(entry, "/") {
		if re, err := regexp.Compile(entry[1 : len(entry)-1]); err == nil {
			return re.MatchString
		}
	}
	if strings.ContainsAny(entry, "*?[{") {
		if g, err := glob.Compile(entry); err == nil {
			return func(u string) bool {
				return g.Match(u) || g.Match(stripScheme(u))
			}
		}
	}
	return func(u string) bool {
		return strings.Contains(u, entry)
	}
}

func stripScheme(u string) string {
	if idx := strings.Index(u, "://"); idx >= 0 {
		return u[idx+3:]
	}
	return u
}
