// Package suspendurl encodes the placeholder url a suspended tab shows.
//
// The form is <base>/suspended.html#ttl=<title>&pos=<scroll>&uri=<url>.
// The original url comes last and unescaped so it may contain '&' and '#'.
package suspendurl

import (
	"net/url"
	"strings"
)

// PagePath is the placeholder page served by the http api.
const PagePath = "/suspended.html"

// Codec implements the coordinator url codec for one base url.
type Codec struct {
	prefix string
}

// New returns a codec for placeholders served under baseURL.
func New(baseURL string) *Codec {
	return &Codec{prefix: strings.TrimRight(baseURL, "/") + PagePath + "#"}
}

// Prefix returns the fixed start of every placeholder url.
func (c *Codec) Prefix() string {
	return c.prefix
}

// IsSuspendedURL reports whether u is a placeholder url.
func (c *Codec) IsSuspendedURL(u string) bool {
	return strings.HasPrefix(u, c.prefix)
}

// Encode builds the placeholder url for the original url.
func (c *Codec) Encode(original, title, scrollPos string) string {
	if scrollPos == "" {
		scrollPos = "0"
	}
	var b strings.Builder
	b.WriteString(c.prefix)
	b.WriteString("ttl=")
	b.WriteString(url.QueryEscape(title))
	b.WriteString("&pos=")
	b.WriteString(url.QueryEscape(scrollPos))
	b.WriteString("&uri=")
	b.WriteString(original)
	return b.String()
}

// OriginalURL returns the url a placeholder stands for, or "" for other urls.
func (c *Codec) OriginalURL(u string) string {
	_, _, original, ok := c.parse(u)
	if !ok {
		return ""
	}
	return original
}

// ScrollPosition returns the saved scroll offset of a placeholder url.
func (c *Codec) ScrollPosition(u string) string {
	_, pos, _, _ := c.parse(u)
	return pos
}

// Title returns the saved title of a placeholder url.
func (c *Codec) Title(u string) string {
	title, _, _, _ := c.parse(u)
	return title
}

func (c *Codec) parse(u string) (title, pos, original string, ok bool) {
	if !c.IsSuspendedURL(u) {
		return "", "", "", false
	}
	return Parse(strings.TrimPrefix(u, c.prefix))
}

// Parse decodes a placeholder fragment.
func Parse(fragment string) (title, pos, original string, ok bool) {
	var head string
	if rest, found := strings.CutPrefix(fragment, "uri="); found {
		original = rest
	} else if head, original, found = strings.Cut(fragment, "&uri="); !found {
		return "", "", "", false
	}
	for _, part := range strings.Split(head, "&") {
		key, value, _ := strings.Cut(part, "=")
		decoded, err := url.QueryUnescape(value)
		if err != nil {
			decoded = value
		}
		switch key {
		case "ttl":
			title = decoded
		case "pos":
			pos = decoded
		}
	}
	return title, pos, original, true
}
