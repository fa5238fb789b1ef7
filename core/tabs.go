package core

import (
	"strings"

	"pkt.systems/tabnap/schema"
)

var specialPrefixes = []string{
	"chrome:",
	"chrome-extension:",
	"chrome-devtools:",
	"chrome-search:",
	"chrome-untrusted:",
	"devtools:",
	"edge:",
	"about:",
	"view-source:",
	"data:",
	"blob:",
	"file:",
	"https://chrome.google.com/webstore",
	"https://chromewebstore.google.com",
}

// IsSpecialURL reports whether url is a privileged page that cannot host an agent.
func IsSpecialURL(url string) bool {
	url = strings.TrimSpace(url)
	if url == "" {
		return true
	}
	lower := strings.ToLower(url)
	for _, prefix := range specialPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func (c *Coordinator) isSuspendedTab(tab schema.Tab) bool {
	return c.codec.IsSuspendedURL(tab.URL)
}

func (c *Coordinator) isSpecialTab(tab schema.Tab) bool {
	if c.isSuspendedTab(tab) {
		return false
	}
	if c.cfg.InternalBaseURL != "" && strings.HasPrefix(tab.URL, c.cfg.InternalBaseURL) {
		return true
	}
	return IsSpecialURL(tab.URL)
}

func (c *Coordinator) isNormalTab(tab schema.Tab) bool {
	return !c.isSpecialTab(tab) && !c.isSuspendedTab(tab)
}

func (c *Coordinator) isOptionsTab(tab schema.Tab) bool {
	return c.cfg.OptionsURL != "" && tab.URL == c.cfg.OptionsURL
}

// isProtectedActiveTab reports whether the tab is the one the user settled
// on, or is active while active tabs are ignored.
func (c *Coordinator) isProtectedActiveTab(tab schema.Tab) bool {
	return c.focus.IsStationary(tab) || (c.optionBool(schema.OptionIgnoreActiveTabs) && tab.Active)
}

func (c *Coordinator) isProtectedPinnedTab(tab schema.Tab) bool {
	return c.optionBool(schema.OptionIgnorePinned) && tab.Pinned
}

func (c *Coordinator) isProtectedAudibleTab(tab schema.Tab) bool {
	return c.optionBool(schema.OptionIgnoreAudio) && tab.Audible
}

func (c *Coordinator) optionBool(name string) bool {
	return schema.OptionBool(c.settings.Option(name))
}

func (c *Coordinator) optionString(name string) string {
	return schema.OptionString(c.settings.Option(name))
}
