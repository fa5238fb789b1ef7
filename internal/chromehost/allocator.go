package chromehost

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/chromedp/chromedp"
)

// Browser connection modes.
const (
	ModeLaunch = "launch"
	ModeRemote = "remote"
)

// BrowserOptions selects how the host reaches a browser.
type BrowserOptions struct {
	Mode        string
	RemoteURL   string
	ExecPath    string
	UserDataDir string
	Headless    bool
	// Flags are extra command line switches as "name" or "name=value".
	Flags []string
}

// newAllocator returns an allocator context for opts.
func newAllocator(ctx context.Context, opts BrowserOptions) (context.Context, context.CancelFunc, error) {
	switch opts.Mode {
	case ModeRemote:
		if opts.RemoteURL == "" {
			return nil, nil, errors.New("remote browser url is required")
		}
		allocCtx, cancel := chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
		return allocCtx, cancel, nil
	case ModeLaunch, "":
		if opts.UserDataDir != "" {
			if err := os.MkdirAll(opts.UserDataDir, 0o700); err != nil {
				return nil, nil, fmt.Errorf("create profile dir: %w", err)
			}
		}
		allocCtx, cancel := chromedp.NewExecAllocator(ctx, execOptions(opts)...)
		return allocCtx, cancel, nil
	default:
		return nil, nil, fmt.Errorf("unsupported browser mode %q", opts.Mode)
	}
}

func execOptions(opts BrowserOptions) []chromedp.ExecAllocatorOption {
	out := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("exclude-switches", "enable-automation"),
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserDataDir != "" {
		out = append(out, chromedp.UserDataDir(opts.UserDataDir))
	}
	if opts.Headless {
		out = append(out, chromedp.Headless)
	}
	for _, raw := range opts.Flags {
		name, value, ok := parseFlag(raw)
		if !ok {
			continue
		}
		out = append(out, chromedp.Flag(name, value))
	}
	return out
}

// parseFlag splits "--name=value" into its parts. A bare name is a boolean switch.
func parseFlag(raw string) (string, any, bool) {
	raw = strings.TrimLeft(strings.TrimSpace(raw), "-")
	if raw == "" {
		return "", nil, false
	}
	name, value, found := strings.Cut(raw, "=")
	if !found {
		return name, true, true
	}
	switch value {
	case "true":
		return name, true, true
	case "false":
		return name, false, true
	}
	return name, value, true
}
