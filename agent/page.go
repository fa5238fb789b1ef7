package agent

import (
	"context"

	"pkt.systems/tabnap/schema"
)

// Page is the live document an agent runs in.
type Page interface {
	// ScrollPosition returns the vertical scroll offset as a decimal string.
	ScrollPosition(ctx context.Context) (string, error)
	SetScrollPosition(ctx context.Context, pos string) error
	// ElementCount returns the number of elements in the document.
	ElementCount(ctx context.Context) (int, error)
	// CaptureScreenshot renders the page into an image data url.
	CaptureScreenshot(ctx context.Context, fullPage bool) (string, error)
	// Navigate replaces the current document with url.
	Navigate(ctx context.Context, url string) error
}

// Element is an input control the user typed into.
type Element interface {
	// Attached reports whether the element is still part of the document body.
	Attached(ctx context.Context) bool
	// Value returns the element value or text content.
	Value(ctx context.Context) string
}

// KeyEvent is a key press observed in the page.
type KeyEvent struct {
	KeyCode         int
	TagName         string
	ContentEditable bool
	Target          Element
}

// Reporter delivers agent reports to the coordinator.
type Reporter interface {
	Report(ctx context.Context, report schema.AgentReport) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, report schema.AgentReport) error

// Report calls f.
func (f ReporterFunc) Report(ctx context.Context, report schema.AgentReport) error {
	return f(ctx, report)
}
