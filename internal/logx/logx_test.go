package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/pslog"
	"pkt.systems/tabnap/schema"
)

func newCaptureLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

func TestWithTabAddsField(t *testing.T) {
	capture := &logCapture{}
	ctx := pslog.ContextWithLogger(context.Background(), newCaptureLogger(capture))
	WithTab(ctx, 7).Info("hello")

	entry := capture.firstEntry(t)
	if entry["tab"] != float64(7) {
		t.Fatalf("expected tab field, got %+v", entry)
	}
}

func TestWithTabSkipsInvalidID(t *testing.T) {
	capture := &logCapture{}
	ctx := pslog.ContextWithLogger(context.Background(), newCaptureLogger(capture))
	WithTab(ctx, schema.TabIDNone).Info("hello")

	entry := capture.firstEntry(t)
	if _, ok := entry["tab"]; ok {
		t.Fatalf("did not expect tab field, got %+v", entry)
	}
}

func TestContextWithTabDoesNotRepeatField(t *testing.T) {
	capture := &logCapture{}
	ctx := pslog.ContextWithLogger(context.Background(), newCaptureLogger(capture))
	ctx = ContextWithTab(ctx, 3)
	WithTab(ctx, 3).Info("hello")

	line := capture.buf.String()
	if got := bytes.Count([]byte(line), []byte(`"tab"`)); got != 1 {
		t.Fatalf("expected one tab field, got %d in %s", got, line)
	}
}

func TestWithWindowIgnoresSentinel(t *testing.T) {
	capture := &logCapture{}
	log := WithWindow(newCaptureLogger(capture), schema.WindowIDNone)
	log.Info("hello")

	entry := capture.firstEntry(t)
	if _, ok := entry["window"]; ok {
		t.Fatalf("did not expect window field, got %+v", entry)
	}
}

func TestCopyContextFieldsCarriesTab(t *testing.T) {
	src := ContextWithTab(context.Background(), 9)
	dst := CopyContextFields(context.Background(), src)
	if got, _ := dst.Value(tabKey).(schema.TabID); got != 9 {
		t.Fatalf("expected tab marker 9, got %v", got)
	}
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
