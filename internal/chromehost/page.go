package chromehost

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"pkt.systems/tabnap/agent"
)

// previewQuality is the jpeg quality of full page previews.
const previewQuality = 80

// cdpPage drives one tab through its chromedp context.
type cdpPage struct {
	ctx context.Context
}

var _ agent.Page = (*cdpPage)(nil)

// run executes actions on the tab, bounded by ctx as well as the tab lifetime.
func (p *cdpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if ctx != nil {
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
	}
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *cdpPage) ScrollPosition(ctx context.Context) (string, error) {
	var pos float64
	if err := p.run(ctx, chromedp.Evaluate(`window.scrollY`, &pos)); err != nil {
		return "", err
	}
	return strconv.FormatFloat(pos, 'f', -1, 64), nil
}

func (p *cdpPage) SetScrollPosition(ctx context.Context, pos string) error {
	y, err := strconv.ParseFloat(pos, 64)
	if err != nil {
		return fmt.Errorf("parse scroll position %q: %w", pos, err)
	}
	expr := fmt.Sprintf(`window.scrollTo(0, %s)`, strconv.FormatFloat(y, 'f', -1, 64))
	return p.run(ctx, chromedp.Evaluate(expr, nil))
}

func (p *cdpPage) ElementCount(ctx context.Context) (int, error) {
	var count int
	if err := p.run(ctx, chromedp.Evaluate(`document.getElementsByTagName('*').length`, &count)); err != nil {
		return 0, err
	}
	return count, nil
}

func (p *cdpPage) CaptureScreenshot(ctx context.Context, fullPage bool) (string, error) {
	var buf []byte
	mime := "image/png"
	action := chromedp.CaptureScreenshot(&buf)
	if fullPage {
		mime = "image/jpeg"
		action = chromedp.FullScreenshot(&buf, previewQuality)
	}
	if err := p.run(ctx, action); err != nil {
		return "", err
	}
	if len(buf) == 0 {
		return "", nil
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(buf), nil
}

// Navigate starts the navigation without waiting for the load event.
func (p *cdpPage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errText, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errText != "" {
			return fmt.Errorf("navigate %s: %s", url, errText)
		}
		return nil
	}))
}

func (p *cdpPage) element(marker string) agent.Element {
	if marker == "" {
		return nil
	}
	return &cdpElement{page: p, marker: marker}
}

// cdpElement finds a control again through the marker attribute set by pageScript.
type cdpElement struct {
	page   *cdpPage
	marker string
}

func (e *cdpElement) selector() string {
	sel, _ := json.Marshal(fmt.Sprintf(`[%s=%q]`, editedAttr, e.marker))
	return `document.querySelector(` + string(sel) + `)`
}

func (e *cdpElement) Attached(ctx context.Context) bool {
	var attached bool
	expr := `(() => { const el = ` + e.selector() + `; return !!el && document.body.contains(el); })()`
	if err := e.page.run(ctx, chromedp.Evaluate(expr, &attached)); err != nil {
		return false
	}
	return attached
}

func (e *cdpElement) Value(ctx context.Context) string {
	var value string
	expr := `(() => { const el = ` + e.selector() + `; if (!el) { return ''; } return el.value !== undefined ? String(el.value) : (el.textContent || ''); })()`
	if err := e.page.run(ctx, chromedp.Evaluate(expr, &value)); err != nil {
		return ""
	}
	return value
}
