package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pkt.systems/tabnap/internal/logx"
	"pkt.systems/tabnap/schema"
)

// Placeholder answers coordinator messages for a suspended tab.
type Placeholder struct {
	tabID    schema.TabID
	selfURL  string
	page     Page
	reporter Reporter

	mu             sync.Mutex
	payload        *schema.SuspendedTabPayload
	noConnectivity bool
}

// NewPlaceholder constructs a Placeholder for the suspended page at selfURL.
func NewPlaceholder(tabID schema.TabID, selfURL string, page Page, reporter Reporter) (*Placeholder, error) {
	if page == nil {
		return nil, errors.New("placeholder page is required")
	}
	if reporter == nil {
		return nil, errors.New("placeholder reporter is required")
	}
	return &Placeholder{tabID: tabID, selfURL: selfURL, page: page, reporter: reporter}, nil
}

// TabID returns the suspended tab.
func (p *Placeholder) TabID() schema.TabID {
	return p.tabID
}

// Payload returns the display payload received from the coordinator.
func (p *Placeholder) Payload() (schema.SuspendedTabPayload, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.payload == nil {
		return schema.SuspendedTabPayload{}, false
	}
	return *p.payload, true
}

// NoConnectivity reports whether the offline notice is showing.
func (p *Placeholder) NoConnectivity() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.noConnectivity
}

// Handle processes one coordinator message.
func (p *Placeholder) Handle(ctx context.Context, msg schema.AgentMessage) (schema.TabInfo, error) {
	log := logx.WithTab(ctx, p.tabID)
	log.Trace("placeholder message", "action", msg.Action)
	info := schema.TabInfo{Status: schema.StatusSuspended}
	switch msg.Action {
	case schema.ActionRequestInfo:
	case schema.ActionInitSuspendedTab:
		if msg.Payload == nil {
			return info, errors.New("placeholder payload is required")
		}
		payload := *msg.Payload
		p.mu.Lock()
		p.payload = &payload
		p.mu.Unlock()
		if payload.RequestUnsuspendOnReload {
			p.report(ctx, p.selfURL)
		}
	case schema.ActionUnsuspend:
		target := p.originalURL()
		if target == "" {
			return info, schema.ErrNotSuspended
		}
		if err := p.page.Navigate(ctx, target); err != nil {
			return info, fmt.Errorf("navigate to original url: %w", err)
		}
		log.Debug("placeholder unsuspended")
	case schema.ActionDisableUnsuspendOnReload:
		p.report(ctx, "")
	case schema.ActionNoConnectivity:
		p.mu.Lock()
		p.noConnectivity = true
		p.mu.Unlock()
	case schema.ActionRefreshHotkey:
		p.mu.Lock()
		if p.payload != nil {
			p.payload.Command = msg.Command
		}
		p.mu.Unlock()
	default:
		return info, fmt.Errorf("%w: %s", schema.ErrUnknownCommand, msg.Action)
	}
	return info, nil
}

func (p *Placeholder) originalURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.payload == nil {
		return ""
	}
	return p.payload.URL
}

// report sets or clears the unsuspend-on-reload url held by the coordinator.
func (p *Placeholder) report(ctx context.Context, url string) {
	err := p.reporter.Report(ctx, schema.AgentReport{Action: schema.ReportUnsuspendOnReload, TabID: p.tabID, URL: url})
	if err != nil {
		logx.WithTab(ctx, p.tabID).Debug("placeholder reload report failed", "err", err)
	}
}
