// Package notice polls the published notice document and offers new
// notices to the coordinator.
package notice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabnap/schema"
)

const maxBodyBytes = 64 << 10

// Offerer accepts a fetched notice and reports whether it is now pending.
type Offerer interface {
	OfferNotice(ctx context.Context, notice schema.Notice) bool
}

// Options configures a Checker.
type Options struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
	Client   *http.Client
	// OnPending is called with notices the coordinator accepted.
	OnPending func(schema.Notice)
}

// Checker fetches the notice document on an interval.
type Checker struct {
	url       string
	interval  time.Duration
	timeout   time.Duration
	client    *http.Client
	offerer   Offerer
	onPending func(schema.Notice)
}

// New constructs a Checker.
func New(offerer Offerer, opts Options) (*Checker, error) {
	if offerer == nil {
		return nil, errors.New("notice offerer is required")
	}
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("notice url is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = 12 * time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 4 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Checker{
		url:       opts.URL,
		interval:  opts.Interval,
		timeout:   opts.Timeout,
		client:    client,
		offerer:   offerer,
		onPending: opts.OnPending,
	}, nil
}

// Run checks immediately and then on every interval until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	log := pslog.Ctx(ctx).With("notice_url", c.url)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		if _, err := c.Check(ctx); err != nil && ctx.Err() == nil {
			log.Warn("notice check failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Check fetches the notice once and reports whether it became pending.
func (c *Checker) Check(ctx context.Context) (bool, error) {
	notice, err := c.fetch(ctx)
	if err != nil {
		return false, err
	}
	if !c.offerer.OfferNotice(ctx, notice) {
		return false, nil
	}
	if c.onPending != nil {
		c.onPending(notice)
	}
	return true, nil
}

func (c *Checker) fetch(ctx context.Context) (schema.Notice, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return schema.Notice{}, err
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return schema.Notice{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return schema.Notice{}, fmt.Errorf("notice fetch: unexpected status %s", resp.Status)
	}
	var notice schema.Notice
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&notice); err != nil {
		return schema.Notice{}, fmt.Errorf("notice decode: %w", err)
	}
	return notice, nil
}
