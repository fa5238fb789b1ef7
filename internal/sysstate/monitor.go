// Package sysstate polls power and connectivity state for the coordinator.
package sysstate

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pkt.systems/pslog"
)

// Listener receives state changes.
type Listener interface {
	SetCharging(ctx context.Context, charging bool)
	SetOnline(ctx context.Context, online bool)
}

// Options configures a Monitor.
type Options struct {
	// PowerSupplyDir is the sysfs power supply class directory.
	PowerSupplyDir string
	// ConnectivityURL is probed with HEAD when set; otherwise any
	// non-loopback interface that is up with an address counts as online.
	ConnectivityURL string
	Interval        time.Duration
	Client          *http.Client
	// Interfaces overrides interface discovery.
	Interfaces func() ([]net.Interface, error)
}

// Monitor polls system state.
type Monitor struct {
	listener Listener
	opts     Options
}

// New constructs a Monitor.
func New(listener Listener, opts Options) (*Monitor, error) {
	if listener == nil {
		return nil, errors.New("sysstate listener is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 5 * time.Second}
	}
	if opts.Interfaces == nil {
		opts.Interfaces = net.Interfaces
	}
	return &Monitor{listener: listener, opts: opts}, nil
}

// Run polls until ctx is done. The first poll happens immediately.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()
	for {
		m.Poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll reads state once and forwards it to the listener.
func (m *Monitor) Poll(ctx context.Context) {
	log := pslog.Ctx(ctx)
	if m.opts.PowerSupplyDir != "" {
		charging, err := Charging(m.opts.PowerSupplyDir)
		if err != nil {
			log.Trace("sysstate power read failed", "err", err)
		} else {
			m.listener.SetCharging(ctx, charging)
		}
	}
	m.listener.SetOnline(ctx, m.online(ctx))
}

func (m *Monitor) online(ctx context.Context) bool {
	if m.opts.ConnectivityURL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.opts.ConnectivityURL, nil)
		if err != nil {
			return false
		}
		resp, err := m.opts.Client.Do(req)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode < http.StatusInternalServerError
	}
	ifaces, err := m.opts.Interfaces()
	if err != nil {
		return true
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}

// Charging reports whether any mains adapter is online or any battery is
// charging or full. A directory without power supplies reports true.
func Charging(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	sawBattery := false
	for _, entry := range entries {
		supply := filepath.Join(dir, entry.Name())
		switch readValue(filepath.Join(supply, "type")) {
		case "Mains", "USB":
			if readValue(filepath.Join(supply, "online")) == "1" {
				return true, nil
			}
		case "Battery":
			sawBattery = true
			switch readValue(filepath.Join(supply, "status")) {
			case "Charging", "Full":
				return true, nil
			}
		}
	}
	return !sawBattery, nil
}

func readValue(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
