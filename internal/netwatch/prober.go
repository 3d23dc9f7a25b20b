// Package netwatch detects connectivity to the remote model endpoint.
package netwatch

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	DefaultInterval = 15 * time.Second
	probeTimeout    = 5 * time.Second
)

// Listener is called after the prober observes an offline to online change.
type Listener func(ctx context.Context)

// Prober polls a URL. Any HTTP response counts as online; only transport
// errors count as offline.
type Prober struct {
	url      string
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger

	mu        sync.RWMutex
	online    bool
	lastCheck time.Time
	listeners []Listener
}

// NewProber creates a prober. It assumes online until the first failed probe.
func NewProber(url string, interval time.Duration, client *http.Client, logger *slog.Logger) *Prober {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if client == nil {
		client = &http.Client{Timeout: probeTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		url:      url,
		interval: interval,
		client:   client,
		logger:   logger.With("component", "netwatch.Prober"),
		online:   true,
	}
}

// OnReconnect registers fn for offline to online transitions.
func (p *Prober) OnReconnect(fn Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Online reports the last observed state and when it was checked.
func (p *Prober) Online() (bool, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online, p.lastCheck
}

// Run probes until ctx is done.
func (p *Prober) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	p.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			p.Check(ctx)
		}
	}
}

// Check runs one probe, records the result and fires listeners on reconnect.
func (p *Prober) Check(ctx context.Context) bool {
	online := p.probe(ctx)
	if ctx.Err() != nil {
		return online
	}

	p.mu.Lock()
	wasOnline := p.online
	p.online = online
	p.lastCheck = time.Now()
	listeners := append([]Listener(nil), p.listeners...)
	p.mu.Unlock()

	switch {
	case wasOnline && !online:
		p.logger.Warn("connectivity lost", "url", p.url)
	case !wasOnline && online:
		p.logger.Info("connectivity restored", "url", p.url, "listeners", len(listeners))
		for _, fn := range listeners {
			fn(ctx)
		}
	}
	return online
}

func (p *Prober) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		p.logger.Error("invalid probe url", "url", p.url, "error", err)
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("probe failed", "error", err)
		return false
	}
	resp.Body.Close()
	return true
}
