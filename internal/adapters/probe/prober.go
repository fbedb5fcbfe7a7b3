// Package probe checks proxy liveness by fetching public IP-echo
// endpoints through the proxy under test.
package probe

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/arven-dev/botfleet/internal/adapters/msa"
	"github.com/arven-dev/botfleet/internal/domain"
	"github.com/arven-dev/botfleet/internal/ports"
)

const DefaultTimeout = 15 * time.Second

// DefaultEndpoints are independent echo services; a probe passes as soon
// as any one of them answers, so a single flaky endpoint cannot condemn a
// healthy proxy.
func DefaultEndpoints() []string {
	return []string{
		"https://api.ipify.org",
		"https://checkip.amazonaws.com",
		"https://ip.seeip.org",
	}
}

type Prober struct {
	endpoints []string
	timeout   time.Duration
	clientFor func(domain.Proxy) *http.Client
}

var _ ports.ProxyProber = (*Prober)(nil)

func NewProber(endpoints []string, timeout time.Duration) *Prober {
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Prober{
		endpoints: endpoints,
		timeout:   timeout,
		clientFor: func(proxy domain.Proxy) *http.Client {
			return msa.ProxyHTTPClient(proxy, 0)
		},
	}
}

// NewProberWithClient substitutes the transport factory; tests use it to
// probe without a real SOCKS proxy.
func NewProberWithClient(endpoints []string, timeout time.Duration, clientFor func(domain.Proxy) *http.Client) *Prober {
	prober := NewProber(endpoints, timeout)
	if clientFor != nil {
		prober.clientFor = clientFor
	}
	return prober
}

// Probe races every endpoint through the proxy with one shared deadline.
// First success wins; the probe fails only when every arm fails or times
// out.
func (p *Prober) Probe(ctx context.Context, proxy domain.Proxy) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	client := p.clientFor(proxy)
	results := make(chan bool, len(p.endpoints))

	for _, endpoint := range p.endpoints {
		go func(endpoint string) {
			results <- p.fetch(ctx, client, endpoint)
		}(endpoint)
	}

	for range p.endpoints {
		select {
		case ok := <-results:
			if ok {
				cancel()
				return true
			}
		case <-ctx.Done():
			return false
		}
	}

	return false
}

func (p *Prober) fetch(ctx context.Context, client *http.Client, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))

	return resp.StatusCode == http.StatusOK
}
