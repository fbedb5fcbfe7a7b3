package application

import (
	"context"
	"math/rand"
	"sync"

	"github.com/arven-dev/botfleet/internal/domain"
	"github.com/arven-dev/botfleet/internal/ports"
)

// ProxyService manages the shared proxy pool: random selection with eager
// eviction on the hot connect path, and a separate audit flow that never
// evicts on its own so the operator can inspect results first.
type ProxyService struct {
	list   ports.ProxyList
	prober ports.ProxyProber
	status ports.StatusSink
}

var _ ports.ProxyLeaser = (*ProxyService)(nil)

func NewProxyService(list ports.ProxyList, prober ports.ProxyProber, status ports.StatusSink) *ProxyService {
	if status == nil {
		status = ports.NopStatus{}
	}

	return &ProxyService{list: list, prober: prober, status: status}
}

// Select leases a random live proxy. Candidates that fail to parse or fail
// the liveness probe are evicted from the pool and the draw repeats over
// the shrinking remainder. An exhausted pool returns (nil, nil): "no
// usable proxy" and "empty pool" are indistinguishable by design, both
// meaning nothing to offer right now.
func (s *ProxyService) Select(ctx context.Context) (*domain.Proxy, error) {
	candidates, err := s.list.Load(ctx)
	if err != nil {
		return nil, err
	}

	for len(candidates) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		i := rand.Intn(len(candidates))
		raw := candidates[i]
		candidates = append(candidates[:i], candidates[i+1:]...)

		proxy, err := domain.ParseProxy(raw)
		if err != nil {
			s.status.Warnf("invalid proxy format, removing: %s", raw)
			if err := s.list.Evict(ctx, raw); err != nil {
				return nil, err
			}
			continue
		}

		if !s.prober.Probe(ctx, proxy) {
			s.status.Warnf("dead proxy, removing: %s", raw)
			if err := s.list.Evict(ctx, raw); err != nil {
				return nil, err
			}
			continue
		}

		return &proxy, nil
	}

	return nil, nil
}

// Evict removes a proxy from the persisted list. Idempotent.
func (s *ProxyService) Evict(ctx context.Context, raw string) error {
	return s.list.Evict(ctx, raw)
}

// AuditResult partitions the pool after a bulk validation pass.
type AuditResult struct {
	Working []string
	Failed  []string
}

// Audit validates every proxy concurrently without evicting anything.
// Eviction is an explicit separate step: the audit flow is operator-driven
// and must not silently shrink the pool, unlike Select, which must make
// forward progress unattended. When report is non-nil it receives one
// verdict per proxy as each probe finishes, in completion order; it may be
// called from multiple goroutines.
func (s *ProxyService) Audit(ctx context.Context, report func(ok bool)) (AuditResult, error) {
	proxies, err := s.list.Load(ctx)
	if err != nil {
		return AuditResult{}, err
	}

	verdicts := make([]bool, len(proxies))
	var wg sync.WaitGroup
	for i, raw := range proxies {
		wg.Add(1)
		go func(i int, raw string) {
			defer wg.Done()

			if proxy, err := domain.ParseProxy(raw); err == nil {
				verdicts[i] = s.prober.Probe(ctx, proxy)
			}
			if report != nil {
				report(verdicts[i])
			}
		}(i, raw)
	}
	wg.Wait()

	var result AuditResult
	for i, raw := range proxies {
		if verdicts[i] {
			result.Working = append(result.Working, raw)
		} else {
			result.Failed = append(result.Failed, raw)
		}
	}

	return result, nil
}

// EvictAll removes each listed proxy from the pool.
func (s *ProxyService) EvictAll(ctx context.Context, raws []string) error {
	for _, raw := range raws {
		if err := s.list.Evict(ctx, raw); err != nil {
			return err
		}
	}
	return nil
}
