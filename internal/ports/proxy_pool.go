package ports

import (
	"context"

	"github.com/arven-dev/botfleet/internal/domain"
)

// ProxyList is the persisted proxy pool. Load reads the list fresh on every
// call so eviction by any concurrent caller is immediately visible; Evict
// is an exact-string filter-and-rewrite and is idempotent.
type ProxyList interface {
	Load(ctx context.Context) ([]string, error)
	Evict(ctx context.Context, raw string) error
}

// ProxyProber checks whether a proxy actually forwards traffic.
type ProxyProber interface {
	Probe(ctx context.Context, proxy domain.Proxy) bool
}

// ProxyLeaser is the lease surface the credential and fleet layers consume.
// A nil proxy with a nil error means the pool has nothing to offer.
type ProxyLeaser interface {
	Select(ctx context.Context) (*domain.Proxy, error)
	Evict(ctx context.Context, raw string) error
}
