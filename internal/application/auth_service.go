package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/arven-dev/botfleet/internal/domain"
	"github.com/arven-dev/botfleet/internal/ports"
)

// AuthService turns an account reference into a usable, non-expired
// game-service credential. Delegated accounts are served from the store
// when fresh, refreshed when expired, and pushed through the interactive
// consent flow when absent. Cookie accounts are re-derived from their jar
// on every call and never persisted.
type AuthService struct {
	store    ports.CredentialStore
	proxies  ports.ProxyLeaser
	identity ports.IdentityClientFactory
	consent  ports.ConsentBrowser
	clock    ports.Clock
	status   ports.StatusSink
}

func NewAuthService(
	store ports.CredentialStore,
	proxies ports.ProxyLeaser,
	identity ports.IdentityClientFactory,
	consent ports.ConsentBrowser,
	clock ports.Clock,
	status ports.StatusSink,
) *AuthService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if status == nil {
		status = ports.NopStatus{}
	}

	return &AuthService{
		store:    store,
		proxies:  proxies,
		identity: identity,
		consent:  consent,
		clock:    clock,
		status:   status,
	}
}

// Acquire resolves a credential for the account reference. Failures carry
// the taxonomy the supervisor routes on: ErrNoProxyAvailable fails fast
// without retrying, ErrAccountLocked is permanent and the caller should
// delete the stored credential, everything else is retryable at the
// caller's discretion.
func (s *AuthService) Acquire(ctx context.Context, ref domain.AccountRef) (domain.Credential, error) {
	switch ref.Kind {
	case domain.KindDelegated:
		return s.acquireDelegated(ctx, ref)
	case domain.KindCookieReplay:
		return s.acquireCookie(ctx, ref)
	default:
		return domain.Credential{}, fmt.Errorf("unknown account kind %q", ref.Kind)
	}
}

func (s *AuthService) acquireDelegated(ctx context.Context, ref domain.AccountRef) (domain.Credential, error) {
	stored, err := s.store.Get(ctx, ref.File)
	switch {
	case err == nil && !stored.Expired(s.clock.Now()):
		s.status.Statusf("access token for %s is still valid", ref.File)
		return stored, nil
	case err == nil:
		s.status.Statusf("access token for %s has expired, refreshing", ref.File)
		return s.refresh(ctx, stored)
	case errors.Is(err, domain.ErrCredentialNotFound):
		s.status.Statusf("no stored login for %s, starting interactive consent", ref.File)
		return s.interactive(ctx)
	default:
		return domain.Credential{}, err
	}
}

// refresh exchanges the stored refresh token for a new pair, re-derives
// the game-service chain, and persists the full replacement record.
func (s *AuthService) refresh(ctx context.Context, stored domain.Credential) (domain.Credential, error) {
	client, err := s.leasedClient(ctx)
	if err != nil {
		return domain.Credential{}, err
	}

	pair, err := client.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		return domain.Credential{}, err
	}

	cred, err := client.CompleteChain(ctx, pair.AccessToken)
	if err != nil {
		return domain.Credential{}, err
	}

	cred.Kind = domain.KindDelegated
	cred.RefreshToken = pair.RefreshToken

	if err := s.store.Save(ctx, cred); err != nil {
		return domain.Credential{}, err
	}

	return cred, nil
}

// interactive runs the consent-browser flow: the browser session and the
// subsequent token exchanges each ride their own proxy lease.
func (s *AuthService) interactive(ctx context.Context) (domain.Credential, error) {
	browserProxy, err := s.leaseProxy(ctx)
	if err != nil {
		return domain.Credential{}, err
	}

	code, redirectURI, err := s.consent.Authorize(ctx, browserProxy)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("consent flow: %w", err)
	}

	client, err := s.leasedClient(ctx)
	if err != nil {
		return domain.Credential{}, err
	}

	pair, err := client.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return domain.Credential{}, err
	}

	cred, err := client.CompleteChain(ctx, pair.AccessToken)
	if err != nil {
		return domain.Credential{}, err
	}

	cred.Kind = domain.KindDelegated
	cred.RefreshToken = pair.RefreshToken

	if err := s.store.Save(ctx, cred); err != nil {
		return domain.Credential{}, err
	}

	return cred, nil
}

func (s *AuthService) acquireCookie(ctx context.Context, ref domain.AccountRef) (domain.Credential, error) {
	jar, err := s.store.ReadCookies(ctx, ref.File)
	if err != nil {
		return domain.Credential{}, err
	}

	client, err := s.leasedClient(ctx)
	if err != nil {
		return domain.Credential{}, err
	}

	return client.ReplayCookies(ctx, jar)
}

func (s *AuthService) leaseProxy(ctx context.Context) (domain.Proxy, error) {
	proxy, err := s.proxies.Select(ctx)
	if err != nil {
		return domain.Proxy{}, err
	}
	if proxy == nil {
		return domain.Proxy{}, domain.ErrNoProxyAvailable
	}
	return *proxy, nil
}

func (s *AuthService) leasedClient(ctx context.Context) (ports.IdentityClient, error) {
	proxy, err := s.leaseProxy(ctx)
	if err != nil {
		return nil, err
	}
	return s.identity(proxy), nil
}
