package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arven-dev/botfleet/internal/domain"
)

var authTestNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type authFixture struct {
	store   *memStore
	leaser  *fakeLeaser
	client  *fakeIdentity
	factory *identityFactory
	consent *fakeConsent
	svc     *AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	proxy := mustProxy("1.2.3.4:1080:u:p")
	client := &fakeIdentity{}
	factory := &identityFactory{client: client}
	consent := &fakeConsent{code: "auth-code", uri: "http://127.0.0.1:8123/callback"}
	store := newMemStore()
	leaser := &fakeLeaser{proxy: &proxy}

	return &authFixture{
		store:   store,
		leaser:  leaser,
		client:  client,
		factory: factory,
		consent: consent,
		svc:     NewAuthService(store, leaser, factory.factory(), consent, fixedClock{now: authTestNow}, nil),
	}
}

func TestAcquireFreshCredentialNoNetwork(t *testing.T) {
	t.Parallel()

	fx := newAuthFixture(t)
	stored := domain.Credential{
		Kind:         domain.KindDelegated,
		Name:         "alpha",
		IdentityID:   "uuid-1",
		AccessToken:  "fresh-token",
		RefreshToken: "refresh-1",
		ExpiresAt:    authTestNow.Add(time.Hour),
		OwnsGame:     true,
	}
	fx.store.creds["alpha.json"] = stored

	cred, err := fx.svc.Acquire(context.Background(), domain.AccountRef{File: "alpha.json", Kind: domain.KindDelegated})
	require.NoError(t, err)
	assert.Equal(t, stored, cred)

	assert.Zero(t, fx.factory.bindCount(), "no identity client should be built")
	assert.Zero(t, fx.leaser.selects(), "no proxy should be leased")
	assert.Empty(t, fx.store.savedCreds())
}

func TestAcquireExpiredTriggersOneRefresh(t *testing.T) {
	t.Parallel()

	fx := newAuthFixture(t)
	fx.store.creds["alpha.json"] = domain.Credential{
		Kind:         domain.KindDelegated,
		Name:         "alpha",
		IdentityID:   "uuid-1",
		AccessToken:  "stale",
		RefreshToken: "refresh-old",
		ExpiresAt:    authTestNow.Add(-time.Minute),
		OwnsGame:     true,
	}

	fx.client.refresh = func(refreshToken string) (domain.TokenPair, error) {
		assert.Equal(t, "refresh-old", refreshToken)
		return domain.TokenPair{AccessToken: "msa-new", RefreshToken: "refresh-new"}, nil
	}
	fx.client.chain = func(accessToken string) (domain.Credential, error) {
		assert.Equal(t, "msa-new", accessToken)
		return domain.Credential{
			Name:        "alpha",
			IdentityID:  "uuid-1",
			AccessToken: "game-new",
			ExpiresAt:   authTestNow.Add(24 * time.Hour),
			OwnsGame:    true,
		}, nil
	}

	cred, err := fx.svc.Acquire(context.Background(), domain.AccountRef{File: "alpha.json", Kind: domain.KindDelegated})
	require.NoError(t, err)

	assert.Equal(t, domain.KindDelegated, cred.Kind)
	assert.Equal(t, "game-new", cred.AccessToken)
	assert.Equal(t, "refresh-new", cred.RefreshToken)
	assert.True(t, cred.ExpiresAt.After(authTestNow))

	_, refreshes, chains, _ := fx.client.calls()
	assert.Equal(t, 1, refreshes)
	assert.Equal(t, 1, chains)

	saved := fx.store.savedCreds()
	require.Len(t, saved, 1, "the full replacement record must be persisted")
	assert.Equal(t, cred, saved[0])
	assert.Zero(t, fx.consent.calls)
}

func TestAcquireMissingRunsInteractiveConsent(t *testing.T) {
	t.Parallel()

	fx := newAuthFixture(t)
	fx.client.exchange = func(code, redirectURI string) (domain.TokenPair, error) {
		assert.Equal(t, "auth-code", code)
		assert.Equal(t, "http://127.0.0.1:8123/callback", redirectURI)
		return domain.TokenPair{AccessToken: "msa-first", RefreshToken: "refresh-first"}, nil
	}
	fx.client.chain = func(string) (domain.Credential, error) {
		return domain.Credential{
			Name:        "newbie",
			IdentityID:  "uuid-9",
			AccessToken: "game-first",
			ExpiresAt:   authTestNow.Add(24 * time.Hour),
			OwnsGame:    true,
		}, nil
	}

	cred, err := fx.svc.Acquire(context.Background(), domain.AccountRef{File: "random-1.json", Kind: domain.KindDelegated})
	require.NoError(t, err)

	assert.Equal(t, "newbie", cred.Name)
	assert.Equal(t, "refresh-first", cred.RefreshToken)
	assert.Equal(t, 1, fx.consent.calls)
	require.Len(t, fx.consent.proxies, 1)
	assert.Equal(t, "1.2.3.4", fx.consent.proxies[0].Host, "browser session rides a leased proxy")

	saved := fx.store.savedCreds()
	require.Len(t, saved, 1)
	assert.Equal(t, cred, saved[0])
}

func TestAcquireFailsFastWithoutProxies(t *testing.T) {
	t.Parallel()

	fx := newAuthFixture(t)
	fx.leaser.proxy = nil

	_, err := fx.svc.Acquire(context.Background(), domain.AccountRef{File: "random-1.json", Kind: domain.KindDelegated})
	assert.ErrorIs(t, err, domain.ErrNoProxyAvailable)
	assert.Zero(t, fx.consent.calls)
}

func TestAcquireCookieReplaysJar(t *testing.T) {
	t.Parallel()

	fx := newAuthFixture(t)
	fx.store.cookies["beta.txt"] = "login.live.com\tFALSE\t/\tTRUE\t0\tMSPAuth\tblob"
	fx.client.replay = func(jarText string) (domain.Credential, error) {
		assert.Contains(t, jarText, "MSPAuth")
		return domain.Credential{
			Kind:        domain.KindCookieReplay,
			Name:        "beta",
			IdentityID:  "uuid-2",
			AccessToken: "game-cookie",
			ExpiresAt:   authTestNow.Add(24 * time.Hour),
			OwnsGame:    true,
		}, nil
	}

	cred, err := fx.svc.Acquire(context.Background(), domain.AccountRef{File: "beta.txt", Kind: domain.KindCookieReplay})
	require.NoError(t, err)

	assert.Equal(t, domain.KindCookieReplay, cred.Kind)
	assert.Empty(t, fx.store.savedCreds(), "cookie credentials are never persisted")
}

func TestAcquireCookiePropagatesLock(t *testing.T) {
	t.Parallel()

	fx := newAuthFixture(t)
	fx.store.cookies["beta.txt"] = "jar"
	fx.client.replay = func(string) (domain.Credential, error) {
		return domain.Credential{}, domain.ErrAccountLocked
	}

	_, err := fx.svc.Acquire(context.Background(), domain.AccountRef{File: "beta.txt", Kind: domain.KindCookieReplay})
	assert.ErrorIs(t, err, domain.ErrAccountLocked)
}

func TestAcquireUnknownKind(t *testing.T) {
	t.Parallel()

	fx := newAuthFixture(t)
	_, err := fx.svc.Acquire(context.Background(), domain.AccountRef{File: "x", Kind: domain.AccountKind("mojang")})
	assert.Error(t, err)
}
