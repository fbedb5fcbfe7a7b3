package ports

import (
	"context"

	"github.com/arven-dev/botfleet/internal/domain"
)

// IdentityClient runs the token exchanges that turn a platform login into a
// usable game-service credential. Every call is issued through the proxy
// the adapter was bound to at construction.
type IdentityClient interface {
	// ExchangeCode trades an authorization code for a token pair.
	ExchangeCode(ctx context.Context, code, redirectURI string) (domain.TokenPair, error)
	// Refresh trades a refresh token for a fresh token pair.
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error)
	// CompleteChain runs the shared game-service chain from an
	// identity-provider access token.
	CompleteChain(ctx context.Context, accessToken string) (domain.Credential, error)
	// ReplayCookies parses a Netscape cookie jar, runs the cookie
	// redirect chain, and then the shared game-service chain.
	ReplayCookies(ctx context.Context, jarText string) (domain.Credential, error)
}

// IdentityClientFactory binds an IdentityClient to a leased proxy.
type IdentityClientFactory func(proxy domain.Proxy) IdentityClient

// ConsentBrowser is the interactive delegated-auth collaborator: it opens
// the consent page through the given proxy and resolves with the
// authorization code captured from the redirect, or fails if the
// interactive session is closed first.
type ConsentBrowser interface {
	Authorize(ctx context.Context, proxy domain.Proxy) (code string, redirectURI string, err error)
}
