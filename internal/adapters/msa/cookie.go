package msa

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/arven-dev/botfleet/internal/adapters/cookiejar"
	"github.com/arven-dev/botfleet/internal/domain"
)

// Cookie chain stage names.
const (
	StageCookieHop1  = "cookie-hop-1"
	StageCookieHop2  = "cookie-hop-2"
	StageCookieHop3  = "cookie-hop-3"
	StageCookieParse = "cookie-token-parse"
)

const cookieUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36"

// ReplayCookies replays an exported browser session through the identity
// provider's three-hop redirect chain, parses the embedded token out of the
// final redirect's URL fragment, and finishes the shared game-service
// chain. A chain break at hop 2 means the account is locked, a permanent
// condition; breaks at hops 1 and 3 are transient. Cookie credentials are
// never persisted: the caller derives them fresh on every attempt.
func (c *Client) ReplayCookies(ctx context.Context, jarText string) (domain.Credential, error) {
	cookieHeader := cookiejar.Header(cookiejar.Parse(jarText))
	first, err := c.fetchLocation(ctx, c.endpoints.CookieEntry, cookieHeader)
	if err != nil || first == "" {
		return domain.Credential{}, &domain.ChainStageError{Stage: StageCookieHop1, Err: err}
	}

	second, err := c.fetchLocation(ctx, first, cookieHeader)
	if err != nil || second == "" {
		return domain.Credential{}, domain.ErrAccountLocked
	}

	third, err := c.fetchLocation(ctx, second, cookieHeader)
	if err != nil || third == "" {
		return domain.Credential{}, &domain.ChainStageError{Stage: StageCookieHop3, Err: err}
	}

	userHash, xstsToken, err := parseRedirectToken(third)
	if err != nil {
		return domain.Credential{}, &domain.ChainStageError{Stage: StageCookieParse, Err: err}
	}

	cred, err := c.finishChain(ctx, userHash, xstsToken)
	if err != nil {
		return domain.Credential{}, err
	}

	cred.Kind = domain.KindCookieReplay
	cred.RefreshToken = ""
	return cred, nil
}

// fetchLocation issues a single non-following GET and returns the redirect
// Location header. A non-redirect status yields an empty location, which
// callers classify by hop position.
func (c *Client) fetchLocation(ctx context.Context, rawURL, cookieHeader string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cookie", cookieHeader)
	req.Header.Set("User-Agent", cookieUserAgent)

	client := *c.httpClient
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusMultipleChoices || resp.StatusCode >= http.StatusBadRequest {
		return "", nil
	}

	return resp.Header.Get("Location"), nil
}

// Fixed text delimiters inside the base64-decoded redirect fragment.
const (
	fragmentMarker = "accessToken="
	relyingSplit   = `"rp://api.minecraftservices.com/",`
	tokenPrefix    = `"Token":"`
	userHashPrefix = `{"DisplayClaims":{"xui":[{"uhs":"`
)

// parseRedirectToken extracts the XSTS token and user hash embedded in the
// final redirect's URL fragment.
func parseRedirectToken(location string) (userHash, token string, err error) {
	_, fragment, found := strings.Cut(location, fragmentMarker)
	if !found {
		return "", "", fmt.Errorf("redirect carries no access token fragment")
	}

	decoded, err := decodeFragment(fragment)
	if err != nil {
		return "", "", fmt.Errorf("decode access token fragment: %w", err)
	}

	_, tail, found := strings.Cut(decoded, relyingSplit)
	if !found {
		return "", "", fmt.Errorf("fragment missing relying party section")
	}

	token, err = cutBetween(tail, tokenPrefix, `"`)
	if err != nil {
		return "", "", fmt.Errorf("fragment missing token: %w", err)
	}

	userHash, err = cutBetween(tail, userHashPrefix, `"`)
	if err != nil {
		return "", "", fmt.Errorf("fragment missing user hash: %w", err)
	}

	return userHash, token, nil
}

func decodeFragment(fragment string) (string, error) {
	for _, encoding := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if decoded, err := encoding.DecodeString(fragment); err == nil {
			return string(decoded), nil
		}
	}
	return "", fmt.Errorf("fragment is not base64")
}

func cutBetween(s, prefix, terminator string) (string, error) {
	_, tail, found := strings.Cut(s, prefix)
	if !found {
		return "", fmt.Errorf("marker %q not found", prefix)
	}
	value, _, found := strings.Cut(tail, terminator)
	if !found {
		return "", fmt.Errorf("unterminated value after %q", prefix)
	}
	return value, nil
}
