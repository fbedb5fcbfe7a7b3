// Package msa implements the identity-provider and game-service token
// chain: OAuth code/refresh exchange, Xbox Live and XSTS authentication,
// the game-service login, and the ownership/profile lookups. Every call is
// issued through the SOCKS5 proxy the client was bound to at construction.
package msa

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	xproxy "golang.org/x/net/proxy"

	"github.com/arven-dev/botfleet/internal/domain"
	"github.com/arven-dev/botfleet/internal/ports"
)

const maxResponseBytes = 1 << 20

// DefaultClientID is the public client id of the desktop consent flow.
const DefaultClientID = "54fd49e4-2103-4044-9603-2b028c814ec3"

// Endpoints lists every URL the chain touches. Tests point these at
// httptest servers.
type Endpoints struct {
	Token       string
	XBL         string
	XSTS        string
	GameLogin   string
	Ownership   string
	Profile     string
	CookieEntry string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		Token:       "https://login.live.com/oauth20_token.srf",
		XBL:         "https://user.auth.xboxlive.com/user/authenticate",
		XSTS:        "https://xsts.auth.xboxlive.com/xsts/authorize",
		GameLogin:   "https://api.minecraftservices.com/authentication/login_with_xbox",
		Ownership:   "https://api.minecraftservices.com/entitlements/mcstore",
		Profile:     "https://api.minecraftservices.com/minecraft/profile",
		CookieEntry: "https://sisu.xboxlive.com/connect/XboxLive/?state=login&cobrandId=8058f65d-ce06-4c30-9559-473c9275a65d&tid=896928775&ru=https%3A%2F%2Fwww.minecraft.net%2Fen-us%2Flogin&aid=1142970254",
	}
}

type Client struct {
	httpClient *http.Client
	clientID   string
	endpoints  Endpoints
	clock      ports.Clock
}

var _ ports.IdentityClient = (*Client)(nil)

func NewClient(httpClient *http.Client, clientID string, endpoints Endpoints, clock ports.Clock) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if clientID == "" {
		clientID = DefaultClientID
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Client{
		httpClient: httpClient,
		clientID:   clientID,
		endpoints:  endpoints,
		clock:      clock,
	}
}

// Factory returns an IdentityClientFactory whose clients route all traffic
// through the given leased proxy.
func Factory(clientID string, endpoints Endpoints, clock ports.Clock, timeout time.Duration) ports.IdentityClientFactory {
	return func(proxy domain.Proxy) ports.IdentityClient {
		return NewClient(ProxyHTTPClient(proxy, timeout), clientID, endpoints, clock)
	}
}

// ProxyHTTPClient builds an HTTP client whose transport dials through the
// given SOCKS5 proxy. Certificate verification is disabled: the pool's exit
// proxies re-sign TLS.
func ProxyHTTPClient(p domain.Proxy, timeout time.Duration) *http.Client {
	var auth *xproxy.Auth
	if p.Username != "" {
		auth = &xproxy.Auth{User: p.Username, Password: p.Password}
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer, err := xproxy.SOCKS5("tcp", p.Addr(), auth, xproxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("build socks dialer for %s: %w", p.Addr(), err)
			}
			if contextDialer, ok := dialer.(xproxy.ContextDialer); ok {
				return contextDialer.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		},
	}

	return &http.Client{Transport: transport, Timeout: timeout}
}

// ExchangeCode trades a consent-flow authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (domain.TokenPair, error) {
	if code == "" {
		return domain.TokenPair{}, errors.New("authorization code is required")
	}

	values := url.Values{}
	values.Set("client_id", c.clientID)
	values.Set("redirect_uri", redirectURI)
	values.Set("grant_type", "authorization_code")
	values.Set("code", code)

	return c.tokenRequest(ctx, values)
}

// Refresh trades a stored refresh token for a fresh token pair. The result
// always carries a new refresh token; the caller persists the full
// replacement record.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	if refreshToken == "" {
		return domain.TokenPair{}, errors.New("refresh token is required")
	}

	values := url.Values{}
	values.Set("client_id", c.clientID)
	values.Set("refresh_token", refreshToken)
	values.Set("grant_type", "refresh_token")

	return c.tokenRequest(ctx, values)
}

func (c *Client) tokenRequest(ctx context.Context, values url.Values) (domain.TokenPair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.Token, strings.NewReader(values.Encode()))
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("%w: %v", domain.ErrTokenExchange, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return domain.TokenPair{}, fmt.Errorf("%w: token endpoint returned status %d", domain.ErrTokenExchange, resp.StatusCode)
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return domain.TokenPair{}, fmt.Errorf("%w: decode token response: %v", domain.ErrTokenExchange, err)
	}
	if body.AccessToken == "" || body.RefreshToken == "" {
		return domain.TokenPair{}, fmt.Errorf("%w: token response missing required fields", domain.ErrTokenExchange)
	}

	return domain.TokenPair{AccessToken: body.AccessToken, RefreshToken: body.RefreshToken}, nil
}

func (c *Client) postJSON(ctx context.Context, stage, endpoint string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return &domain.ChainStageError{Stage: stage, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(data)))
	if err != nil {
		return &domain.ChainStageError{Stage: stage, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.doJSON(stage, req, out)
}

func (c *Client) getJSON(ctx context.Context, stage, endpoint, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &domain.ChainStageError{Stage: stage, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	return c.doJSON(stage, req, out)
}

func (c *Client) doJSON(stage string, req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.ChainStageError{Stage: stage, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &domain.ChainStageError{Stage: stage, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return &domain.ChainStageError{Stage: stage, Err: fmt.Errorf("decode response: %w", err)}
	}

	return nil
}
