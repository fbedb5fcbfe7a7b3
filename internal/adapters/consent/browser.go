// Package consent implements the delegated-browser collaborator: it opens
// the identity provider's consent page through a leased proxy and captures
// the authorization code from the redirect to a local ephemeral listener.
package consent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"sync"
	"time"

	"github.com/arven-dev/botfleet/internal/domain"
	"github.com/arven-dev/botfleet/internal/ports"
)

var (
	ErrConsentTimeout = errors.New("timed out waiting for consent redirect")
	ErrBrowserClosed  = errors.New("browser closed before authentication")
)

const defaultConsentTimeout = 5 * time.Minute

// Opener launches the interactive consent page bound to a proxy. The
// default opener shells out to a Chromium-family browser with the proxy
// flag set; tests substitute a function that drives the redirect directly.
type Opener func(ctx context.Context, consentURL string, proxy domain.Proxy) error

// Browser drives one consent round trip per Authorize call.
type Browser struct {
	authorizeURL string
	clientID     string
	open         Opener
	timeout      time.Duration
}

var _ ports.ConsentBrowser = (*Browser)(nil)

const defaultAuthorizeURL = "https://login.live.com/oauth20_authorize.srf"

func NewBrowser(authorizeURL, clientID string, open Opener, timeout time.Duration) *Browser {
	if authorizeURL == "" {
		authorizeURL = defaultAuthorizeURL
	}
	if open == nil {
		open = ChromiumOpener("chromium")
	}
	if timeout <= 0 {
		timeout = defaultConsentTimeout
	}

	return &Browser{
		authorizeURL: authorizeURL,
		clientID:     clientID,
		open:         open,
		timeout:      timeout,
	}
}

// Authorize starts an ephemeral localhost listener, opens the consent page
// through the given proxy, and resolves with the captured authorization
// code and the redirect URI the code is bound to.
func (b *Browser) Authorize(ctx context.Context, proxy domain.Proxy) (string, string, error) {
	server, err := startRedirectServer()
	if err != nil {
		return "", "", err
	}
	defer func() { _ = server.Close() }()

	consentURL, err := b.consentURL(server.RedirectURI())
	if err != nil {
		return "", "", err
	}

	openCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	openDone := make(chan error, 1)
	go func() {
		openDone <- b.open(openCtx, consentURL, proxy)
	}()

	code, err := server.WaitForCode(ctx, b.timeout, openDone)
	if err != nil {
		return "", "", err
	}

	return code, server.RedirectURI(), nil
}

func (b *Browser) consentURL(redirectURI string) (string, error) {
	parsed, err := url.Parse(b.authorizeURL)
	if err != nil {
		return "", fmt.Errorf("parse authorize url: %w", err)
	}

	q := parsed.Query()
	q.Set("client_id", b.clientID)
	q.Set("response_type", "code")
	q.Set("scope", "XboxLive.signin XboxLive.offline_access")
	q.Set("redirect_uri", redirectURI)
	q.Set("prompt", "select_account")
	parsed.RawQuery = q.Encode()

	return parsed.String(), nil
}

// ChromiumOpener launches a Chromium-family binary with its traffic forced
// through the proxy. The interactive window is the operator's to drive.
func ChromiumOpener(binary string) Opener {
	return func(ctx context.Context, consentURL string, proxy domain.Proxy) error {
		cmd := exec.CommandContext(ctx, binary,
			fmt.Sprintf("--proxy-server=socks5://%s", proxy.Addr()),
			"--window-size=800,690",
			consentURL,
		)
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("launch consent browser: %w", err)
		}
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			return fmt.Errorf("consent browser exited: %w", err)
		}
		return nil
	}
}

type redirectServer struct {
	listener   net.Listener
	server     *http.Server
	resultCh   chan redirectResult
	resultOnce sync.Once
	closeOnce  sync.Once
}

type redirectResult struct {
	code string
	err  error
}

func startRedirectServer() (*redirectServer, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen consent redirect server: %w", err)
	}

	rs := &redirectServer{
		listener: listener,
		resultCh: make(chan redirectResult, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", rs.handleRedirect)
	rs.server = &http.Server{Handler: mux}

	go func() {
		if serveErr := rs.server.Serve(rs.listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			rs.trySendResult(redirectResult{err: serveErr})
		}
	}()

	return rs, nil
}

func (rs *redirectServer) RedirectURI() string {
	if tcpAddr, ok := rs.listener.Addr().(*net.TCPAddr); ok {
		return fmt.Sprintf("http://localhost:%d", tcpAddr.Port)
	}
	return "http://localhost"
}

// WaitForCode resolves with the first captured code, or fails when the
// browser closes first, the timeout elapses, or the context is cancelled.
func (rs *redirectServer) WaitForCode(ctx context.Context, timeout time.Duration, openDone <-chan error) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case result := <-rs.resultCh:
			return result.code, result.err
		case err := <-openDone:
			// The browser may deliver the redirect an instant before it
			// exits; drain any buffered result before giving up.
			select {
			case result := <-rs.resultCh:
				return result.code, result.err
			default:
			}
			if err != nil {
				return "", err
			}
			return "", ErrBrowserClosed
		case <-timer.C:
			return "", ErrConsentTimeout
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (rs *redirectServer) Close() error {
	var closeErr error
	rs.closeOnce.Do(func() {
		closeErr = rs.server.Close()
	})
	return closeErr
}

func (rs *redirectServer) handleRedirect(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		rs.trySendResult(redirectResult{err: errors.New("missing authorization code")})
		http.Error(w, "authentication failed", http.StatusBadRequest)
		return
	}

	rs.trySendResult(redirectResult{code: code})
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<html>You may now close this page.<script>window.close()</script></html>"))
}

func (rs *redirectServer) trySendResult(result redirectResult) {
	rs.resultOnce.Do(func() {
		rs.resultCh <- result
	})
}
