package application

import (
	"context"
	"sync"
	"time"

	"github.com/arven-dev/botfleet/internal/domain"
	"github.com/arven-dev/botfleet/internal/ports"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// memProxyList is an in-memory ports.ProxyList.
type memProxyList struct {
	mu    sync.Mutex
	lines []string
}

func newMemProxyList(lines ...string) *memProxyList {
	return &memProxyList{lines: append([]string(nil), lines...)}
}

func (l *memProxyList) Load(context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...), nil
}

func (l *memProxyList) Evict(_ context.Context, raw string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.lines[:0]
	for _, line := range l.lines {
		if line != raw {
			kept = append(kept, line)
		}
	}
	l.lines = kept
	return nil
}

func (l *memProxyList) remaining() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// funcProber delegates to a verdict function.
type funcProber struct {
	verdict func(domain.Proxy) bool
}

func (p funcProber) Probe(_ context.Context, proxy domain.Proxy) bool {
	return p.verdict(proxy)
}

// fakeLeaser hands out a fixed proxy and records evictions. A nil proxy
// models an exhausted pool.
type fakeLeaser struct {
	mu          sync.Mutex
	proxy       *domain.Proxy
	selectCalls int
	evicted     []string
}

func (l *fakeLeaser) Select(context.Context) (*domain.Proxy, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.selectCalls++
	if l.proxy == nil {
		return nil, nil
	}
	copied := *l.proxy
	return &copied, nil
}

func (l *fakeLeaser) Evict(_ context.Context, raw string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evicted = append(l.evicted, raw)
	return nil
}

func (l *fakeLeaser) selects() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.selectCalls
}

func (l *fakeLeaser) evictions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.evicted...)
}

// memStore is an in-memory ports.CredentialStore.
type memStore struct {
	mu      sync.Mutex
	creds   map[string]domain.Credential
	cookies map[string]string
	saved   []domain.Credential
	deleted []string
}

func newMemStore() *memStore {
	return &memStore{
		creds:   make(map[string]domain.Credential),
		cookies: make(map[string]string),
	}
}

func (s *memStore) Get(_ context.Context, file string) (domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[file]
	if !ok {
		return domain.Credential{}, domain.ErrCredentialNotFound
	}
	return cred, nil
}

func (s *memStore) Save(_ context.Context, cred domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.Name+".json"] = cred
	s.saved = append(s.saved, cred)
	return nil
}

func (s *memStore) Delete(_ context.Context, file string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, file)
	s.deleted = append(s.deleted, file)
	return nil
}

func (s *memStore) List(_ context.Context, kind domain.AccountKind) ([]domain.AccountRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var refs []domain.AccountRef
	for file, cred := range s.creds {
		if cred.Kind == kind {
			refs = append(refs, domain.AccountRef{File: file, Kind: kind})
		}
	}
	return refs, nil
}

func (s *memStore) ReadCookies(_ context.Context, file string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jar, ok := s.cookies[file]
	if !ok {
		return "", domain.ErrCredentialNotFound
	}
	return jar, nil
}

func (s *memStore) savedCreds() []domain.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Credential(nil), s.saved...)
}

func (s *memStore) deletedFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// fakeIdentity implements ports.IdentityClient with overridable behavior.
type fakeIdentity struct {
	mu            sync.Mutex
	exchangeCalls int
	refreshCalls  int
	chainCalls    int
	replayCalls   int

	exchange func(code, redirectURI string) (domain.TokenPair, error)
	refresh  func(refreshToken string) (domain.TokenPair, error)
	chain    func(accessToken string) (domain.Credential, error)
	replay   func(jarText string) (domain.Credential, error)
}

func (f *fakeIdentity) ExchangeCode(_ context.Context, code, redirectURI string) (domain.TokenPair, error) {
	f.mu.Lock()
	f.exchangeCalls++
	f.mu.Unlock()
	return f.exchange(code, redirectURI)
}

func (f *fakeIdentity) Refresh(_ context.Context, refreshToken string) (domain.TokenPair, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.mu.Unlock()
	return f.refresh(refreshToken)
}

func (f *fakeIdentity) CompleteChain(_ context.Context, accessToken string) (domain.Credential, error) {
	f.mu.Lock()
	f.chainCalls++
	f.mu.Unlock()
	return f.chain(accessToken)
}

func (f *fakeIdentity) ReplayCookies(_ context.Context, jarText string) (domain.Credential, error) {
	f.mu.Lock()
	f.replayCalls++
	f.mu.Unlock()
	return f.replay(jarText)
}

func (f *fakeIdentity) calls() (exchange, refresh, chain, replay int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchangeCalls, f.refreshCalls, f.chainCalls, f.replayCalls
}

// identityFactory counts how often a client is bound to a proxy.
type identityFactory struct {
	mu     sync.Mutex
	binds  int
	client *fakeIdentity
}

func (f *identityFactory) factory() ports.IdentityClientFactory {
	return func(domain.Proxy) ports.IdentityClient {
		f.mu.Lock()
		f.binds++
		f.mu.Unlock()
		return f.client
	}
}

func (f *identityFactory) bindCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.binds
}

type fakeConsent struct {
	mu      sync.Mutex
	calls   int
	proxies []domain.Proxy
	code    string
	uri     string
	err     error
}

func (c *fakeConsent) Authorize(_ context.Context, proxy domain.Proxy) (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.proxies = append(c.proxies, proxy)
	return c.code, c.uri, c.err
}

// fakeProtoClient records chat sends and lets tests fire protocol events.
type fakeProtoClient struct {
	mu         sync.Mutex
	events     ports.ProtocolEvents
	sent       []string
	sendErr    error
	connectErr error
	closed     bool
}

func (c *fakeProtoClient) Connect(_ context.Context, events ports.ProtocolEvents) error {
	c.mu.Lock()
	c.events = events
	c.mu.Unlock()
	return c.connectErr
}

func (c *fakeProtoClient) SendChat(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, text)
	return nil
}

func (c *fakeProtoClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeProtoClient) wired() ports.ProtocolEvents {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events
}

func (c *fakeProtoClient) sentLines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func (c *fakeProtoClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeDialer hands out clients in order, then keeps returning the last one.
type fakeDialer struct {
	mu      sync.Mutex
	clients []*fakeProtoClient
	dials   int
}

func (d *fakeDialer) dialer() ports.ProtocolDialer {
	return func(ports.ServerInfo, domain.Credential, domain.Proxy) ports.ProtocolClient {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.dials++
		if len(d.clients) == 0 {
			client := &fakeProtoClient{}
			d.clients = append(d.clients, client)
			return client
		}
		if d.dials <= len(d.clients) {
			return d.clients[d.dials-1]
		}
		return d.clients[len(d.clients)-1]
	}
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// countingAcquirer wraps a fixed credential result and counts Acquire calls.
type countingAcquirer struct {
	mu    sync.Mutex
	calls int
	cred  domain.Credential
	err   error
}

func (a *countingAcquirer) Acquire(context.Context, domain.AccountRef) (domain.Credential, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.cred, a.err
}

func (a *countingAcquirer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

func mustProxy(raw string) domain.Proxy {
	proxy, err := domain.ParseProxy(raw)
	if err != nil {
		panic(err)
	}
	return proxy
}
