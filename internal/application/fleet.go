package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/arven-dev/botfleet/internal/domain"
	"github.com/arven-dev/botfleet/internal/ports"
)

// CredentialAcquirer is the slice of AuthService the supervisor consumes.
type CredentialAcquirer interface {
	Acquire(ctx context.Context, ref domain.AccountRef) (domain.Credential, error)
}

// FleetTimings are the settle delays and backoffs between state
// transitions. Tests shrink them; production uses DefaultFleetTimings.
type FleetTimings struct {
	SpawnSettle    time.Duration
	EndSettle      time.Duration
	ErrorSettle    time.Duration
	RestartBackoff time.Duration
}

func DefaultFleetTimings() FleetTimings {
	return FleetTimings{
		SpawnSettle:    time.Second,
		EndSettle:      2 * time.Second,
		ErrorSettle:    time.Second,
		RestartBackoff: 5 * time.Second,
	}
}

type FleetConfig struct {
	Server ports.ServerInfo
	// StatusCommand is the chat command that makes the server emit
	// structured location reports.
	StatusCommand string
	Timings       FleetTimings
}

type sessionState int

const (
	stateConnecting sessionState = iota
	stateRunning
	stateRestarting
	stateEvicted
	stateTerminated
)

// session is one live bot attempt. The state field, guarded by the
// session's own lock, is the restart guard: concurrent end-triggers race
// to move the session out of a live state, and only the winner schedules
// a restart or eviction.
type session struct {
	ref    domain.AccountRef
	cred   domain.Credential
	proxy  domain.Proxy
	client ports.ProtocolClient

	mu         sync.Mutex
	state      sessionState
	registered bool
}

// tryBeginRestart claims the single restart slot for this session.
func (s *session) tryBeginRestart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateConnecting && s.state != stateRunning {
		return false
	}
	s.state = stateRestarting
	return true
}

// markAbsorbed moves the session into an absorbing state unless a restart
// already won the race.
func (s *session) markAbsorbed(state sessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateRestarting {
		s.state = state
	}
}

func (s *session) noteSpawn() (first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	first = !s.registered
	s.registered = true
	if s.state == stateConnecting {
		s.state = stateRunning
	}
	return first
}

// Fleet is the per-bot connection supervisor. It owns the live session
// set and the registry, and drives restart and eviction decisions for
// every account reference handed to StartAll.
type Fleet struct {
	cfg      FleetConfig
	auth     CredentialAcquirer
	proxies  ports.ProxyLeaser
	store    ports.CredentialStore
	dial     ports.ProtocolDialer
	registry *Registry
	status   ports.StatusSink
	notify   ports.Notifier

	mu       sync.Mutex
	sessions map[*session]struct{}
	closed   bool
	wg       sync.WaitGroup
}

func NewFleet(
	cfg FleetConfig,
	auth CredentialAcquirer,
	proxies ports.ProxyLeaser,
	store ports.CredentialStore,
	dial ports.ProtocolDialer,
	registry *Registry,
	status ports.StatusSink,
	notify ports.Notifier,
) *Fleet {
	if cfg.StatusCommand == "" {
		cfg.StatusCommand = "/locraw"
	}
	if status == nil {
		status = ports.NopStatus{}
	}
	if notify == nil {
		notify = ports.NopNotifier{}
	}

	return &Fleet{
		cfg:      cfg,
		auth:     auth,
		proxies:  proxies,
		store:    store,
		dial:     dial,
		registry: registry,
		status:   status,
		notify:   notify,
		sessions: make(map[*session]struct{}),
	}
}

// StartAll launches every account concurrently and returns immediately.
// The fleet never waits for one account's connect sequence before starting
// the next.
func (f *Fleet) StartAll(ctx context.Context, refs []domain.AccountRef) {
	for _, ref := range refs {
		f.wg.Add(1)
		go f.runAccount(ctx, ref)
	}
}

// Wait blocks until every session goroutine has returned. Scheduled
// restarts re-enter the wait group before their goroutine starts.
func (f *Fleet) Wait() {
	f.wg.Wait()
}

// Shutdown closes every live protocol client and suppresses any restart
// that has not fired yet.
func (f *Fleet) Shutdown() {
	f.mu.Lock()
	f.closed = true
	live := make([]*session, 0, len(f.sessions))
	for sess := range f.sessions {
		live = append(live, sess)
	}
	f.sessions = make(map[*session]struct{})
	f.mu.Unlock()

	for _, sess := range live {
		_ = sess.client.Close()
	}
}

// Broadcast relays an operator chat line to every live session. Sessions
// whose client refuses the send are dropped from the live set.
func (f *Fleet) Broadcast(text string) {
	f.mu.Lock()
	live := make([]*session, 0, len(f.sessions))
	for sess := range f.sessions {
		live = append(live, sess)
	}
	f.mu.Unlock()

	for _, sess := range live {
		if err := sess.client.SendChat(text); err != nil {
			f.untrack(sess)
		}
	}
}

// Size reports the number of live sessions.
func (f *Fleet) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// runAccount is the Leasing state: acquire a credential and a proxy, then
// hand off to the connection attempt. Credential failures are scoped to
// this account reference; nothing here can take the process down.
func (f *Fleet) runAccount(ctx context.Context, ref domain.AccountRef) {
	defer f.wg.Done()

	cred, err := f.auth.Acquire(ctx, ref)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoProxyAvailable):
			// A dry pool disables the fleet rather than erroring it.
			f.status.Warnf("auto queueing mode is disabled")
		case errors.Is(err, domain.ErrAccountLocked):
			f.status.Warnf("%s is locked, removing account", ref.File)
			if delErr := f.store.Delete(ctx, ref.File); delErr != nil {
				f.status.Errorf("delete locked account %s: %v", ref.File, delErr)
			}
			f.notifyf(ctx, "account %s is locked and was removed", ref.File)
		default:
			f.status.Warnf("failed to log in %s: %v", ref.File, err)
		}
		return
	}

	// Operator-added placeholder accounts learn their real file name on
	// first login.
	if ref.Kind == domain.KindDelegated && strings.HasPrefix(ref.File, "random-") && cred.Name != "" {
		ref.File = cred.Name + ".json"
	}

	proxy, err := f.proxies.Select(ctx)
	if err != nil || proxy == nil {
		f.status.Warnf("auto queueing mode is disabled")
		return
	}

	f.runSession(ctx, ref, cred, *proxy)
}

// runSession is the Connecting state. The leased proxy is the sole
// transport path for both the raw connection and the handshake layer.
func (f *Fleet) runSession(ctx context.Context, ref domain.AccountRef, cred domain.Credential, proxy domain.Proxy) {
	sess := &session{ref: ref, cred: cred, proxy: proxy, state: stateConnecting}
	sess.client = f.dial(f.cfg.Server, cred, proxy)

	if !f.track(sess) {
		return
	}

	events := ports.ProtocolEvents{
		OnSpawn:  func() { f.handleSpawn(sess) },
		OnChat:   func(message string) { f.handleChat(sess, message) },
		OnEnd:    func(reason string) { f.handleEnd(ctx, sess, reason) },
		OnKicked: func(reason string) { f.handleKick(ctx, sess, reason) },
		OnError:  func(err error) { f.handleError(ctx, sess, err) },
	}

	if err := sess.client.Connect(ctx, events); err != nil {
		f.untrack(sess)
		f.status.Warnf("%s had an error connecting with proxy: %v", cred.Name, err)
		// The restart re-enters Leasing for a fresh lease; the same
		// proxy is never retried blindly.
		f.tryScheduleRestart(ctx, sess, f.cfg.Timings.RestartBackoff)
	}
}

func (f *Fleet) handleSpawn(sess *session) {
	if sess.noteSpawn() {
		f.status.Statusf("%s logged into %s", sess.cred.Name, f.cfg.Server.Host)
		f.registry.Add(RegistryEntry{
			IdentityID: sess.cred.IdentityID,
			Name:       sess.cred.Name,
		})
	}

	time.AfterFunc(f.cfg.Timings.SpawnSettle, func() {
		_ = sess.client.SendChat(f.cfg.StatusCommand)
	})
}

func (f *Fleet) handleChat(sess *session, message string) {
	location, ok := domain.ParseLocation(message)
	if !ok {
		return
	}
	f.registry.UpdateLocation(sess.cred.IdentityID, location)
}

func (f *Fleet) handleEnd(ctx context.Context, sess *session, reason string) {
	f.registry.Remove(sess.cred.IdentityID)
	f.untrack(sess)

	time.AfterFunc(f.cfg.Timings.EndSettle, func() {
		if f.tryScheduleRestart(ctx, sess, f.cfg.Timings.RestartBackoff) {
			f.status.Warnf("%s ended: %s", sess.cred.Name, reason)
		}
	})
}

func (f *Fleet) handleKick(ctx context.Context, sess *session, reason string) {
	f.registry.Remove(sess.cred.IdentityID)
	f.untrack(sess)

	if domain.IsBanKick(reason) {
		sess.markAbsorbed(stateEvicted)
		banReason := domain.ClassifyBan(reason)
		f.status.Errorf("%s was banned for %s, removing account and proxy", sess.cred.Name, banReason)
		if err := f.store.Delete(ctx, sess.ref.File); err != nil {
			f.status.Errorf("delete banned account %s: %v", sess.ref.File, err)
		}
		if err := f.proxies.Evict(ctx, sess.proxy.Raw); err != nil {
			f.status.Errorf("evict proxy %s: %v", sess.proxy.Raw, err)
		}
		f.notifyf(ctx, "%s was banned for %s", sess.cred.Name, banReason)
		return
	}

	f.status.Warnf("%s was kicked: %s", sess.cred.Name, reason)
	f.tryScheduleRestart(ctx, sess, f.cfg.Timings.RestartBackoff)
}

func (f *Fleet) handleError(ctx context.Context, sess *session, err error) {
	f.registry.Remove(sess.cred.IdentityID)
	f.untrack(sess)

	if domain.IsBenignLoginError(err) {
		sess.markAbsorbed(stateTerminated)
		f.status.Errorf("%s had an error: %v", sess.cred.Name, err)
		f.status.Warnf("profile: %s (%s), account file: %s", sess.cred.Name, sess.cred.IdentityID, sess.ref.File)
		return
	}

	f.status.Errorf("%s had an error: %v", sess.cred.Name, err)
	time.AfterFunc(f.cfg.Timings.ErrorSettle, func() {
		f.tryScheduleRestart(ctx, sess, f.cfg.Timings.RestartBackoff)
	})
}

// tryScheduleRestart schedules at most one restart for the session,
// re-entering Leasing for the same account reference after the backoff.
func (f *Fleet) tryScheduleRestart(ctx context.Context, sess *session, backoff time.Duration) bool {
	if !sess.tryBeginRestart() {
		return false
	}
	if f.isClosed() {
		return false
	}

	time.AfterFunc(backoff, func() {
		if f.isClosed() || ctx.Err() != nil {
			return
		}
		f.wg.Add(1)
		go f.runAccount(ctx, sess.ref)
	})
	return true
}

func (f *Fleet) track(sess *session) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	f.sessions[sess] = struct{}{}
	return true
}

func (f *Fleet) untrack(sess *session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sess)
}

func (f *Fleet) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fleet) notifyf(ctx context.Context, format string, args ...any) {
	if err := f.notify.Notify(ctx, fmt.Sprintf(format, args...)); err != nil {
		f.status.Errorf("send notification: %v", err)
	}
}
