package ports

import (
	"context"

	"github.com/arven-dev/botfleet/internal/domain"
)

// ProtocolEvents receives the game client's lifecycle callbacks. Handlers
// may be invoked concurrently with each other; the fleet serializes its own
// bookkeeping.
type ProtocolEvents struct {
	OnSpawn  func()
	OnChat   func(message string)
	OnEnd    func(reason string)
	OnKicked func(reason string)
	OnError  func(err error)
}

// ProtocolClient is the opaque game-protocol collaborator. The fleet never
// looks inside it: it connects, relays chat, and reports lifecycle events.
// Connect returns once the transport is established; events are delivered
// asynchronously until the session ends or Close is called.
type ProtocolClient interface {
	Connect(ctx context.Context, events ProtocolEvents) error
	SendChat(text string) error
	Close() error
}

// ServerInfo describes the single fixed remote server the fleet targets.
type ServerInfo struct {
	Host         string
	Port         int
	Version      string
	ViewDistance int
}

// ProtocolDialer constructs a protocol client for one session. Both the
// transport and the handshake layer must route through the given proxy; a
// mismatch there is a configuration bug, not a runtime condition.
type ProtocolDialer func(server ServerInfo, cred domain.Credential, proxy domain.Proxy) ProtocolClient
