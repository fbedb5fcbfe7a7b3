// Package protocol provides the game-server transport. The rawconn client
// speaks a line-oriented stream over a proxy-bound TCP connection; the
// packet codec sits behind this seam and can be swapped without touching
// the fleet.
package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	xproxy "golang.org/x/net/proxy"

	"github.com/arven-dev/botfleet/internal/domain"
	"github.com/arven-dev/botfleet/internal/ports"
)

const dialTimeout = 30 * time.Second

// Client is a proxy-bound line transport implementing ports.ProtocolClient.
// OnSpawn fires once the connection is established, each received line is
// delivered to OnChat, a clean remote close becomes OnEnd, and any other
// read failure becomes OnError.
type Client struct {
	server ports.ServerInfo
	cred   domain.Credential
	proxy  domain.Proxy

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

var _ ports.ProtocolClient = (*Client)(nil)

// Dialer wires Client into the fleet as its session factory.
func Dialer() ports.ProtocolDialer {
	return func(server ports.ServerInfo, cred domain.Credential, proxy domain.Proxy) ports.ProtocolClient {
		return &Client{server: server, cred: cred, proxy: proxy}
	}
}

func (c *Client) Connect(ctx context.Context, events ports.ProtocolEvents) error {
	dialer, err := xproxy.SOCKS5("tcp", c.proxy.Addr(), &xproxy.Auth{
		User:     c.proxy.Username,
		Password: c.proxy.Password,
	}, &net.Dialer{Timeout: dialTimeout})
	if err != nil {
		return fmt.Errorf("building proxy dialer for %s: %w", c.proxy.Addr(), err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	addr := net.JoinHostPort(c.server.Host, fmt.Sprint(c.server.Port))
	conn, err := dialer.(xproxy.ContextDialer).DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dialing %s via %s: %w", addr, c.proxy.Addr(), err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return errors.New("client already closed")
	}
	c.conn = conn
	c.mu.Unlock()

	if events.OnSpawn != nil {
		events.OnSpawn()
	}

	go c.readLoop(conn, events)

	return nil
}

func (c *Client) readLoop(conn net.Conn, events ports.ProtocolEvents) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if events.OnChat != nil {
			events.OnChat(line)
		}
	}

	err := scanner.Err()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	switch {
	case closed:
		// Local Close tore down the connection; the session owner already
		// knows.
	case err == nil || errors.Is(err, io.EOF):
		if events.OnEnd != nil {
			events.OnEnd("connection closed by remote")
		}
	default:
		if events.OnError != nil {
			events.OnError(err)
		}
	}
}

func (c *Client) SendChat(text string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return errors.New("not connected")
	}
	if _, err := fmt.Fprintf(conn, "%s\n", text); err != nil {
		return fmt.Errorf("sending chat: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
