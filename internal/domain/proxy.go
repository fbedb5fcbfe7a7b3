package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Proxy is one SOCKS5 endpoint parsed from the proxy list. Raw preserves
// the exact source line so eviction can filter the list by value.
type Proxy struct {
	Host     string
	Port     int
	Username string
	Password string
	Raw      string
}

// ParseProxy parses a "host:port:username:password" list line. Username and
// password are optional.
func ParseProxy(raw string) (Proxy, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 {
		return Proxy{}, fmt.Errorf("%w: %q", ErrInvalidProxyFormat, raw)
	}

	host := strings.TrimSpace(parts[0])
	port, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || host == "" || port <= 0 || port > 65535 {
		return Proxy{}, fmt.Errorf("%w: %q", ErrInvalidProxyFormat, raw)
	}

	proxy := Proxy{Host: host, Port: port, Raw: raw}
	if len(parts) > 2 {
		proxy.Username = strings.TrimSpace(parts[2])
	}
	if len(parts) > 3 {
		proxy.Password = strings.TrimSpace(parts[3])
	}

	return proxy, nil
}

// Addr returns the dialable "host:port" form.
func (p Proxy) Addr() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}
