package domain

import (
	"encoding/json"
	"strings"
)

// Location is a structured in-world position reported by the server in
// response to the status-query chat command.
type Location struct {
	Dimension string `json:"dimension,omitempty"`
	Server    string `json:"server,omitempty"`
	GameType  string `json:"gametype,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Map       string `json:"map,omitempty"`
	X         int    `json:"x,omitempty"`
	Y         int    `json:"y,omitempty"`
	Z         int    `json:"z,omitempty"`
}

// ParseLocation attempts to decode a chat message as a structured location
// payload. Decode failure means "not a location message", reported by the
// ok result rather than an error.
func ParseLocation(message string) (Location, bool) {
	trimmed := strings.TrimSpace(message)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return Location{}, false
	}

	var location Location
	if err := json.Unmarshal([]byte(trimmed), &location); err != nil {
		return Location{}, false
	}

	return location, true
}
