package domain

import "strings"

// IsBanKick reports whether a kick message describes a permanent
// suspension rather than an ordinary disconnect.
func IsBanKick(reason string) bool {
	return strings.Contains(strings.ToLower(reason), "banned")
}

// ClassifyBan maps a human-readable ban message onto a known category by
// keyword. Unmatched text passes through verbatim.
func ClassifyBan(reason string) string {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "suspicious") || strings.Contains(lower, "security"):
		return "Suspicious Activity"
	case strings.Contains(lower, "boosting"):
		return "Boosting"
	case strings.Contains(lower, "cheating"):
		return "Cheating"
	default:
		return reason
	}
}

// IsBenignLoginError reports whether a protocol error is the known
// invalid-argument shape raised against the login.toServer packet after a
// session has already ended. Sessions hitting it are logged verbosely and
// not restarted: the credential is misconfigured, retrying cannot help.
// The match keys on the packet name so transient login failures, which
// deserve a restart, never fall into this bucket. Message-text matching is
// brittle by nature; a protocol adapter that surfaces typed errors should
// replace it.
func IsBenignLoginError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "login.toServer") &&
		strings.Contains(strings.ToLower(message), "invalid")
}
