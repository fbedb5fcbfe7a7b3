package domain

import "time"

// Credential is a full game-service login record. expiresAt is
// authoritative: a record at or past it must be refreshed before use, and a
// refresh always replaces the whole record, never part of it.
type Credential struct {
	Kind         AccountKind
	Name         string
	IdentityID   string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	OwnsGame     bool
}

// Expired reports whether the credential must be refreshed before use.
func (c Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Complete reports whether the game-service chain resolved everything a
// usable login needs. Partial resolution counts as failure even when some
// chain hops succeeded.
func (c Credential) Complete() bool {
	return c.AccessToken != "" && c.Name != "" && c.IdentityID != "" && c.OwnsGame
}
