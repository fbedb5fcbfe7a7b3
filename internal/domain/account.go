package domain

// AccountKind selects the authentication pipeline used for an account.
type AccountKind string

const (
	// KindDelegated authenticates through the interactive browser consent
	// flow, or a stored refresh token when one exists.
	KindDelegated AccountKind = "microsoft"
	// KindCookieReplay authenticates by replaying an exported browser
	// cookie jar through the identity provider's redirect chain.
	KindCookieReplay AccountKind = "cookie"
)

// AccountRef identifies one account file in the accounts directory. It is
// immutable once selected; connection attempts consume it, never mutate it.
type AccountRef struct {
	File string
	Kind AccountKind
}
