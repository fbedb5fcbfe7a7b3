package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoProxyAvailable means the proxy pool had nothing usable to
	// offer. Callers must fail fast, not retry: an empty pool disables
	// the fleet rather than erroring it.
	ErrNoProxyAvailable = errors.New("no proxy available")

	// ErrAccountLocked is permanent. The caller should delete the stored
	// credential and abandon the account for this run.
	ErrAccountLocked = errors.New("account is locked")

	// ErrTokenExchange covers a failed identity-provider code or refresh
	// exchange. Retryable at the caller's discretion.
	ErrTokenExchange = errors.New("token exchange failed")

	// ErrIncompleteProfile means the chain finished but identity, display
	// name, ownership, or the final access token did not all resolve.
	ErrIncompleteProfile = errors.New("incomplete game profile")

	ErrInvalidProxyFormat = errors.New("invalid proxy format")

	ErrCredentialNotFound = errors.New("credential not found")
)

// ChainStageError tags a game-service chain break with the hop that failed.
type ChainStageError struct {
	Stage string
	Err   error
}

func (e *ChainStageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("identity chain broke at %s", e.Stage)
	}
	return fmt.Sprintf("identity chain broke at %s: %v", e.Stage, e.Err)
}

func (e *ChainStageError) Unwrap() error { return e.Err }
