package ports

import "context"

// Notifier pushes operator alerts for events that remove fleet capacity
// permanently (bans, locked accounts).
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// NopNotifier discards alerts.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string) error { return nil }
