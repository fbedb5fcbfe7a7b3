// Package notify delivers fleet alerts through Shoutrrr service URLs.
package notify

import (
	"context"
	"fmt"

	"github.com/nicholas-fedor/shoutrrr"

	"github.com/arven-dev/botfleet/internal/ports"
)

// Sender abstracts message dispatch so Notifier can be tested without
// hitting real services.
type Sender interface {
	Send(serviceURL, message string) error
}

// ShoutrrrSender dispatches via the Shoutrrr library.
type ShoutrrrSender struct{}

func (ShoutrrrSender) Send(url, message string) error {
	return shoutrrr.Send(url, message)
}

// Notifier sends each message to a single configured Shoutrrr URL.
// An empty URL yields a no-op notifier.
type Notifier struct {
	url    string
	sender Sender
}

var _ ports.Notifier = (*Notifier)(nil)

func New(serviceURL string, sender Sender) *Notifier {
	if sender == nil {
		sender = ShoutrrrSender{}
	}
	return &Notifier{url: serviceURL, sender: sender}
}

func (n *Notifier) Notify(ctx context.Context, message string) error {
	if n.url == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.sender.Send(n.url, message); err != nil {
		return fmt.Errorf("dispatching notification: %w", err)
	}
	return nil
}
