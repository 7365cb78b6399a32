package notify

import "context"

// Destination identifies a chat that receives messages.
// The zero value means "the notifier's default destination".
type Destination string

// Notifier delivers formatted text to a chat.
type Notifier interface {
	Notify(ctx context.Context, dest Destination, text string) error
}
