package message

import "context"

// Gateway abstracts the remote mailbox.
// Implementations live in the infrastructure layer (Microsoft Graph, Gmail).
type Gateway interface {
	// Fetch returns the current state of the message with the given id.
	Fetch(ctx context.Context, id ID) (*MailItem, error)
	// Reply sends text as a reply to the message, keeping its thread.
	Reply(ctx context.Context, id ID, text string) error
}
