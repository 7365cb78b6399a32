package message

// ID represents a mailbox message identifier as issued by the mail provider.
type ID string

// MailItem is a read-only projection of a remote mail message. It is fetched
// fresh for every command and never cached.
type MailItem struct {
	ID            ID
	Subject       string
	SenderName    string
	SenderAddress string
	BodyPreview   string
	ReceivedAt    string // provider timestamp, rendered verbatim
}
