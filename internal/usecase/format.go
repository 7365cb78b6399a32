package usecase

import (
	"fmt"

	"mail-chat-bridge/internal/domain/message"
	"mail-chat-bridge/internal/domain/notify"
)

// SenderLine renders "Name <address>" with both parts escaped for chat markup.
func SenderLine(m *message.MailItem) string {
	return fmt.Sprintf("%s &lt;%s&gt;", notify.EscapeHTML(m.SenderName), notify.EscapeHTML(m.SenderAddress))
}

// ErrorText renders an adapter error for embedding into a chat message.
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	return notify.EscapeHTML(err.Error())
}
