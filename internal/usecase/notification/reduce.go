package notification

import (
	"context"
	"fmt"
	"log"

	"mail-chat-bridge/internal/domain/message"
	"mail-chat-bridge/internal/domain/notify"
	"mail-chat-bridge/internal/usecase"
)

// PreviewRunes bounds the body preview in a new-mail notification.
const PreviewRunes = 500

// ChangeEvent is one entry of a mailbox change batch.
type ChangeEvent struct {
	ResourceMessageID string
}

// ReduceInput is input DTO.
type ReduceInput struct {
	Events []ChangeEvent
}

// ReduceOutput counts what happened to the batch.
type ReduceOutput struct {
	Notified     int // new-mail notifications for fetched messages
	FetchFailed  int // "could not fetch" notifications
	Skipped      int // events without a message id
	NotifyFailed int // notifications the chat refused
}

// Reducer turns mailbox change batches into chat notifications sent to the
// notifier's default destination.
type Reducer struct {
	mail     message.Gateway
	notifier notify.Notifier
}

var _ usecase.UseCase[ReduceInput, ReduceOutput] = (*Reducer)(nil)

func NewReducer(mail message.Gateway, notifier notify.Notifier) *Reducer {
	return &Reducer{mail: mail, notifier: notifier}
}

// Execute processes every event of the batch in order. A failing event never
// stops the rest of the batch and the returned error is always nil.
func (r *Reducer) Execute(ctx context.Context, in *ReduceInput) (*ReduceOutput, error) {
	out := &ReduceOutput{}
	for _, ev := range in.Events {
		if ev.ResourceMessageID == "" {
			out.Skipped++
			continue
		}
		id := message.ID(ev.ResourceMessageID)

		var text string
		mail, err := r.mail.Fetch(ctx, id)
		if err != nil {
			log.Printf("[reduce] fetch %s failed: %v", id, err)
			out.FetchFailed++
			text = fmt.Sprintf("Yeni e-posta alındı fakat getirilemedi (<code>%s</code>): %s",
				notify.EscapeHTML(string(id)), usecase.ErrorText(err))
		} else {
			out.Notified++
			text = NewMailText(mail)
		}
		if err := r.notifier.Notify(ctx, "", text); err != nil {
			log.Printf("[reduce] notify for %s failed: %v", id, err)
			out.NotifyFailed++
		}
	}
	log.Printf("[reduce] batch done: events=%d notified=%d fetchFailed=%d skipped=%d notifyFailed=%d",
		len(in.Events), out.Notified, out.FetchFailed, out.Skipped, out.NotifyFailed)
	return out, nil
}

// NewMailText formats the notification for a freshly arrived message.
func NewMailText(mail *message.MailItem) string {
	return fmt.Sprintf("<b>Yeni e-posta</b>\n<b>Konu:</b> %s\n<b>Kimden:</b> %s\n<b>Mesaj ID:</b> <code>%s</code>\n\n%s",
		notify.EscapeHTML(mail.Subject),
		usecase.SenderLine(mail),
		notify.EscapeHTML(string(mail.ID)),
		notify.EscapeHTML(notify.TruncateRunes(mail.BodyPreview, PreviewRunes)),
	)
}
