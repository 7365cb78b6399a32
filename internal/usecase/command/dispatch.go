package command

import (
	"context"
	"fmt"
	"log"

	domaincmd "mail-chat-bridge/internal/domain/command"
	"mail-chat-bridge/internal/domain/draft"
	"mail-chat-bridge/internal/domain/message"
	"mail-chat-bridge/internal/domain/notify"
	"mail-chat-bridge/internal/usecase"
)

const (
	// ReadPreviewRunes bounds the body preview shown by /oku.
	ReadPreviewRunes = 1500
	// DraftPreviewRunes bounds the draft shown by /taslak so the message stays
	// under the chat's 4096 character limit.
	DraftPreviewRunes = 3800
	// DefaultInstruction is used when /taslak or /cevapla carry no argument.
	DefaultInstruction = "kısa ve nazik yanıt"

	systemInstruction = "You are an email assistant. Write concise, polite, and professional Turkish replies unless otherwise requested. " +
		"Keep thread context, avoid greeting duplication, and preserve a neutral tone."

	helpText = "<b>Mail asistanı</b>\n" +
		"/oku &lt;messageId&gt; – maili göster\n" +
		"/taslak &lt;messageId&gt; &lt;yönerge&gt; – yanıt taslağı üret\n" +
		"/cevapla &lt;messageId&gt; &lt;yönerge&gt; – taslağı üret ve yanıtla"
	notUnderstoodText = "Komut anlaşılamadı. Kullanılabilir komutlar için /start yazın."
	sentText          = "Yanıt gönderildi ✅"
)

// OutcomeKind classifies the single message a command produces.
type OutcomeKind int

const (
	OutcomeHelp OutcomeKind = iota
	OutcomeUsage
	OutcomeSummary
	OutcomeDraft
	OutcomeSent
	OutcomeFailed
	OutcomeNotUnderstood
)

// DispatchInput is input DTO.
type DispatchInput struct {
	Intent domaincmd.Intent
	Origin notify.Destination
}

// Outcome is output DTO: the one message delivered for the command.
type Outcome struct {
	Kind      OutcomeKind
	Text      string
	Delivered bool
}

// Dispatcher implements usecase.UseCase for chat commands.
type Dispatcher struct {
	mail     message.Gateway
	drafter  draft.Generator
	notifier notify.Notifier
}

var _ usecase.UseCase[DispatchInput, Outcome] = (*Dispatcher)(nil)

func NewDispatcher(mail message.Gateway, drafter draft.Generator, notifier notify.Notifier) *Dispatcher {
	return &Dispatcher{mail: mail, drafter: drafter, notifier: notifier}
}

// Execute runs one command and sends exactly one outcome message to the
// origin chat. Adapter failures are turned into the outcome message, so the
// returned error is always nil.
func (d *Dispatcher) Execute(ctx context.Context, in *DispatchInput) (*Outcome, error) {
	out := d.decide(ctx, in.Intent)
	if err := d.notifier.Notify(ctx, in.Origin, out.Text); err != nil {
		log.Printf("[dispatch] %s: notify %q failed: %v", in.Intent.Command, in.Origin, err)
		return out, nil
	}
	out.Delivered = true
	return out, nil
}

func (d *Dispatcher) decide(ctx context.Context, in domaincmd.Intent) *Outcome {
	if in.Command.NeedsTarget() && !in.HasTarget() {
		return &Outcome{Kind: OutcomeUsage, Text: notify.EscapeHTML(domaincmd.Usage(in.Command))}
	}
	switch in.Command {
	case domaincmd.Start:
		return &Outcome{Kind: OutcomeHelp, Text: helpText}
	case domaincmd.Read:
		return d.read(ctx, message.ID(in.TargetID))
	case domaincmd.Draft, domaincmd.Reply:
		return d.draftAndMaybeReply(ctx, in)
	default:
		return &Outcome{Kind: OutcomeNotUnderstood, Text: notUnderstoodText}
	}
}

func (d *Dispatcher) read(ctx context.Context, id message.ID) *Outcome {
	mail, err := d.mail.Fetch(ctx, id)
	if err != nil {
		log.Printf("[dispatch] /oku %s: fetch failed: %v", id, err)
		return failed("Mail getirilemedi: ", err)
	}
	text := fmt.Sprintf("<b>Konu:</b> %s\n<b>Kimden:</b> %s\n<b>Alındı:</b> %s\n\n%s",
		notify.EscapeHTML(mail.Subject),
		usecase.SenderLine(mail),
		notify.EscapeHTML(mail.ReceivedAt),
		notify.EscapeHTML(notify.TruncateRunes(mail.BodyPreview, ReadPreviewRunes)),
	)
	return &Outcome{Kind: OutcomeSummary, Text: text}
}

func (d *Dispatcher) draftAndMaybeReply(ctx context.Context, in domaincmd.Intent) *Outcome {
	id := message.ID(in.TargetID)

	// 1. Fetch message
	mail, err := d.mail.Fetch(ctx, id)
	if err != nil {
		log.Printf("[dispatch] %s %s: fetch failed: %v", in.Command, id, err)
		return failed("İşlem başarısız: ", err)
	}

	// 2. Generate
	text, err := d.drafter.Generate(ctx, BuildPrompt(mail, in.Argument))
	if err != nil {
		log.Printf("[dispatch] %s %s: generate failed: %v", in.Command, id, err)
		return failed("İşlem başarısız: ", err)
	}
	if in.Command == domaincmd.Draft {
		return &Outcome{Kind: OutcomeDraft, Text: "<b>Taslak:</b>\n\n" + notify.EscapeHTML(notify.TruncateRunes(text, DraftPreviewRunes))}
	}

	// 3. Send; the draft is not echoed back when this fails.
	if err := d.mail.Reply(ctx, id, text); err != nil {
		log.Printf("[dispatch] /cevapla %s: reply failed: %v", id, err)
		return failed("İşlem başarısız: ", err)
	}
	log.Printf("[dispatch] /cevapla %s: reply sent (%d chars)", id, len([]rune(text)))
	return &Outcome{Kind: OutcomeSent, Text: sentText}
}

// BuildPrompt composes the instruction pair for a reply to mail.
func BuildPrompt(mail *message.MailItem, instruction string) draft.Prompt {
	if instruction == "" {
		instruction = DefaultInstruction
	}
	user := fmt.Sprintf("Girdi yönergesi: %s\n\nÖnceki mail özeti:\nKonu: %s\nKimden: %s <%s>\nÖzet: %s",
		instruction, mail.Subject, mail.SenderName, mail.SenderAddress, mail.BodyPreview)
	return draft.Prompt{System: systemInstruction, User: user}
}

func failed(prefix string, err error) *Outcome {
	return &Outcome{Kind: OutcomeFailed, Text: prefix + usecase.ErrorText(err)}
}
