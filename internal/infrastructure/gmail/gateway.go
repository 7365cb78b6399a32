package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"golang.org/x/net/html"
	"google.golang.org/api/gmail/v1"

	"mail-chat-bridge/internal/domain/message"
)

const user = "me"

// Gateway implements message.Gateway backed by the Gmail API.
type Gateway struct {
	srv *gmail.Service
}

var _ message.Gateway = (*Gateway)(nil)

func NewGateway(srv *gmail.Service) *Gateway {
	return &Gateway{srv: srv}
}

// Fetch gets a Gmail message and projects it to a MailItem.
func (g *Gateway) Fetch(ctx context.Context, id message.ID) (*message.MailItem, error) {
	log.Printf("[gmail] Fetch: %s", id)
	gm, err := g.srv.Users.Messages.Get(user, string(id)).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail get message: %w", err)
	}
	h := headers(gm)
	item := &message.MailItem{
		ID:          id,
		Subject:     h["subject"],
		BodyPreview: collectMessageText(gm),
		ReceivedAt:  receivedAt(gm, h["date"]),
	}
	item.SenderName, item.SenderAddress = splitAddress(h["from"])
	return item, nil
}

// Reply sends text to the message's sender (or Reply-To) inside the same
// Gmail thread, with In-Reply-To and References set for other clients.
func (g *Gateway) Reply(ctx context.Context, id message.ID, text string) error {
	log.Printf("[gmail] Reply: %s", id)
	gm, err := g.srv.Users.Messages.Get(user, string(id)).Format("metadata").
		MetadataHeaders("Subject", "From", "Reply-To", "Message-ID", "References").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail get message: %w", err)
	}
	raw, err := composeReply(headers(gm), text, time.Now())
	if err != nil {
		return fmt.Errorf("compose reply: %w", err)
	}
	_, err = g.srv.Users.Messages.Send(user, &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: gm.ThreadId,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail send reply: %w", err)
	}
	return nil
}

// composeReply renders an RFC 5322 plain text reply to a message with the given
// (lower-cased) headers.
func composeReply(orig map[string]string, text string, now time.Time) ([]byte, error) {
	toField := orig["reply-to"]
	if toField == "" {
		toField = orig["from"]
	}
	to, err := mail.ParseAddressList(toField)
	if err != nil {
		return nil, fmt.Errorf("parse recipient %q: %w", toField, err)
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("To", to)
	h.SetSubject(replySubject(orig["subject"]))
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if mid := strings.TrimSpace(orig["message-id"]); mid != "" {
		h.Set("In-Reply-To", mid)
		h.Set("References", strings.TrimSpace(orig["references"]+" "+mid))
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, text); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func replySubject(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "re:") {
		return s
	}
	return "Re: " + s
}

func headers(gm *gmail.Message) map[string]string {
	m := make(map[string]string)
	if gm == nil || gm.Payload == nil {
		return m
	}
	for _, h := range gm.Payload.Headers {
		m[strings.ToLower(h.Name)] = h.Value
	}
	return m
}

func splitAddress(from string) (name, address string) {
	if from == "" {
		return "", ""
	}
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return from, ""
	}
	return addr.Name, addr.Address
}

func receivedAt(gm *gmail.Message, date string) string {
	if gm.InternalDate > 0 {
		return time.UnixMilli(gm.InternalDate).UTC().Format(time.RFC3339)
	}
	return date
}

// ===== body helpers =====

func extractHTML(p *gmail.MessagePart) string {
	if p == nil {
		return ""
	}
	if p.MimeType == "text/html" && p.Body != nil && p.Body.Data != "" {
		if data, err := base64.URLEncoding.DecodeString(p.Body.Data); err == nil {
			return string(data)
		}
	}
	for _, part := range p.Parts {
		if h := extractHTML(part); h != "" {
			return h
		}
	}
	return ""
}

// stripHTML returns the visible text of an HTML body. Script and style
// contents are dropped and entities are decoded.
func stripHTML(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	hidden := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			if name, _ := z.TagName(); isHiddenElement(name) {
				hidden++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isHiddenElement(name) && hidden > 0 {
				hidden--
			}
		case html.TextToken:
			if hidden == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isHiddenElement(name []byte) bool {
	switch string(name) {
	case "script", "style", "head", "title":
		return true
	}
	return false
}

func gatherPlainText(p *gmail.MessagePart, out *[]string) {
	if p == nil {
		return
	}
	if p.MimeType == "text/plain" && p.Body != nil && p.Body.Data != "" {
		if data, err := base64.URLEncoding.DecodeString(p.Body.Data); err == nil {
			*out = append(*out, string(data))
		}
	}
	for _, part := range p.Parts {
		gatherPlainText(part, out)
	}
}

// collectMessageText prefers text/plain parts, falls back to stripped HTML
// and finally to the snippet.
func collectMessageText(msg *gmail.Message) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	var plainParts []string
	gatherPlainText(msg.Payload, &plainParts)
	plainText := strings.TrimSpace(strings.Join(plainParts, "\n"))
	if plainText != "" {
		return plainText
	}
	if html := extractHTML(msg.Payload); html != "" {
		if txt := stripHTML(html); txt != "" {
			return txt
		}
	}
	return msg.Snippet
}
