package telegram

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"mail-chat-bridge/internal/config"
	"mail-chat-bridge/internal/domain/notify"
	"mail-chat-bridge/internal/infrastructure/transport"
)

// DefaultAPIBase is the Bot API root.
const DefaultAPIBase = "https://api.telegram.org"

// pollTimeout is only used by getUpdates, which the webhook setup never calls.
const pollTimeout = time.Minute

// SendError is a failed sendMessage call. Its text never contains the bot token.
type SendError struct {
	err error
}

func (e *SendError) Error() string {
	return "telegram sendMessage: " + transport.RedactURL(e.err.Error())
}

func (e *SendError) Unwrap() error { return e.err }

// Notifier implements notify.Notifier with the sendMessage method.
// Text is sent with parse_mode=HTML, so callers escape interpolated values.
type Notifier struct {
	token       string
	defaultChat notify.Destination
	logBodies   bool
	api         *bot.Bot
}

var _ notify.Notifier = (*Notifier)(nil)

func NewNotifier(cfg *config.Config) *Notifier {
	n := &Notifier{
		token:       cfg.TelegramToken,
		defaultChat: notify.Destination(cfg.TelegramChatID),
		logBodies:   cfg.HTTPLogBodies,
	}
	n.api = n.newBot(DefaultAPIBase)
	return n
}

// WithAPIBase points the notifier at another Bot API root.
func (n *Notifier) WithAPIBase(base string) *Notifier {
	n.api = n.newBot(base)
	return n
}

// newBot returns nil without a token.
func (n *Notifier) newBot(base string) *bot.Bot {
	if n.token == "" {
		return nil
	}
	b, err := bot.New(n.token,
		bot.WithServerURL(strings.TrimRight(base, "/")),
		bot.WithHTTPClient(pollTimeout, transport.Wrap(nil, "telegram", n.logBodies)),
		bot.WithSkipGetMe(),
	)
	if err != nil {
		log.Printf("[telegram] client init failed: %s", transport.RedactURL(err.Error()))
		return nil
	}
	return b
}

// Notify sends text to dest, or to the default chat when dest is empty.
// Without a bot token or a resolvable chat it does nothing.
func (n *Notifier) Notify(ctx context.Context, dest notify.Destination, text string) error {
	if dest == "" {
		dest = n.defaultChat
	}
	if n.api == nil || dest == "" {
		log.Printf("[telegram] not configured, dropping message (%d chars)", len([]rune(text)))
		return nil
	}

	_, err := n.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:             string(dest),
		Text:               text,
		ParseMode:          models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: bot.True()},
	})
	if err != nil {
		return &SendError{err: err}
	}
	return nil
}
