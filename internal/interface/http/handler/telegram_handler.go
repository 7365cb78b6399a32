package handler

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	domaincmd "mail-chat-bridge/internal/domain/command"
	"mail-chat-bridge/internal/domain/notify"
	"mail-chat-bridge/internal/usecase"
	ucmd "mail-chat-bridge/internal/usecase/command"
)

// SecretHeader carries the secret_token given to setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type telegramUpdate struct {
	UpdateID      int64            `json:"update_id"`
	Message       *telegramMessage `json:"message"`
	EditedMessage *telegramMessage `json:"edited_message"`
}

type telegramMessage struct {
	MessageID int64 `json:"message_id"`
	Chat      *struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Text string `json:"text"`
}

// TelegramHandler receives bot updates and dispatches chat commands.
type TelegramHandler struct {
	uc     usecase.UseCase[ucmd.DispatchInput, ucmd.Outcome]
	secret string
}

// NewTelegramHandler creates the handler; an empty secret disables the header check.
func NewTelegramHandler(uc usecase.UseCase[ucmd.DispatchInput, ucmd.Outcome], secret string) *TelegramHandler {
	return &TelegramHandler{uc: uc, secret: secret}
}

// Register registers routes to app.
func (h *TelegramHandler) Register(app *fiber.App) {
	app.Post("/telegram/webhook", h.webhook)
}

func (h *TelegramHandler) webhook(c *fiber.Ctx) error {
	if h.secret != "" {
		got := c.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			log.Printf("[handler] %s telegram: secret mismatch", requestID(c))
			return c.SendStatus(fiber.StatusUnauthorized)
		}
	}

	var upd telegramUpdate
	if err := json.Unmarshal(c.Body(), &upd); err != nil {
		log.Printf("[handler] %s telegram: malformed update: %v", requestID(c), err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	msg := upd.Message
	if msg == nil {
		msg = upd.EditedMessage
	}
	if msg == nil || msg.Text == "" {
		return c.SendStatus(fiber.StatusOK)
	}
	intent, ok := domaincmd.Parse(msg.Text)
	if !ok {
		return c.SendStatus(fiber.StatusOK)
	}

	// without a chat the outcome goes to the default destination
	var origin notify.Destination
	if msg.Chat != nil {
		origin = notify.Destination(strconv.FormatInt(msg.Chat.ID, 10))
	}
	log.Printf("[handler] %s telegram: update=%d command=%s target=%q", requestID(c), upd.UpdateID, intent.Command, intent.TargetID)

	out, err := h.uc.Execute(c.Context(), &ucmd.DispatchInput{Intent: intent, Origin: origin})
	if err != nil {
		log.Printf("[handler] %s telegram: dispatch failed: %v", requestID(c), err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	if !out.Delivered {
		log.Printf("[handler] %s telegram: outcome not delivered", requestID(c))
	}
	return c.SendStatus(fiber.StatusOK)
}
