package handler

import (
	"encoding/json"
	"log"

	"github.com/gofiber/fiber/v2"

	"mail-chat-bridge/internal/usecase"
	"mail-chat-bridge/internal/usecase/notification"
)

// GraphAckText answers a plain GET without a validation token.
const GraphAckText = "graph notifications"

// changeNotification is the part of a Microsoft Graph change notification
// the reducer reads.
type changeNotification struct {
	ResourceData *struct {
		ID string `json:"id"`
	} `json:"resourceData"`
}

type notificationBatch struct {
	Value []changeNotification `json:"value"`
}

// GraphHandler receives mailbox change notifications.
type GraphHandler struct {
	uc usecase.UseCase[notification.ReduceInput, notification.ReduceOutput]
}

func NewGraphHandler(uc usecase.UseCase[notification.ReduceInput, notification.ReduceOutput]) *GraphHandler {
	return &GraphHandler{uc: uc}
}

// Register registers routes to app.
func (h *GraphHandler) Register(app *fiber.App) {
	app.Get("/graph/notifications", h.validate)
	app.Post("/graph/notifications", h.receive)
}

// validate answers the subscription handshake.
func (h *GraphHandler) validate(c *fiber.Ctx) error {
	if token := c.Query("validationToken"); token != "" {
		return sendPlain(c, token)
	}
	return sendPlain(c, GraphAckText)
}

func (h *GraphHandler) receive(c *fiber.Ctx) error {
	// Graph performs the subscription handshake with a POST carrying the token
	if token := c.Query("validationToken"); token != "" {
		return sendPlain(c, token)
	}

	events, err := decodeBatch(c.Body())
	if err != nil {
		log.Printf("[handler] %s graph: malformed batch: %v", requestID(c), err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	log.Printf("[handler] %s graph: %d events", requestID(c), len(events))

	if _, err := h.uc.Execute(c.Context(), &notification.ReduceInput{Events: events}); err != nil {
		log.Printf("[handler] %s graph: reduce failed: %v", requestID(c), err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// decodeBatch validates the payload into ChangeEvents. An empty body is an
// empty batch.
func decodeBatch(body []byte) ([]notification.ChangeEvent, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var batch notificationBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, err
	}
	events := make([]notification.ChangeEvent, 0, len(batch.Value))
	for _, n := range batch.Value {
		var ev notification.ChangeEvent
		if n.ResourceData != nil {
			ev.ResourceMessageID = n.ResourceData.ID
		}
		events = append(events, ev)
	}
	return events, nil
}

func sendPlain(c *fiber.Ctx, s string) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(fiber.StatusOK).SendString(s)
}
