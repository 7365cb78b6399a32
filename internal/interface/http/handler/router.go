package handler

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// NewApp wires the ingress routes. Panics in a handler become a 500 for that
// request only.
func NewApp(graph *GraphHandler, telegram *TelegramHandler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "mail-chat-bridge",
		DisableStartupMessage: true,
		BodyLimit:             2 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				log.Printf("[http] %s %s: %v", c.Method(), c.Path(), err)
			}
			return c.Status(code).SendString(err.Error())
		},
	})
	app.Use(recover.New())
	app.Use(RequestID())

	RegisterHealthRoutes(app)
	graph.Register(app)
	telegram.Register(app)
	return app
}
