package routes

import (
	"postback-relay/internal/controller"

	"github.com/gofiber/fiber/v2"
)

// Register attaches all HTTP routes to the Fiber app.
func Register(app *fiber.App, postbackController controller.PostbackController) {
	app.Post("/integrations/:kind/postback", postbackController.ReceivePostback)

	app.Get("/health", postbackController.Health)
	app.Get("/ready", postbackController.Ready)
}
