// Package routes defines the API routing configuration.
package routes

import (
	"github.com/gofiber/fiber/v2"

	"fraudsentry/internal/handlers"
)

// Deps carries the initialized components the routes need.
type Deps struct {
	Transactions *handlers.TransactionHandler
	Status       *handlers.StatusHandler
	AlertSocket  *handlers.AlertSocketHandler
}

// Setup configures all application routes.
func Setup(app *fiber.App, d Deps) {
	app.Get("/health", handlers.HealthCheck)

	api := app.Group("/api/v1")
	api.Post("/transactions", d.Transactions.Submit)
	api.Get("/transactions/:id/assessment", d.Transactions.GetAssessment)
	api.Get("/status", d.Status.Status)

	app.Use("/ws", d.AlertSocket.Upgrade)
	app.Get("/ws/alerts", d.AlertSocket.Serve())
}
