package event

import (
	"github.com/gofiber/fiber/v3"

	"github.com/slotswap/slotswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API тайм-слотов
func (s *EventService) SetupRoutes(app *fiber.App) {
	// Группа для API слотов
	api := app.Group("/api/events")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	// Маршрут для создания слота
	api.Post("/", s.CreateEvent)

	// Маршрут для получения своих слотов
	api.Get("/", s.GetMyEvents)

	// Маршрут для получения своих обмениваемых слотов
	api.Get("/swappable", s.GetMySwappableEvents)

	// Маршрут для смены статуса слота
	api.Put("/:id", s.UpdateEventStatus)

	// Маршрут для удаления слота
	api.Delete("/:id", s.DeleteEvent)
}
