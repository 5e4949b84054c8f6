package swap

import (
	"github.com/gofiber/fiber/v3"

	"github.com/slotswap/slotswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API обменов
func (s *SwapService) SetupRoutes(app *fiber.App) {
	// Группа для API обменов
	api := app.Group("/api/swap")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	// Маршрут для получения обмениваемых слотов других пользователей
	api.Get("/swappable-slots", s.GetSwappableSlots)

	// Маршрут для создания предложения обмена
	api.Post("/swap-request", s.CreateSwapRequest)

	// Маршрут для получения своих предложений обмена
	api.Get("/requests", s.GetMySwapRequests)

	// Маршрут для ответа на предложение обмена
	api.Post("/swap-response/:requestId", s.RespondToSwapRequest)
}
