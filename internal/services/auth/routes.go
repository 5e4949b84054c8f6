package auth

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/slotswap/slotswap-api/internal/db"
	"github.com/slotswap/slotswap-api/internal/middleware"
	"github.com/slotswap/slotswap-api/internal/storage"
)

// SetupRoutes регистрирует маршруты в Fiber
func (s *AuthService) SetupRoutes(app *fiber.App) {
	app.Post("/api/auth/telegram", s.TelegramAuthHandler)

	// Защищенные маршруты
	protected := app.Group("/api")
	protected.Use(middleware.AuthMiddleware(s.jwtService))

	// Профиль текущего пользователя
	protected.Get("/profile", func(c fiber.Ctx) error {
		userID := c.Locals("userID").(string)
		userUUID, err := uuid.Parse(userID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
		}

		ctx, cancel := db.GetContext()
		defer cancel()

		user, err := s.store.Users().GetByID(ctx, userUUID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Пользователь не найден"})
			}
			log.Printf("Ошибка получения пользователя: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения профиля"})
		}

		return c.JSON(user)
	})
}
