package auth

import (
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/slotswap/slotswap-api/internal/config"
	"github.com/slotswap/slotswap-api/internal/db"
	"github.com/slotswap/slotswap-api/internal/models"
	"github.com/slotswap/slotswap-api/internal/storage"
	"github.com/slotswap/slotswap-api/internal/utils"
)

// AuthService – структура для обработки авторизации
type AuthService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	store      storage.Store
}

// NewAuthService – конструктор AuthService
func NewAuthService(cfg *config.Config, store storage.Store) *AuthService {
	return &AuthService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		store:      store,
	}
}

// GetJWTService возвращает сервис JWT для настройки middleware
func (s *AuthService) GetJWTService() *utils.JWTService {
	return s.jwtService
}

// TelegramAuthHandler проверяет initData, создает или обновляет
// пользователя и возвращает JWT
func (s *AuthService) TelegramAuthHandler(c fiber.Ctx) error {
	var payload struct {
		InitData string `json:"init_data"`
	}

	if err := c.Bind().Body(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	// Проверяем initData
	expiration := 24 * time.Hour
	if err := initdata.Validate(payload.InitData, s.cfg.TelegramBotToken, expiration); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid Telegram data"})
	}

	// Парсим данные
	data, err := initdata.Parse(payload.InitData)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to parse initData"})
	}

	name := strings.TrimSpace(data.User.FirstName + " " + data.User.LastName)
	if name == "" {
		name = data.User.Username
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.store.Users().UpsertTelegram(ctx, &models.TelegramProfile{
		TelegramID: data.User.ID,
		Name:       name,
		Username:   data.User.Username,
		PhotoURL:   data.User.PhotoURL,
	})
	if err != nil {
		log.Printf("Ошибка сохранения пользователя: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save user"})
	}

	// Генерируем JWT
	jwtToken, err := s.jwtService.GenerateToken(user.ID.String())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate JWT"})
	}

	return c.JSON(fiber.Map{
		"token": jwtToken,
		"user":  user,
	})
}
