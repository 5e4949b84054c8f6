package event

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/slotswap/slotswap-api/internal/config"
	"github.com/slotswap/slotswap-api/internal/core"
	"github.com/slotswap/slotswap-api/internal/db"
	"github.com/slotswap/slotswap-api/internal/utils"
)

// EventService представляет сервис для работы с тайм-слотами
type EventService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	registry   *core.Registry
}

// NewEventService создает новый экземпляр EventService
func NewEventService(cfg *config.Config, registry *core.Registry) *EventService {
	return &EventService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		registry:   registry,
	}
}

// CreateEvent создает новый тайм-слот
func (s *EventService) CreateEvent(c fiber.Ctx) error {
	userUUID, err := currentUser(c)
	if err != nil {
		return err
	}

	var requestData struct {
		Title     string    `json:"title"`
		StartTime time.Time `json:"start_time"`
		EndTime   time.Time `json:"end_time"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	if requestData.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Название обязательно"})
	}
	if requestData.StartTime.IsZero() || requestData.EndTime.IsZero() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Необходимо указать время начала и окончания"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	event, err := s.registry.CreateSlot(ctx, userUUID, requestData.Title, requestData.StartTime, requestData.EndTime)
	if err != nil {
		log.Printf("Ошибка создания слота: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка сохранения слота"})
	}

	return c.Status(fiber.StatusCreated).JSON(event)
}

// GetMyEvents возвращает все слоты текущего пользователя
func (s *EventService) GetMyEvents(c fiber.Ctx) error {
	userUUID, err := currentUser(c)
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	events, err := s.registry.ListOwned(ctx, userUUID)
	if err != nil {
		log.Printf("Ошибка получения слотов: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения слотов"})
	}

	return c.JSON(fiber.Map{
		"events": events,
		"count":  len(events),
	})
}

// GetMySwappableEvents возвращает слоты пользователя, доступные для обмена
func (s *EventService) GetMySwappableEvents(c fiber.Ctx) error {
	userUUID, err := currentUser(c)
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	events, err := s.registry.ListSwappable(ctx, userUUID)
	if err != nil {
		log.Printf("Ошибка получения слотов: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения слотов"})
	}

	return c.JSON(fiber.Map{
		"events": events,
		"count":  len(events),
	})
}

// UpdateEventStatus переключает статус слота (BUSY/SWAPPABLE)
func (s *EventService) UpdateEventStatus(c fiber.Ctx) error {
	userUUID, err := currentUser(c)
	if err != nil {
		return err
	}

	eventUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID слота"})
	}

	var requestData struct {
		Status string `json:"status"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	event, err := s.registry.SetStatus(ctx, eventUUID, userUUID, requestData.Status)
	if err != nil {
		return respondCoreError(c, err)
	}

	return c.JSON(event)
}

// DeleteEvent удаляет слот текущего пользователя
func (s *EventService) DeleteEvent(c fiber.Ctx) error {
	userUUID, err := currentUser(c)
	if err != nil {
		return err
	}

	eventUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID слота"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.registry.Remove(ctx, eventUUID, userUUID); err != nil {
		return respondCoreError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Слот удален",
	})
}

// currentUser извлекает идентификатор пользователя, установленный
// auth middleware. Возвращаемая ошибка обрабатывается общим
// errorHandler приложения
func currentUser(c fiber.Ctx) (uuid.UUID, error) {
	userID, _ := c.Locals("userID").(string)
	if userID == "" {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Пользователь не авторизован")
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Неверный формат ID пользователя")
	}
	return userUUID, nil
}

// respondCoreError сопоставляет ошибки протокола с HTTP-ответами
func respondCoreError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Слот не найден"})
	case errors.Is(err, core.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Слот принадлежит другому пользователю"})
	case errors.Is(err, core.ErrInvalidTransition):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Статус слота нельзя изменить: слот участвует в обмене или статус недопустим"})
	default:
		log.Printf("Ошибка операции со слотом: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Внутренняя ошибка сервера"})
	}
}
