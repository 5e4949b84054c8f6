package swap

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/slotswap/slotswap-api/internal/config"
	"github.com/slotswap/slotswap-api/internal/core"
	"github.com/slotswap/slotswap-api/internal/db"
	"github.com/slotswap/slotswap-api/internal/utils"
	"github.com/slotswap/slotswap-api/internal/websocket"
)

// SwapService представляет сервис для работы с обменами тайм-слотов
type SwapService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	registry   *core.Registry
	negotiator *core.Negotiator
	ws         *websocket.Manager
}

// NewSwapService создает новый экземпляр SwapService
func NewSwapService(cfg *config.Config, registry *core.Registry, negotiator *core.Negotiator, ws *websocket.Manager) *SwapService {
	return &SwapService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		registry:   registry,
		negotiator: negotiator,
		ws:         ws,
	}
}

// GetSwappableSlots возвращает обмениваемые слоты других пользователей
func (s *SwapService) GetSwappableSlots(c fiber.Ctx) error {
	userUUID, err := currentUser(c)
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	slots, err := s.registry.ListSwappableExcluding(ctx, userUUID)
	if err != nil {
		log.Printf("Ошибка получения обмениваемых слотов: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения слотов"})
	}

	return c.JSON(fiber.Map{
		"slots": slots,
		"count": len(slots),
	})
}

// CreateSwapRequest создает новое предложение обмена
func (s *SwapService) CreateSwapRequest(c fiber.Ctx) error {
	userUUID, err := currentUser(c)
	if err != nil {
		return err
	}

	// Извлекаем данные из запроса
	var requestData struct {
		MySlotID    string `json:"my_slot_id"`
		TheirSlotID string `json:"their_slot_id"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	if requestData.MySlotID == "" || requestData.TheirSlotID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Необходимо указать оба слота для обмена"})
	}

	mySlotUUID, err := uuid.Parse(requestData.MySlotID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID предлагаемого слота"})
	}

	theirSlotUUID, err := uuid.Parse(requestData.TheirSlotID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID запрашиваемого слота"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	request, err := s.negotiator.Propose(ctx, userUUID, mySlotUUID, theirSlotUUID)
	if err != nil {
		return respondSwapError(c, err)
	}

	// Уведомляем владельца запрашиваемого слота
	s.ws.NotifySwapRequest(request.ResponderID.String(), websocket.EventSwapRequestCreated, request.ID, request)

	return c.Status(fiber.StatusCreated).JSON(request)
}

// RespondToSwapRequest обрабатывает ответ на предложение обмена
func (s *SwapService) RespondToSwapRequest(c fiber.Ctx) error {
	userUUID, err := currentUser(c)
	if err != nil {
		return err
	}

	requestUUID, err := uuid.Parse(c.Params("requestId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID предложения обмена"})
	}

	var requestData struct {
		Accept *bool `json:"accept"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	if requestData.Accept == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Необходимо указать accept: true или false"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	request, err := s.negotiator.Respond(ctx, userUUID, requestUUID, *requestData.Accept)
	if err != nil {
		return respondSwapError(c, err)
	}

	// Уведомляем инициатора о решении
	s.ws.NotifySwapRequest(request.RequesterID.String(), websocket.EventSwapRequestResponded, request.ID, request)

	var message string
	if *requestData.Accept {
		message = "Обмен выполнен"
	} else {
		message = "Предложение обмена отклонено"
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
		"request": request,
	})
}

// GetMySwapRequests возвращает входящие и исходящие предложения обмена
func (s *SwapService) GetMySwapRequests(c fiber.Ctx) error {
	userUUID, err := currentUser(c)
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	requests, err := s.negotiator.ListForUser(ctx, userUUID)
	if err != nil {
		log.Printf("Ошибка получения предложений обмена: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения предложений обмена"})
	}

	return c.JSON(requests)
}

// currentUser извлекает идентификатор пользователя, установленный
// auth middleware
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

// respondSwapError сопоставляет ошибки протокола обмена с HTTP-ответами
func respondSwapError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Слот или предложение обмена не найдены"})
	case errors.Is(err, core.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Нет прав на эту операцию"})
	case errors.Is(err, core.ErrInvalidRequest):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Нельзя предложить обмен самому себе"})
	case errors.Is(err, core.ErrInvalidState):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Оба слота должны быть доступны для обмена"})
	case errors.Is(err, core.ErrAlreadyActioned):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Это предложение уже обработано"})
	case errors.Is(err, core.ErrTransactionFailed):
		log.Printf("Транзакция обмена не выполнена: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Обмен не выполнен, изменения отменены"})
	default:
		log.Printf("Ошибка операции обмена: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Внутренняя ошибка сервера"})
	}
}
