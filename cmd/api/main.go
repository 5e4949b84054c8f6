package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/robfig/cron/v3"

	"github.com/slotswap/slotswap-api/internal/config"
	"github.com/slotswap/slotswap-api/internal/core"
	"github.com/slotswap/slotswap-api/internal/db"
	"github.com/slotswap/slotswap-api/internal/services/auth"
	"github.com/slotswap/slotswap-api/internal/services/event"
	"github.com/slotswap/slotswap-api/internal/services/swap"
	"github.com/slotswap/slotswap-api/internal/services/upload"
	"github.com/slotswap/slotswap-api/internal/storage/postgres"
	"github.com/slotswap/slotswap-api/internal/utils"
	"github.com/slotswap/slotswap-api/internal/websocket"
)

func main() {
	// Загружаем конфигурацию
	cfg := config.LoadConfig()

	// Инициализируем базу данных
	if err := db.InitDB(cfg); err != nil {
		log.Fatalf("❌ Ошибка при инициализации базы данных: %v", err)
	}
	defer db.CloseDB()

	// Применяем схему
	if err := db.RunMigrations(); err != nil {
		log.Fatalf("❌ Ошибка при применении схемы базы данных: %v", err)
	}

	// Создаём хранилище и ядро протокола обмена
	store := postgres.NewStore(db.Pool)
	registry := core.NewRegistry(store)
	negotiator := core.NewNegotiator(store, cfg.SwapLockTTL)

	// Создаём экземпляр Fiber
	app := fiber.New(fiber.Config{
		AppName:      "SlotSwap API",
		ErrorHandler: errorHandler,
	})

	// Добавляем middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	// Создаём менеджер WebSocket уведомлений
	wsManager := websocket.NewManager()
	defer wsManager.Shutdown()

	// Создаём сервисы
	authService := auth.NewAuthService(cfg, store)
	eventService := event.NewEventService(cfg, registry)
	swapService := swap.NewSwapService(cfg, registry, negotiator, wsManager)
	uploadService := upload.NewUploadService(cfg)

	// Регистрируем маршруты
	authService.SetupRoutes(app)
	eventService.SetupRoutes(app)
	swapService.SetupRoutes(app)
	uploadService.SetupRoutes(app)

	// Запускаем WebSocket сервер
	go func() {
		addr := ":" + cfg.WSPort
		log.Printf("✅ WebSocket сервер запущен на порту %s", cfg.WSPort)
		if err := websocket.ListenAndServe(addr, wsManager, utils.NewJWTService(cfg.JWTSecret)); err != nil {
			log.Fatalf("❌ Ошибка WebSocket сервера: %v", err)
		}
	}()

	// Запускаем сборщик просроченных блокировок
	scheduler := cron.New()
	_, err := scheduler.AddFunc("@every "+cfg.ReclaimInterval.String(), func() {
		reclaimed, err := negotiator.ReclaimExpired(context.Background())
		if err != nil {
			log.Printf("Ошибка возврата просроченных блокировок: %v", err)
			return
		}
		if reclaimed > 0 {
			log.Printf("Возвращено слотов по просроченным обменам: %d", reclaimed)
		}
	})
	if err != nil {
		log.Fatalf("❌ Ошибка настройки сборщика блокировок: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Запускаем сервер
	log.Printf("✅ SlotSwap API запущен на порту %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}

// errorHandler обрабатывает ошибки Fiber
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	// Проверяем, является ли ошибка из Fiber
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	// Отправляем ошибку в JSON
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
