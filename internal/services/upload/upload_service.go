package upload

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/slotswap/slotswap-api/internal/config"
	"github.com/slotswap/slotswap-api/internal/utils"
)

// UploadService выдает подписанные параметры для загрузки
// аватаров пользователей в Cloudinary
type UploadService struct {
	cfg          *config.Config
	jwtService   *utils.JWTService
	uploadFolder string
}

// NewUploadService создает новый экземпляр UploadService
func NewUploadService(cfg *config.Config) *UploadService {
	return &UploadService{
		cfg:          cfg,
		jwtService:   utils.NewJWTService(cfg.JWTSecret),
		uploadFolder: cfg.CloudinaryConfig.UploadFolder,
	}
}

// GenerateSignature создаёт корректную подпись для Cloudinary
func (s *UploadService) GenerateSignature(params map[string]string) string {
	// Сортируем ключи параметров
	var keys []string
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Формируем строку для подписи
	var signParts []string
	for _, k := range keys {
		signParts = append(signParts, fmt.Sprintf("%s=%s", k, params[k]))
	}
	signatureString := strings.Join(signParts, "&")

	// Добавляем API-секрет в конец строки
	signatureString += s.cfg.CloudinaryConfig.APISecret

	// Создаем SHA-1 хеш
	h := sha1.New()
	h.Write([]byte(signatureString))

	// Возвращаем подпись в виде шестнадцатеричной строки
	return hex.EncodeToString(h.Sum(nil))
}

// GenerateUploadParams создаёт параметры для загрузки аватара
func (s *UploadService) GenerateUploadParams(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	// Текущий timestamp
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	// Параметры для подписи
	params := map[string]string{
		"timestamp": timestamp,
		"folder":    s.uploadFolder,
	}

	// Генерируем подпись
	signature := s.GenerateSignature(params)

	// Возвращаем параметры
	return c.JSON(fiber.Map{
		"timestamp":  timestamp,
		"signature":  signature,
		"folder":     s.uploadFolder,
		"api_key":    s.cfg.CloudinaryConfig.APIKey,
		"cloud_name": s.cfg.CloudinaryConfig.CloudName,
		"user_id":    userID,
	})
}
