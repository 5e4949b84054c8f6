package websocket

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/slotswap/slotswap-api/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin проверяется на уровне reverse proxy
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler принимает WebSocket соединения. Токен передается
// параметром запроса, так как браузерный WebSocket API
// не поддерживает заголовок Authorization
func Handler(manager *Manager, jwtService *utils.JWTService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		userID, err := jwtService.ExtractUserID(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("Ошибка апгрейда WebSocket соединения: %v", err)
			return
		}

		client := NewClient(userID, conn, manager)
		client.Start()
	}
}

// ListenAndServe запускает отдельный HTTP-сервер для WebSocket соединений
func ListenAndServe(addr string, manager *Manager, jwtService *utils.JWTService) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", Handler(manager, jwtService))
	return http.ListenAndServe(addr, mux)
}
