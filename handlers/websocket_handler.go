package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/club-ladder/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin ограничивается CORS-настройками роутера.
		return true
	},
}

type WebSocketHandler struct {
	hub    *events.Hub
	logger *slog.Logger
}

func NewWebSocketHandler(hub *events.Hub, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{hub: hub, logger: logger}
}

// ServeWs обрабатывает GET /ws/seasons. С ?season_id=N клиент получает
// только события этого сезона, без него все события.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	room := events.RoomAll
	if raw := r.URL.Query().Get("season_id"); raw != "" {
		seasonID, err := strconv.Atoi(raw)
		if err != nil || seasonID <= 0 {
			http.Error(w, "invalid season_id", http.StatusBadRequest)
			return
		}
		room = events.SeasonRoom(seasonID)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту ошибкой.
		h.logger.Warn("WebSocket upgrade failed", slog.String("room", room), slog.Any("error", err))
		return
	}

	client := &events.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: room,
	}
	h.hub.Register(client)
	h.logger.Info("WebSocket client connected", slog.String("room", room), slog.String("remote", r.RemoteAddr))

	go client.WritePump()
	go client.ReadPump()
}
