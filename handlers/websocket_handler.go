package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/bracket-engine/brackets"
	"github.com/Dosada05/bracket-engine/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict Origin to the frontend hosts before exposing
		// the socket publicly.
		return true
	},
}

type WebSocketHandler struct {
	hub    *brackets.Hub
	logger *slog.Logger
}

func NewWebSocketHandler(hub *brackets.Hub, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, logger: logger}
}

// ServeWs подписывает клиента на обновления одной фазы.
// Клиент подключается к /ws/phases/{phaseID}.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	phaseID, err := getIDFromURL(r, "phaseID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade already replied to the client.
		h.logger.Warn("failed to upgrade websocket connection",
			slog.Int("phase_id", phaseID), slog.Any("error", err))
		return
	}

	client := &brackets.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: services.PhaseRoom(phaseID),
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	h.logger.Info("websocket client joined phase room",
		slog.Int("phase_id", phaseID), slog.String("room", client.Room))
}
