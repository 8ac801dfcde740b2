package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/bracketlab/bracket-engine/brackets"
	"github.com/bracketlab/bracket-engine/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: ограничить Origin доменом внешнего UI перед выкаткой.
		return true
	},
}

type WebSocketHandler struct {
	hub          *brackets.Hub
	queueService services.QueueService
}

func NewWebSocketHandler(hub *brackets.Hub, qs services.QueueService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          hub,
		queueService: qs,
	}
}

// ServeWs обрабатывает GET /ws/events/{eventID}: подключает клиента к
// комнате события для получения live-обновлений сеток и очереди.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	// Несуществующее событие не получает комнату.
	if _, err := h.queueService.ListQueue(r.Context(), eventID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade websocket connection",
			slog.Int("event_id", eventID),
			slog.Any("error", err),
		)
		return
	}

	client := &brackets.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: fmt.Sprintf("event_%d", eventID),
	}
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
