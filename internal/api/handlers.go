package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rajanikanta17/Realtime-Code-Editor/internal/metrics"
	"github.com/rajanikanta17/Realtime-Code-Editor/internal/models"
	"github.com/rajanikanta17/Realtime-Code-Editor/internal/session"
	"github.com/rajanikanta17/Realtime-Code-Editor/internal/utils"
)

type Handlers struct {
	log     *zap.Logger
	manager *session.Manager
	store   session.Store
}

func NewHandlers(log *zap.Logger, manager *session.Manager, store session.Store) *Handlers {
	return &Handlers{log: log, manager: manager, store: store}
}

// Health is the liveness probe: process status plus the in-memory tracked
// room count.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	utils.JSON(w, http.StatusOK, models.HealthResponse{
		Status:       "ok",
		TrackedRooms: h.manager.TrackedRooms(),
	})
}

// RoomSummary returns a room's durable summary (no code body). 404 when no
// durable record exists; absence of in-memory state does not matter here.
func (h *Handlers) RoomSummary(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	room, err := h.store.FindRoom(ctx, roomID)
	if errors.Is(err, session.ErrRoomNotFound) {
		utils.JSON(w, http.StatusNotFound, models.ErrorResponse{
			Code:    "room_not_found",
			Message: "No room exists with that id",
		})
		return
	}
	if err != nil {
		h.log.Error("room summary lookup failed", zap.String("room", roomID), zap.Error(err))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code:    "internal_error",
			Message: "Failed to fetch room",
		})
		return
	}
	utils.JSON(w, http.StatusOK, room.Summary())
}

// RecentRooms lists rooms by lastModified descending.
func (h *Handlers) RecentRooms(w http.ResponseWriter, r *http.Request) {
	limit := int64(20)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil || l <= 0 || l > 100 {
			utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{
				Code:    "invalid_limit",
				Message: "limit must be a positive integer between 1 and 100",
			})
			return
		}
		limit = l
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rooms, err := h.store.RecentRooms(ctx, limit)
	if err != nil {
		h.log.Error("recent rooms query failed", zap.Error(err))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code:    "internal_error",
			Message: "Failed to fetch rooms",
		})
		return
	}

	items := make([]models.RoomSummary, 0, len(rooms))
	for i := range rooms {
		items = append(items, rooms[i].Summary())
	}
	utils.JSON(w, http.StatusOK, models.RoomsResponse{Total: len(items), Items: items})
}

/*** Collaboration WebSocket: the event loop feeding the session manager ***/

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (h *Handlers) CollabWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	client := session.NewClient(conn)
	metrics.ConnectedClients.Inc()
	defer func() {
		h.manager.Disconnect(client)
		metrics.ConnectedClients.Dec()
	}()

	for {
		var frame models.WSFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		metrics.WSEvents.WithLabelValues(eventLabel(frame.Type)).Inc()

		switch frame.Type {
		case models.EventJoin:
			var req models.JoinRequest
			marshal(frame.Data, &req)
			h.manager.Join(client, req.RoomID, req.UserName)

		case models.EventCodeChange:
			var change models.CodeChange
			marshal(frame.Data, &change)
			h.manager.Edit(client, change.RoomID, change.Code)

		case models.EventLanguageChange:
			var change models.LanguageChange
			marshal(frame.Data, &change)
			h.manager.LanguageChange(client, change.RoomID, change.Language)

		case models.EventTyping:
			var signal models.TypingSignal
			marshal(frame.Data, &signal)
			h.manager.Typing(client, signal.RoomID, signal.UserName)

		case models.EventLeaveRoom:
			h.manager.Leave(client)

		default:
			client.Send(models.WSFrame{Type: models.MsgError, Data: "unknown event type"})
		}
	}
}

// eventLabel folds unrecognized frame types into one bucket so
// client-supplied strings never mint new metric label values.
func eventLabel(frameType string) string {
	switch frameType {
	case models.EventJoin, models.EventCodeChange, models.EventLanguageChange,
		models.EventTyping, models.EventLeaveRoom:
		return frameType
	}
	return "unknown"
}

func marshal(in any, out any) { b, _ := json.Marshal(in); _ = json.Unmarshal(b, out) }
