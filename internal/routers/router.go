package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rajanikanta17/Realtime-Code-Editor/internal/api"
	"github.com/rajanikanta17/Realtime-Code-Editor/internal/metrics"
)

func New(h *api.Handlers) http.Handler {
	r := chi.NewRouter()

	r.Get("/api/v1/healthz", h.Health)
	r.Get("/api/v1/rooms", h.RecentRooms)
	r.Get("/api/v1/rooms/{id}", h.RoomSummary)

	r.Get("/ws", h.CollabWS)

	r.Handle("/metrics", metrics.Handler())

	return r
}
