package routers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rajanikanta17/Realtime-Code-Editor/internal/api"
	"github.com/rajanikanta17/Realtime-Code-Editor/internal/models"
	"github.com/rajanikanta17/Realtime-Code-Editor/internal/session"
)

type emptyStore struct{}

func (emptyStore) FindRoom(context.Context, string) (*models.Room, error) {
	return nil, session.ErrRoomNotFound
}
func (emptyStore) CreateRoom(context.Context, *models.Room) error            { return nil }
func (emptyStore) UpdateCode(context.Context, string, string, time.Time) error { return nil }
func (emptyStore) UpdateLanguage(context.Context, string, string, time.Time) error {
	return nil
}
func (emptyStore) UpdateActiveUsers(context.Context, string, []string) error { return nil }
func (emptyStore) RecentRooms(context.Context, int64) ([]models.Room, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := emptyStore{}
	manager := session.NewManager(zap.NewNop(), store, nil, time.Second)
	return New(api.NewHandlers(zap.NewNop(), manager, store))
}

func TestRoutes(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		path   string
		status int
	}{
		{"/api/v1/healthz", http.StatusOK},
		{"/api/v1/rooms", http.StatusOK},
		{"/api/v1/rooms/unknown", http.StatusNotFound},
		{"/metrics", http.StatusOK},
		{"/nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Errorf("%s: expected %d, got %d", tc.path, tc.status, rec.Code)
		}
	}
}

func TestWSRouteRequiresUpgrade(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code == http.StatusOK {
		t.Fatalf("plain GET on /ws should fail the upgrade, got %d", rec.Code)
	}
}
