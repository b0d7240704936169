package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rajanikanta17/Realtime-Code-Editor/internal/api"
	"github.com/rajanikanta17/Realtime-Code-Editor/internal/models"
	"github.com/rajanikanta17/Realtime-Code-Editor/internal/routers"
	"github.com/rajanikanta17/Realtime-Code-Editor/internal/session"
)

// stubStore is a minimal in-memory session.Store for handler tests.
type stubStore struct {
	mu    sync.Mutex
	rooms map[string]*models.Room
}

func newStubStore() *stubStore { return &stubStore{rooms: make(map[string]*models.Room)} }

func (s *stubStore) FindRoom(_ context.Context, roomID string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, session.ErrRoomNotFound
	}
	copied := *r
	return &copied, nil
}

func (s *stubStore) CreateRoom(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *room
	s.rooms[room.RoomID] = &copied
	return nil
}

func (s *stubStore) ensure(roomID string, now time.Time) *models.Room {
	r, ok := s.rooms[roomID]
	if !ok {
		r = &models.Room{RoomID: roomID, Language: models.DefaultLanguage, CreatedAt: now, LastModified: now}
		s.rooms[roomID] = r
	}
	return r
}

func (s *stubStore) UpdateCode(_ context.Context, roomID, code string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.ensure(roomID, now)
	r.Code, r.LastModified = code, now
	return nil
}

func (s *stubStore) UpdateLanguage(_ context.Context, roomID, language string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.ensure(roomID, now)
	r.Language, r.LastModified = language, now
	return nil
}

func (s *stubStore) UpdateActiveUsers(_ context.Context, roomID string, users []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.ensure(roomID, time.Now().UTC())
	r.ActiveUsers = append([]string(nil), users...)
	return nil
}

func (s *stubStore) RecentRooms(_ context.Context, limit int64) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastModified.After(out[j].LastModified)
	})
	if limit < int64(len(out)) {
		out = out[:limit]
	}
	return out, nil
}

func newTestServer(t *testing.T, store session.Store) *httptest.Server {
	t.Helper()
	manager := session.NewManager(zap.NewNop(), store, nil, time.Second)
	server := httptest.NewServer(routers.New(api.NewHandlers(zap.NewNop(), manager, store)))
	t.Cleanup(server.Close)
	return server
}

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) models.WSFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame models.WSFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func userList(t *testing.T, frame models.WSFrame) []string {
	t.Helper()
	raw, ok := frame.Data.([]interface{})
	if !ok {
		t.Fatalf("expected list payload, got %#v", frame.Data)
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, v.(string))
	}
	return out
}

func TestHealthReportsTrackedRooms(t *testing.T) {
	server := newTestServer(t, newStubStore())

	resp, err := http.Get(server.URL + "/api/v1/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var health models.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "ok" || health.TrackedRooms != 0 {
		t.Fatalf("unexpected health payload: %#v", health)
	}
}

func TestRoomSummaryNotFound(t *testing.T) {
	server := newTestServer(t, newStubStore())

	resp, err := http.Get(server.URL + "/api/v1/rooms/missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var errResp models.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != "room_not_found" {
		t.Fatalf("unexpected error code %q", errResp.Code)
	}
}

func TestRoomSummaryOmitsCodeBody(t *testing.T) {
	store := newStubStore()
	now := time.Now().UTC()
	store.rooms["room1"] = &models.Room{
		RoomID: "room1", Code: "package main", Language: "go",
		CreatedAt: now, LastModified: now, ActiveUsers: []string{"alice"},
	}
	server := newTestServer(t, store)

	resp, err := http.Get(server.URL + "/api/v1/rooms/room1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["roomId"] != "room1" || body["language"] != "go" {
		t.Fatalf("unexpected summary: %#v", body)
	}
	if body["codeLength"] != float64(len("package main")) {
		t.Fatalf("expected codeLength %d, got %v", len("package main"), body["codeLength"])
	}
	if _, leaked := body["code"]; leaked {
		t.Fatalf("summary must not contain the code body: %#v", body)
	}
}

func TestRecentRoomsRejectsBadLimit(t *testing.T) {
	server := newTestServer(t, newStubStore())

	for _, limit := range []string{"0", "-3", "101", "many"} {
		resp, err := http.Get(server.URL + "/api/v1/rooms?limit=" + limit)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("limit=%s: expected 400, got %d", limit, resp.StatusCode)
		}
	}
}

func TestRecentRoomsNewestFirst(t *testing.T) {
	store := newStubStore()
	base := time.Now().UTC()
	for i, id := range []string{"old", "mid", "new"} {
		store.rooms[id] = &models.Room{
			RoomID: id, Language: "go",
			CreatedAt:    base,
			LastModified: base.Add(time.Duration(i) * time.Minute),
		}
	}
	server := newTestServer(t, store)

	resp, err := http.Get(server.URL + "/api/v1/rooms?limit=2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var body models.RoomsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 2 {
		t.Fatalf("expected 2 rooms, got %d", body.Total)
	}
	if body.Items[0].RoomID != "new" || body.Items[1].RoomID != "mid" {
		t.Fatalf("expected lastModified-descending [new mid], got %#v", body.Items)
	}
}

func TestCollabWSJoinFlow(t *testing.T) {
	store := newStubStore()
	server := newTestServer(t, store)

	alice := dialWS(t, server)
	if err := alice.WriteJSON(models.WSFrame{
		Type: models.EventJoin,
		Data: models.JoinRequest{RoomID: "room1", UserName: "alice"},
	}); err != nil {
		t.Fatalf("write join: %v", err)
	}

	if frame := readFrame(t, alice); frame.Type != models.MsgCodeUpdate || frame.Data != "" {
		t.Fatalf("expected empty codeUpdate, got %#v", frame)
	}
	if frame := readFrame(t, alice); frame.Type != models.MsgLanguageUpdate || frame.Data != models.DefaultLanguage {
		t.Fatalf("expected default languageUpdate, got %#v", frame)
	}
	frame := readFrame(t, alice)
	if frame.Type != models.MsgUserJoined {
		t.Fatalf("expected userJoined, got %#v", frame)
	}
	if got := userList(t, frame); len(got) != 1 || got[0] != "alice" {
		t.Fatalf("expected [alice], got %v", got)
	}

	// Second occupant: both see the updated list.
	bob := dialWS(t, server)
	if err := bob.WriteJSON(models.WSFrame{
		Type: models.EventJoin,
		Data: models.JoinRequest{RoomID: "room1", UserName: "bob"},
	}); err != nil {
		t.Fatalf("write join: %v", err)
	}
	readFrame(t, bob) // codeUpdate
	readFrame(t, bob) // languageUpdate
	if got := userList(t, readFrame(t, bob)); len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Fatalf("expected [alice bob], got %v", got)
	}
	if got := userList(t, readFrame(t, alice)); len(got) != 2 {
		t.Fatalf("alice should see updated list, got %v", got)
	}

	// An edit from bob reaches alice, not bob.
	if err := bob.WriteJSON(models.WSFrame{
		Type: models.EventCodeChange,
		Data: models.CodeChange{RoomID: "room1", Code: "let x = 1"},
	}); err != nil {
		t.Fatalf("write edit: %v", err)
	}
	if frame := readFrame(t, alice); frame.Type != models.MsgCodeUpdate || frame.Data != "let x = 1" {
		t.Fatalf("expected codeUpdate push, got %#v", frame)
	}
}

func TestCollabWSMalformedJoin(t *testing.T) {
	server := newTestServer(t, newStubStore())

	conn := dialWS(t, server)
	if err := conn.WriteJSON(models.WSFrame{Type: models.EventJoin, Data: map[string]string{}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if frame := readFrame(t, conn); frame.Type != models.MsgError {
		t.Fatalf("expected error frame, got %#v", frame)
	}
}

func TestCollabWSUnknownEventType(t *testing.T) {
	server := newTestServer(t, newStubStore())

	conn := dialWS(t, server)
	if err := conn.WriteJSON(models.WSFrame{Type: "selfDestruct"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if frame := readFrame(t, conn); frame.Type != models.MsgError {
		t.Fatalf("expected error frame, got %#v", frame)
	}
}

func TestWSMetricsFoldUnknownEventTypes(t *testing.T) {
	server := newTestServer(t, newStubStore())

	conn := dialWS(t, server)
	if err := conn.WriteJSON(models.WSFrame{Type: "exfiltrate-7f3a"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	// The error reply confirms the server has processed the frame.
	if frame := readFrame(t, conn); frame.Type != models.MsgError {
		t.Fatalf("expected error frame, got %#v", frame)
	}

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}

	body := string(raw)
	if strings.Contains(body, "exfiltrate-7f3a") {
		t.Fatalf("client-supplied event type must not become a metric label")
	}
	if !strings.Contains(body, `codeshare_ws_events_total{type="unknown"}`) {
		t.Fatalf("expected unrecognized events folded into the unknown bucket")
	}
}
