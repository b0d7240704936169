package session

import (
	"context"
	"errors"
	"time"

	"github.com/rajanikanta17/Realtime-Code-Editor/internal/models"
)

// ErrRoomNotFound is returned by Store lookups for room ids with no durable
// record.
var ErrRoomNotFound = errors.New("room not found")

// Store is the Document Store contract the manager depends on. Every call
// is best-effort from the manager's point of view: a failure is logged and
// live behavior continues on in-memory state alone.
type Store interface {
	FindRoom(ctx context.Context, roomID string) (*models.Room, error)
	CreateRoom(ctx context.Context, room *models.Room) error
	// UpdateCode upserts the room's code and lastModified.
	UpdateCode(ctx context.Context, roomID, code string, now time.Time) error
	// UpdateLanguage upserts the room's language and lastModified.
	UpdateLanguage(ctx context.Context, roomID, language string, now time.Time) error
	// UpdateActiveUsers upserts the best-effort presence mirror.
	UpdateActiveUsers(ctx context.Context, roomID string, users []string) error
	// RecentRooms lists rooms by lastModified descending.
	RecentRooms(ctx context.Context, limit int64) ([]models.Room, error)
}
