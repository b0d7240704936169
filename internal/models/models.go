package models

import "time"

// DefaultLanguage is assigned to rooms created on first join.
const DefaultLanguage = "javascript"

// Room is the durable per-room record. roomId is unique across all records;
// activeUsers is a best-effort mirror of the in-memory presence set, never
// the source of truth for who is online.
type Room struct {
	RoomID       string    `bson:"roomId" json:"roomId"`
	Code         string    `bson:"code" json:"code"`
	Language     string    `bson:"language" json:"language"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	LastModified time.Time `bson:"lastModified" json:"lastModified"`
	ActiveUsers  []string  `bson:"activeUsers" json:"activeUsers"`
}

// RoomSummary is the read-only query projection: everything but the code
// body itself.
type RoomSummary struct {
	RoomID       string    `json:"roomId"`
	Language     string    `json:"language"`
	LastModified time.Time `json:"lastModified"`
	ActiveUsers  []string  `json:"activeUsers"`
	CodeLength   int       `json:"codeLength"`
}

// Summary projects a durable record into its query shape.
func (r *Room) Summary() RoomSummary {
	users := r.ActiveUsers
	if users == nil {
		users = []string{}
	}
	return RoomSummary{
		RoomID:       r.RoomID,
		Language:     r.Language,
		LastModified: r.LastModified,
		ActiveUsers:  users,
		CodeLength:   len(r.Code),
	}
}

/*** WebSocket wire protocol ***/

// WSFrame is the envelope for every client-facing message.
type WSFrame struct {
	Type string      `json:"type"` // "join","codeChange","languageChange","typing","leaveRoom","codeUpdate","languageUpdate","userJoined","userTyping","error"
	Data interface{} `json:"data"`
}

// Inbound event names.
const (
	EventJoin           = "join"
	EventCodeChange     = "codeChange"
	EventLanguageChange = "languageChange"
	EventTyping         = "typing"
	EventLeaveRoom      = "leaveRoom"
)

// Outbound message names.
const (
	MsgCodeUpdate     = "codeUpdate"
	MsgLanguageUpdate = "languageUpdate"
	MsgUserJoined     = "userJoined"
	MsgUserTyping     = "userTyping"
	MsgError          = "error"
)

type JoinRequest struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

type CodeChange struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

type LanguageChange struct {
	RoomID   string `json:"roomId"`
	Language string `json:"language"`
}

type TypingSignal struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

/*** HTTP responses ***/

type RoomsResponse struct {
	Total int           `json:"total"`
	Items []RoomSummary `json:"items"`
}

type HealthResponse struct {
	Status       string `json:"status"`
	TrackedRooms int    `json:"trackedRooms"`
}

// ErrorResponse is the uniform HTTP error payload.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
