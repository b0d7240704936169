// Package events publishes room lifecycle notifications to a Redis pub/sub
// channel for any interested downstream consumer. Publishing is strictly
// best-effort: a missing or unreachable Redis never affects the session.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event types.
const (
	RoomCreated = "room_created"
	UserJoined  = "user_joined"
	UserLeft    = "user_left"
	RoomReaped  = "room_reaped"
)

type RoomEvent struct {
	Type        string    `json:"type"`
	RoomID      string    `json:"roomId"`
	UserName    string    `json:"userName,omitempty"`
	ActiveUsers []string  `json:"activeUsers,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type Publisher struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
}

// NewPublisher connects a publisher to Redis. An empty addr returns a
// disabled publisher whose Publish is a no-op; callers never need to
// nil-check.
func NewPublisher(addr, channel string, log *zap.Logger) *Publisher {
	p := &Publisher{channel: channel, log: log}
	if addr == "" {
		return p
	}
	p.rdb = redis.NewClient(&redis.Options{Addr: addr})
	return p
}

// NewPublisherWithClient wires an existing client (used in tests).
func NewPublisherWithClient(rdb *redis.Client, channel string, log *zap.Logger) *Publisher {
	return &Publisher{rdb: rdb, channel: channel, log: log}
}

// Publish sends one event. Failures are logged and dropped.
func (p *Publisher) Publish(ev RoomEvent) {
	if p == nil || p.rdb == nil {
		return
	}
	ev.Timestamp = time.Now().UTC()
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("marshal room event failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.log.Warn("publish room event failed",
			zap.String("type", ev.Type), zap.String("room", ev.RoomID), zap.Error(err))
	}
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}
