package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rajanikanta17/Realtime-Code-Editor/internal/models"
	"github.com/rajanikanta17/Realtime-Code-Editor/internal/session"
)

// RoomRepo is the document store adapter: one record per room, keyed by
// roomId. Implements session.Store.
type RoomRepo struct {
	col *mongo.Collection
}

// NewRoomRepo binds the collection and ensures its indexes: a unique key on
// roomId and a descending key on lastModified for recently-active queries.
func NewRoomRepo(c *Client, collection string) (*RoomRepo, error) {
	db, err := c.DB()
	if err != nil {
		return nil, err
	}
	col := db.Collection(collection)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "roomId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "lastModified", Value: -1}},
		},
	})

	return &RoomRepo{col: col}, nil
}

func (r *RoomRepo) FindRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	err := r.col.FindOne(ctx, bson.M{"roomId": roomID}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, session.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *RoomRepo) CreateRoom(ctx context.Context, room *models.Room) error {
	_, err := r.col.InsertOne(ctx, room)
	return err
}

func (r *RoomRepo) UpdateCode(ctx context.Context, roomID, code string, now time.Time) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"roomId": roomID},
		bson.M{
			"$set": bson.M{"code": code, "lastModified": now},
			"$setOnInsert": bson.M{
				"language":    models.DefaultLanguage,
				"createdAt":   now,
				"activeUsers": []string{},
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *RoomRepo) UpdateLanguage(ctx context.Context, roomID, language string, now time.Time) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"roomId": roomID},
		bson.M{
			"$set": bson.M{"language": language, "lastModified": now},
			"$setOnInsert": bson.M{
				"code":        "",
				"createdAt":   now,
				"activeUsers": []string{},
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *RoomRepo) UpdateActiveUsers(ctx context.Context, roomID string, users []string) error {
	now := time.Now().UTC()
	_, err := r.col.UpdateOne(ctx,
		bson.M{"roomId": roomID},
		bson.M{
			"$set": bson.M{"activeUsers": users},
			"$setOnInsert": bson.M{
				"code":         "",
				"language":     models.DefaultLanguage,
				"createdAt":    now,
				"lastModified": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *RoomRepo) RecentRooms(ctx context.Context, limit int64) ([]models.Room, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "lastModified", Value: -1}}).
		SetLimit(limit)
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Room
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
