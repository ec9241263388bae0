package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"Circle_Social/internal/model"
)

type OutboxRepository struct {
	c *mongo.Collection
}

func NewOutboxRepository(db *mongo.Database) *OutboxRepository {
	return &OutboxRepository{c: db.Collection(OutboxCollection)}
}

func (r *OutboxRepository) ListPending(ctx context.Context, batchSize int) ([]model.InteractionOutbox, error) {
	filter := bson.M{
		"status": bson.M{"$ne": model.OutboxSent},
		"retry":  bson.M{"$lt": model.OutboxMaxRetry},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(batchSize))
	cur, err := r.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var list []model.InteractionOutbox
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id string) error {
	_, err := r.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":     model.OutboxSent,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id string) error {
	_, err := r.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": model.OutboxFailed, "updated_at": time.Now().UTC()},
		"$inc": bson.M{"retry": 1},
	})
	return err
}
