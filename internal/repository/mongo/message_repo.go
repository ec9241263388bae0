package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"Circle_Social/internal/model"
	"Circle_Social/internal/repository"
)

type MessageRepository struct {
	client   *mongo.Client
	messages *mongo.Collection
	outbox   *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{
		client:   db.Client(),
		messages: db.Collection(MessageCollection),
		outbox:   db.Collection(OutboxCollection),
	}
}

func (r *MessageRepository) CreateMessage(ctx context.Context, m *model.Message) error {
	m.Version = 1
	if _, err := r.messages.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrConflict
		}
		return err
	}
	return nil
}

func (r *MessageRepository) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	var m model.Message
	if err := r.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *MessageRepository) ListMessages(ctx context.Context, circle, lastID string, lastCreatedAt time.Time, limit int) ([]model.Message, error) {
	filter := bson.M{}
	if circle != "" {
		filter["circle"] = circle
	}
	if !lastCreatedAt.IsZero() {
		filter["$or"] = bson.A{
			bson.M{"created_at": bson.M{"$lt": lastCreatedAt}},
			bson.M{"created_at": lastCreatedAt, "_id": bson.M{"$lt": lastID}},
		}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	list := make([]model.Message, 0, limit)
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *MessageRepository) DeleteMessage(ctx context.Context, id string) error {
	_, err := r.messages.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *MessageRepository) MutateMessage(ctx context.Context, id string, fn repository.MessageMutation) (*model.Message, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		var cur model.Message
		if err := r.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&cur); err != nil {
			return nil, notFound(err)
		}
		next := cur.Clone()
		events, err := fn(next)
		if err != nil {
			return nil, err
		}
		next.Version = cur.Version + 1
		next.UpdatedAt = time.Now().UTC()

		err = withTx(ctx, r.client, func(sc mongo.SessionContext) error {
			res, err := r.messages.UpdateOne(sc,
				bson.M{"_id": id, "version": cur.Version},
				bson.M{"$set": bson.M{
					"content":    next.Content,
					"reactions":  next.Reactions,
					"favorites":  next.Favorites,
					"version":    next.Version,
					"updated_at": next.UpdatedAt,
				}})
			if err != nil {
				return err
			}
			if res.MatchedCount == 0 {
				return errVersionMoved
			}
			return insertOutbox(sc, r.outbox, events)
		})
		if errors.Is(err, errVersionMoved) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return next, nil
	}
	return nil, repository.ErrConflict
}
