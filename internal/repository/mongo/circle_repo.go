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

type CircleRepository struct {
	client  *mongo.Client
	circles *mongo.Collection
	outbox  *mongo.Collection
}

func NewCircleRepository(db *mongo.Database) *CircleRepository {
	return &CircleRepository{
		client:  db.Client(),
		circles: db.Collection(CircleCollection),
		outbox:  db.Collection(OutboxCollection),
	}
}

func (r *CircleRepository) CreateCircle(ctx context.Context, c *model.Circle, events []model.Event) error {
	c.Version = 1
	err := withTx(ctx, r.client, func(sc mongo.SessionContext) error {
		if _, err := r.circles.InsertOne(sc, c); err != nil {
			return err
		}
		return insertOutbox(sc, r.outbox, events)
	})
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *CircleRepository) GetCircle(ctx context.Context, id string) (*model.Circle, error) {
	var c model.Circle
	if err := r.circles.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *CircleRepository) ListCircles(ctx context.Context, offset, limit int) ([]model.Circle, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := r.circles.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	list := make([]model.Circle, 0, limit)
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *CircleRepository) DeleteCircle(ctx context.Context, id string) error {
	_, err := r.circles.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// MutateCircle 以 version 作为 CAS 条件写回整个 members 数组，冲突时重读重算。
// 写回与事件落库在同一事务内
func (r *CircleRepository) MutateCircle(ctx context.Context, id string, fn repository.CircleMutation) (*model.Circle, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		var cur model.Circle
		if err := r.circles.FindOne(ctx, bson.M{"_id": id}).Decode(&cur); err != nil {
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
			res, err := r.circles.UpdateOne(sc,
				bson.M{"_id": id, "version": cur.Version},
				bson.M{"$set": bson.M{
					"name":       next.Name,
					"type":       next.Type,
					"category":   next.Category,
					"members":    next.Members,
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

func (r *CircleRepository) CirclesWithMember(ctx context.Context, user uint64) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := r.circles.Find(ctx, bson.M{"members.user": user}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cur.Err()
}
