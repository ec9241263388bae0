package mongo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"Circle_Social/internal/engine"
	"Circle_Social/internal/model"
)

// 事务需要副本集，设置 MONGO_TEST_URI（例如 mongodb://localhost:27017/?replicaSet=rs0）后才运行
func testDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, uri)
	require.NoError(t, err)
	db := client.Database(fmt.Sprintf("circles_test_%s", uuid.NewString()[:8]))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func seedCircle(t *testing.T, repo *CircleRepository) *model.Circle {
	t.Helper()
	c, err := engine.NewCircle(uuid.NewString(), 1, "Morning Pages", model.CirclePrivate, "", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, repo.CreateCircle(context.Background(), c, nil))
	return c
}

func joinMutation(user uint64) func(c *model.Circle) ([]model.Event, error) {
	return func(c *model.Circle) ([]model.Event, error) {
		status, next, err := engine.RequestJoin(c, user, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		c.Members = next
		return []model.Event{{
			Type:        model.EventMembershipRequested,
			AggregateID: c.ID,
			UserID:      user,
			Data:        map[string]any{"status": status},
		}}, nil
	}
}

func TestCircleRepository_MutateWritesOutbox(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	repo := NewCircleRepository(db)
	c := seedCircle(t, repo)

	got, err := repo.MutateCircle(ctx, c.ID, joinMutation(2))
	require.NoError(t, err)
	assert.Len(t, got.Members, 2)
	assert.Equal(t, uint64(2), got.Version)

	rows, err := NewOutboxRepository(db).ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, c.ID, rows[0].AggregateID)
}

// outbox 写入失败时文档更新一并回滚
func TestCircleRepository_MutateRollsBackWhenOutboxFails(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	repo := NewCircleRepository(db)
	c := seedCircle(t, repo)

	validator := bson.M{"$jsonSchema": bson.M{"required": bson.A{"never_present"}}}
	require.NoError(t, db.CreateCollection(ctx, OutboxCollection, options.CreateCollection().SetValidator(validator)))

	_, err := repo.MutateCircle(ctx, c.ID, joinMutation(2))
	require.Error(t, err)

	stored, err := repo.GetCircle(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Members, 1)
	assert.Equal(t, uint64(1), stored.Version)
}
