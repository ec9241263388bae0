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

const (
	CircleCollection  = "circles"
	MessageCollection = "messages"
	OutboxCollection  = "interaction_outbox"

	// maxCASAttempts 版本冲突时重新读取并重算的次数上限
	maxCASAttempts = 5
)

// Connect 建立连接并做一次 Ping 健康检查
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// EnsureIndexes 创建查询用到的索引
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if _, err := db.Collection(CircleCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "members.user", Value: 1}}, Options: options.Index().SetName("members_user_idx")},
		{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}, Options: options.Index().SetName("created_idx")},
	}); err != nil {
		return err
	}
	if _, err := db.Collection(MessageCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "circle", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
		Options: options.Index().SetName("circle_created_idx"),
	}); err != nil {
		return err
	}
	_, err := db.Collection(OutboxCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
		Options: options.Index().SetName("status_created_idx"),
	})
	return err
}

// errVersionMoved CAS 未命中，事务回滚后重读重算
var errVersionMoved = errors.New("document version moved")

// withTx 文档写回与 outbox 插入在同一个事务里提交（需要副本集部署）
func withTx(ctx context.Context, client *mongo.Client, fn func(sc mongo.SessionContext) error) error {
	sess, err := client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	return err
}

func insertOutbox(ctx context.Context, c *mongo.Collection, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows, err := repository.OutboxRows(events, time.Now().UTC())
	if err != nil {
		return err
	}
	docs := make([]any, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r)
	}
	_, err = c.InsertMany(ctx, docs)
	return err
}
