package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"Circle_Social/internal/engine"
	"Circle_Social/internal/model"
)

const (
	SummaryTTL       = 24 * time.Hour
	LockTTL          = 300 * time.Millisecond
	SummaryKeyPrefix = "reaction:summary:msg" // 缓存某条消息各类型的点赞数量
	LockKeyPrefix    = "lock:reaction:msg"    // 分布式锁

	// emptyField 占位字段，区分“没有任何 reaction”和“缓存未命中”
	emptyField = "_"
)

type ReactionCacheRepository struct {
	rdb        *redis.Client
	summaryTTL time.Duration
}

type DistLock struct {
	RDB *redis.Client
}

func NewReactionCacheRepository(rdb *redis.Client) *ReactionCacheRepository {
	return &ReactionCacheRepository{rdb: rdb, summaryTTL: SummaryTTL}
}

func NewDistLock(rdb *redis.Client) *DistLock {
	return &DistLock{RDB: rdb}
}

func (r *ReactionCacheRepository) summaryKey(messageID string) string {
	return fmt.Sprintf("%s:%s", SummaryKeyPrefix, messageID)
}

// GetSummary 从缓存读取，第二个返回值表示是否命中
func (r *ReactionCacheRepository) GetSummary(ctx context.Context, messageID string) ([]engine.ReactionCount, bool, error) {
	vals, err := r.rdb.HGetAll(ctx, r.summaryKey(messageID)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(vals) == 0 {
		return nil, false, nil
	}
	out := make([]engine.ReactionCount, 0, len(vals))
	for _, t := range model.ReactionTypes {
		v, ok := vals[string(t)]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, false, err
		}
		out = append(out, engine.ReactionCount{Type: t, Count: n})
	}
	return out, true, nil
}

// SetSummary 回填缓存
func (r *ReactionCacheRepository) SetSummary(ctx context.Context, messageID string, counts []engine.ReactionCount) error {
	k := r.summaryKey(messageID)
	fields := map[string]any{emptyField: 0}
	for _, c := range counts {
		fields[string(c.Type)] = c.Count
	}
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, k)
		p.HSet(ctx, k, fields)
		p.Expire(ctx, k, r.summaryTTL)
		return nil
	})
	return err
}

// DeleteSummary 安全删除缓存，支持可选延迟二删，减少并发窗口脏数据
func (r *ReactionCacheRepository) DeleteSummary(ctx context.Context, messageID string, delay ...time.Duration) error {
	key := r.summaryKey(messageID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if len(delay) > 0 && delay[0] > 0 {
		d := delay[0]
		// 在后台再删一次，抵消并发回填窗口
		go func() {
			t := time.NewTimer(d)
			defer t.Stop()
			<-t.C
			_ = r.rdb.Del(context.Background(), key).Err()
		}()
	}
	return nil
}

// Acquire 请求加分布式锁
func (l *DistLock) Acquire(ctx context.Context, messageID, token string) (bool, error) {
	key := fmt.Sprintf("%s:%s", LockKeyPrefix, messageID)
	return l.RDB.SetNX(ctx, key, token, LockTTL).Result()
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// Release 用lua保证原子性
func (l *DistLock) Release(ctx context.Context, messageID, token string) error {
	key := fmt.Sprintf("%s:%s", LockKeyPrefix, messageID)
	return releaseScript.Run(ctx, l.RDB, []string{key}, token).Err()
}
