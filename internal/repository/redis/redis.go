package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options 连接参数，对应配置中的 redis 段
type Options struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Connect 创建客户端并做一次 Ping 健康检查，失败时关闭客户端。
// 会话校验、统计缓存和分布式锁共用返回的客户端
func Connect(ctx context.Context, opt Options) (*redis.Client, error) {
	if opt.PoolSize <= 0 {
		opt.PoolSize = 10
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         opt.Addr,
		Password:     opt.Password,
		DB:           opt.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     opt.PoolSize,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opt.Addr, err)
	}
	return rdb, nil
}
