package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"Circle_Social/internal/config"
	"Circle_Social/internal/middleware"
	"Circle_Social/internal/pkg"
	"Circle_Social/internal/repository/memory"
	mongorepo "Circle_Social/internal/repository/mongo"
	"Circle_Social/internal/repository/mysql"
	"Circle_Social/internal/repository/redis"
	"Circle_Social/internal/router"
	"Circle_Social/internal/service"
)

type stores struct {
	circles  service.CircleStore
	messages service.MessageStore
	outbox   service.OutboxStore
	close    func(ctx context.Context) error
}

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case "mysql":
		if err := mysql.InitDB(cfg.MySQL.DSN, cfg.MySQL.MaxOpenConns, cfg.MySQL.MaxIdleConns); err != nil {
			return nil, err
		}
		// 自动建表（开发阶段 OK）
		if cfg.MySQL.AutoMigrate {
			if err := mysql.AutoMigrate(mysql.DB); err != nil {
				return nil, err
			}
		}
		return &stores{
			circles:  mysql.NewCircleRepository(mysql.DB),
			messages: mysql.NewMessageRepository(mysql.DB),
			outbox:   mysql.NewOutboxRepository(mysql.DB),
			close: func(context.Context) error {
				sqlDB, err := mysql.DB.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		}, nil
	case "mongo":
		client, err := mongorepo.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.Mongo.Database)
		if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
			return nil, err
		}
		return &stores{
			circles:  mongorepo.NewCircleRepository(db),
			messages: mongorepo.NewMessageRepository(db),
			outbox:   mongorepo.NewOutboxRepository(db),
			close:    client.Disconnect,
		}, nil
	default:
		log.Warn("using in-memory store, data is lost on restart")
		s := memory.NewStore()
		return &stores{circles: s, messages: s, outbox: s, close: func(context.Context) error { return nil }}, nil
	}
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}
	log, err := pkg.NewLogger(pkg.LogConfig{Development: cfg.Log.Development, Level: cfg.Log.Level})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	pkg.SetAccessSecret(cfg.JWT.AccessSecret)
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}

	// 连接redis：单点登录校验、reaction 统计缓存
	var (
		sessions middleware.SessionChecker
		cache    service.SummaryCache
		locker   service.Locker
	)
	if cfg.Redis.Enabled {
		rdb, err := redis.Connect(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			log.Fatal("connect redis", zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		if cfg.JWT.CheckSession {
			sessions = redis.NewSessionRepository(rdb)
		}
		cache = redis.NewReactionCacheRepository(rdb)
		locker = redis.NewDistLock(rdb)
	}

	circles := service.NewCircleService(st.circles, log)
	messages := service.NewMessageService(st.messages, st.circles, cache, locker, log)

	// outbox 投递：kafka + 待审批申请邮件
	var senders []service.Sender
	if cfg.Kafka.Enabled {
		producer, err := pkg.NewKafkaProducer(pkg.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.OutboxTopic})
		if err != nil {
			log.Fatal("kafka producer", zap.Error(err))
		}
		defer func() { _ = producer.Close() }()
		senders = append(senders, service.KafkaSender(producer))

		consumer, err := pkg.NewKafkaConsumer(pkg.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.UserDeletedTopic,
			GroupID: cfg.Kafka.GroupID,
		}, log)
		if err != nil {
			log.Fatal("kafka consumer", zap.Error(err))
		}
		defer func() { _ = consumer.Close() }()
		go consumer.Run(ctx, service.UserDeletedHandler(circles, log))
	}
	if cfg.Mail.Enabled {
		smtp := pkg.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		}
		senders = append(senders, service.PendingJoinMailer(smtp, cfg.Mail.ModerationInbox, pkg.SendEmail))
	}
	if len(senders) > 0 {
		relayer := service.NewOutboxRelayer(st.outbox, cfg.Outbox.BatchSize, cfg.OutboxInterval, log, senders...)
		go relayer.Run(ctx)
	}

	r := router.InitRouter(router.Deps{
		Circles:  circles,
		Messages: messages,
		Sessions: sessions,
		Log:      log,
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.Server.Addr), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	if err := st.close(shutdownCtx); err != nil {
		log.Error("close store", zap.Error(err))
	}
}
