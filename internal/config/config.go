package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerCfg struct {
	Addr                string `mapstructure:"addr"`
	Mode                string `mapstructure:"mode"` // gin mode: debug / release / test
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
}

type LogCfg struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

type StoreCfg struct {
	Driver string `mapstructure:"driver"` // mysql / mongo / memory
}

type MySQLCfg struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

type MongoCfg struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisCfg struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type KafkaCfg struct {
	Enabled          bool     `mapstructure:"enabled"`
	Brokers          []string `mapstructure:"brokers"`
	OutboxTopic      string   `mapstructure:"outbox_topic"`
	UserDeletedTopic string   `mapstructure:"user_deleted_topic"`
	GroupID          string   `mapstructure:"group_id"`
}

type MailCfg struct {
	Enabled         bool   `mapstructure:"enabled"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	From            string `mapstructure:"from"`
	ModerationInbox string `mapstructure:"moderation_inbox"`
}

type JwtCfg struct {
	AccessSecret string `mapstructure:"access_secret"`
	// CheckSession 开启后要求 token 与 redis 中登录服务记录的 token 一致
	CheckSession bool `mapstructure:"check_session"`
}

type OutboxCfg struct {
	BatchSize       int `mapstructure:"batch_size"`
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

type Config struct {
	Server ServerCfg `mapstructure:"server"`
	Log    LogCfg    `mapstructure:"log"`
	Store  StoreCfg  `mapstructure:"store"`
	MySQL  MySQLCfg  `mapstructure:"mysql"`
	Mongo  MongoCfg  `mapstructure:"mongo"`
	Redis  RedisCfg  `mapstructure:"redis"`
	Kafka  KafkaCfg  `mapstructure:"kafka"`
	Mail   MailCfg   `mapstructure:"mail"`
	JWT    JwtCfg    `mapstructure:"jwt"`
	Outbox OutboxCfg `mapstructure:"outbox"`

	// Derived
	ReadTimeout    time.Duration `mapstructure:"-"`
	WriteTimeout   time.Duration `mapstructure:"-"`
	OutboxInterval time.Duration `mapstructure:"-"`
}

// setDefaults 每个 key 都要有默认值，否则 AutomaticEnv 的覆盖在 Unmarshal 时不会生效
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 15)
	v.SetDefault("log.development", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("store.driver", "mysql")
	v.SetDefault("mysql.dsn", "")
	v.SetDefault("mysql.max_open_conns", 20)
	v.SetDefault("mysql.max_idle_conns", 5)
	v.SetDefault("mysql.auto_migrate", false)
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "circles")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.outbox_topic", "circle.interactions")
	v.SetDefault("kafka.user_deleted_topic", "user.deleted")
	v.SetDefault("kafka.group_id", "circle-social")
	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.moderation_inbox", "")
	v.SetDefault("jwt.access_secret", "")
	v.SetDefault("jwt.check_session", false)
	v.SetDefault("outbox.batch_size", 200)
	v.SetDefault("outbox.interval_seconds", 1)
}

// Load 读取配置文件，环境变量可覆盖：APP_SERVER_ADDR、APP_MYSQL_DSN ...
// path 为空时只使用默认值和环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	cfg.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	cfg.OutboxInterval = time.Duration(cfg.Outbox.IntervalSeconds) * time.Second
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "mysql":
		if c.MySQL.DSN == "" {
			return errors.New("mysql.dsn required for mysql store")
		}
	case "mongo":
		if c.Mongo.URI == "" {
			return errors.New("mongo.uri required for mongo store")
		}
	case "memory":
	default:
		return errors.New("store.driver must be mysql, mongo or memory")
	}
	if c.Mail.Enabled && c.Mail.ModerationInbox == "" {
		return errors.New("mail.moderation_inbox required when mail is enabled")
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.IntervalSeconds <= 0 {
		return errors.New("outbox batch_size and interval_seconds must be positive")
	}
	return nil
}
