package redisclient

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// Client is the Redis connection used for readiness checks. The asynq
// producer and worker open their own pools from the same Config.
type Client struct {
	redisdb *redis.Client
	cfg     Config
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

func New(cfg Config) *Client {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &Client{redisdb: redisdb, cfg: cfg}
}

// AsynqOpt points asynq at the same Redis instance.
func (c Config) AsynqOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
}

func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.redisdb.Ping(ctx).Err(); err != nil {
		return oops.In("redis").With("operation", "ping redis").With("addr", c.cfg.Addr).Wrap(err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.redisdb.Close()
}
