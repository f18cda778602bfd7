package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"codequest/internal/config"
	"codequest/internal/logger"
)

type redisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisBus connects to cfg.Addr and publishes on cfg.Channel
func NewRedisBus(log *logger.Logger, cfg config.RedisConfig) (Bus, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	ch := strings.TrimSpace(cfg.Channel)
	if ch == "" {
		ch = "codequest.progress"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisBus{
		log:     log.With("service", "RedisProgressBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

// New picks the redis bus when an address is configured and the no-op bus otherwise
func New(log *logger.Logger, cfg config.RedisConfig) (Bus, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return NewNoopBus(), nil
	}
	return NewRedisBus(log, cfg)
}

func (b *redisBus) Publish(ctx context.Context, n Notification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisBus) Subscribe(ctx context.Context, fn func(Notification)) error {
	if fn == nil {
		return fmt.Errorf("callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var n Notification
				if err := json.Unmarshal([]byte(m.Payload), &n); err != nil {
					b.log.Warn("bad progress payload", "error", err)
					continue
				}
				fn(n)
			}
		}
	}()

	return nil
}

func (b *redisBus) Close() error {
	return b.rdb.Close()
}
