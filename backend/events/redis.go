// Package events publishes progress changes on Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"philosofium/backend/progress"
	"philosofium/backend/utils"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "progress"

type RedisPublisher struct {
	log     *utils.Logger
	rdb     *redis.Client
	channel string
}

var _ progress.Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher connects to addr and pings it before returning.
func NewRedisPublisher(addr, channel string, log *utils.Logger) (*RedisPublisher, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("missing redis address")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultChannel
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis ping")
	}

	return &RedisPublisher{
		log:     log.With("publisher", "RedisPublisher"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (p *RedisPublisher) Channel() string { return p.channel }

func (p *RedisPublisher) Publish(ctx context.Context, ev progress.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encoding progress event")
	}
	if err := p.rdb.Publish(ctx, p.channel, raw).Err(); err != nil {
		return errors.Wrapf(err, "publishing to %s", p.channel)
	}
	p.log.Debug("progress event published", "user_id", ev.UserID, "course_id", ev.CourseID, "percent", ev.Percent)
	return nil
}

func (p *RedisPublisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}
