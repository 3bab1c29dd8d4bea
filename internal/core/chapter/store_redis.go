// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/inkshelf/internal/platform/constants"
)

// # Redis Event Publisher

// RedisPublisher broadcasts chapter events and keeps the recently updated
// works ranking current.
type RedisPublisher struct {
	client  redis.Cmdable
	channel string
	ranking string
}

// NewRedisPublisher publishes on the default channel and ranking key.
func NewRedisPublisher(client redis.Cmdable) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: constants.RedisChannelChapterEvents,
		ranking: constants.RedisKeyRecentWorks,
	}
}

/*
Publish sends the event as JSON and, when the work's freshness is known,
moves the work within the ranking sorted set (score = unix seconds).

Both commands are sent in one MULTI/EXEC round-trip.
*/
func (publisher *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}

	_, err = publisher.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, publisher.channel, payload)
		if !event.FreshAt.IsZero() {
			pipe.ZAdd(ctx, publisher.ranking, redis.Z{
				Score:  float64(event.FreshAt.Unix()),
				Member: event.WorkID,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: failed to publish %s: %w", event.Kind, err)
	}

	return nil
}

func encodeEvent(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("redis: failed to encode event: %w", err)
	}
	return payload, nil
}
