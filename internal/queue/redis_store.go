package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// claimScanFactor widens the candidate window so priority can reorder jobs
// that became eligible at the same poll.
const claimScanFactor = 4

// moveScript moves a member between sorted sets only if it is still in the
// source, making the move the point of mutual exclusion between workers.
var moveScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 1 then
	redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
	return 1
end
return 0
`)

// RedisStore keeps job bodies in a hash, eligible ids in a sorted set scored
// by run time and leased ids in a sorted set scored by lease deadline.
type RedisStore struct {
	client   redis.UniversalClient
	ready    string
	inflight string
	jobs     string
}

func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	return &RedisStore{
		client:   client,
		ready:    key + ":ready",
		inflight: key + ":inflight",
		jobs:     key + ":jobs",
	}
}

func (s *RedisStore) Push(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.jobs, env.ID, body)
		p.ZRem(ctx, s.inflight, env.ID)
		p.ZAdd(ctx, s.ready, redis.Z{Score: float64(env.RunAt.UnixMilli()), Member: env.ID})
		return nil
	})
	return err
}

func (s *RedisStore) Claim(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]Envelope, error) {
	nowMs := now.UnixMilli()
	upTo := strconv.FormatInt(nowMs, 10)

	expired, err := s.client.ZRangeByScore(ctx, s.inflight, &redis.ZRangeBy{Min: "-inf", Max: upTo}).Result()
	if err != nil {
		return nil, err
	}
	for _, id := range expired {
		if err := moveScript.Run(ctx, s.client, []string{s.inflight, s.ready}, id, nowMs).Err(); err != nil {
			return nil, err
		}
	}

	ids, err := s.client.ZRangeByScore(ctx, s.ready, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   upTo,
		Count: int64(limit * claimScanFactor),
	}).Result()
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	bodies, err := s.client.HMGet(ctx, s.jobs, ids...).Result()
	if err != nil {
		return nil, err
	}
	candidates := make([]Envelope, 0, len(ids))
	for i, raw := range bodies {
		str, ok := raw.(string)
		if !ok {
			// body vanished, the id is an orphan
			s.client.ZRem(ctx, s.ready, ids[i])
			continue
		}
		var env Envelope
		if err := json.Unmarshal([]byte(str), &env); err != nil {
			return nil, fmt.Errorf("decode envelope %s: %w", ids[i], err)
		}
		candidates = append(candidates, env)
	}
	sortEnvelopes(candidates)

	leaseUntil := now.Add(lease).UnixMilli()
	claimed := make([]Envelope, 0, limit)
	for _, env := range candidates {
		if len(claimed) == limit {
			break
		}
		moved, err := moveScript.Run(ctx, s.client, []string{s.ready, s.inflight}, env.ID, leaseUntil).Int()
		if err != nil {
			return claimed, err
		}
		if moved == 1 {
			claimed = append(claimed, env)
		}
	}
	return claimed, nil
}

func (s *RedisStore) Ack(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, s.inflight, id)
		p.ZRem(ctx, s.ready, id)
		p.HDel(ctx, s.jobs, id)
		return nil
	})
	return err
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
