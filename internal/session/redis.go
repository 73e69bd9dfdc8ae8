package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DoyleJ11/warband-backend/internal/engine"
)

const maxMutateAttempts = 5

// Redis keeps each campaign's state as one JSON value. Mutate uses WATCH so
// concurrent server instances never interleave a read-modify-write.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = (*Redis)(nil)

// NewRedis returns a redis-backed store. A zero ttl keeps entries until reset.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func key(campaignID int64) string {
	return fmt.Sprintf("campaign:%d:combat", campaignID)
}

func decode(data string) (engine.State, error) {
	var s engine.State
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return engine.State{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

func (r *Redis) Get(ctx context.Context, campaignID int64) (engine.State, bool, error) {
	data, err := r.client.Get(ctx, key(campaignID)).Result()
	if errors.Is(err, redis.Nil) {
		return engine.State{}, false, nil
	}
	if err != nil {
		return engine.State{}, false, fmt.Errorf("get session: %w", err)
	}
	s, err := decode(data)
	if err != nil {
		return engine.State{}, false, err
	}
	return s, true, nil
}

func (r *Redis) Mutate(ctx context.Context, campaignID int64, fn MutateFunc) (engine.State, error) {
	k := key(campaignID)
	var result engine.State

	txf := func(tx *redis.Tx) error {
		current := engine.State{}
		data, err := tx.Get(ctx, k).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("get session: %w", err)
		default:
			if current, err = decode(data); err != nil {
				return err
			}
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		if next.Empty() {
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, k)
				return nil
			})
			result = engine.State{}
			return err
		}

		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, string(encoded), r.ttl)
			return nil
		})
		result = next
		return err
	}

	for range maxMutateAttempts {
		err := r.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return engine.State{}, err
		}
		return result, nil
	}
	return engine.State{}, ErrContention
}

func (r *Redis) Snapshot(ctx context.Context, campaignID int64) (engine.State, error) {
	s, _, err := r.Get(ctx, campaignID)
	return s, err
}

func (r *Redis) Delete(ctx context.Context, campaignID int64) error {
	if err := r.client.Del(ctx, key(campaignID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
