package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DoyleJ11/party-quiz-backend/internal/engine"
)

// Redis keeps each session as one JSON document with a sliding TTL, plus a
// code -> id index reserved with SETNX.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("store: ping redis: %w", err)
	}
	return &Redis{rdb: rdb, ttl: ttl}, nil
}

func sessionKey(id string) string { return "session:" + id }

func codeKey(code string) string { return "code:" + normalizeCode(code) }

func (r *Redis) CreateSession(ctx context.Context, s engine.State) error {
	ok, err := r.rdb.SetNX(ctx, codeKey(s.JoinCode), s.SessionID, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("store: reserve code: %w", err)
	}
	if !ok {
		return ErrDuplicateCode
	}
	return r.Save(ctx, s)
}

func (r *Redis) Save(ctx context.Context, s engine.State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("store: encode session: %w", err)
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(s.SessionID), data, r.ttl)
		pipe.Set(ctx, codeKey(s.JoinCode), s.SessionID, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: save session %s: %w", s.SessionID, err)
	}
	return nil
}

func (r *Redis) Load(ctx context.Context, id string) (engine.State, error) {
	data, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return engine.State{}, ErrNotFound
	}
	if err != nil {
		return engine.State{}, fmt.Errorf("store: load session %s: %w", id, err)
	}
	var s engine.State
	if err := json.Unmarshal(data, &s); err != nil {
		return engine.State{}, fmt.Errorf("store: decode session %s: %w", id, err)
	}
	return s, nil
}

func (r *Redis) FindByCode(ctx context.Context, code string) (engine.State, error) {
	id, err := r.rdb.Get(ctx, codeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return engine.State{}, ErrNotFound
	}
	if err != nil {
		return engine.State{}, fmt.Errorf("store: resolve code: %w", err)
	}
	return r.Load(ctx, id)
}

func (r *Redis) ListTeams(ctx context.Context, sessionID string) ([]engine.Team, error) {
	s, err := r.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Teams, nil
}

func (r *Redis) Close() error { return r.rdb.Close() }
