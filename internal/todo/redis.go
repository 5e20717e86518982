package todo

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/otto-ai/otto/internal/errors"
)

const redisKeyPrefix = "otto:todo:"
const redisIndexKey = "otto:todos"

// RedisStore persists todos as Redis hashes, one per todo, with a set
// of IDs for listing. Transitions use WATCH-guarded transactions so the
// expected-status check and the write are atomic.
type RedisStore struct {
	client *redis.Client
}

// RedisOptions configures the connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func OpenRedis(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, storeErr("connect", err)
	}
	return &RedisStore{client: client}, nil
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

func (s *RedisStore) Create(ctx context.Context, td *Todo) error {
	key := redisKey(td.ID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return conflictErr(fmt.Sprintf("todo already exists: %s", td.ID))
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, todoFields(td))
			pipe.SAdd(ctx, redisIndexKey, td.ID)
			return nil
		})
		return err
	}, key)

	return wrapRedisErr("create", err)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Todo, error) {
	fields, err := s.client.HGetAll(ctx, redisKey(id)).Result()
	if err != nil {
		return nil, storeErr("get", err)
	}
	if len(fields) == 0 {
		return nil, notFoundErr(id)
	}
	return todoFromFields(id, fields)
}

func (s *RedisStore) Update(ctx context.Context, td *Todo, expect Status) error {
	key := redisKey(td.ID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, "status").Result()
		if err == redis.Nil {
			return notFoundErr(td.ID)
		}
		if err != nil {
			return err
		}
		if current != string(expect) {
			return conflictErr(fmt.Sprintf(
				"todo %s is %s, expected %s", td.ID, current, expect))
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, todoFields(td))
			return nil
		})
		return err
	}, key)

	return wrapRedisErr("update", err)
}

func (s *RedisStore) List(ctx context.Context, filter Filter) ([]*Todo, error) {
	ids, err := s.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, storeErr("list", err)
	}

	out := make([]*Todo, 0, len(ids))
	for _, id := range ids {
		td, err := s.Get(ctx, id)
		if err != nil {
			// The index can briefly point at a hash another writer is
			// still building; skip rather than fail the listing.
			continue
		}
		if filter.matches(td) {
			out = append(out, td)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *RedisStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	all, err := s.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	counts := make(map[Status]int)
	for _, td := range all {
		counts[td.Status]++
	}
	return counts, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// wrapRedisErr keeps store-level errors intact and converts transport
// failures. A failed WATCH means another writer won the race.
func wrapRedisErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if err == redis.TxFailedErr {
		return conflictErr("todo modified concurrently")
	}
	if _, ok := err.(*errors.AppError); ok {
		return err
	}
	return storeErr(op, err)
}

func todoFields(td *Todo) map[string]any {
	fields := map[string]any{
		"scope":               string(td.Scope),
		"scope_id":            td.ScopeID,
		"title":               td.Title,
		"context":             td.Context,
		"completion_criteria": td.CompletionCriteria,
		"agent_type_hint":     td.AgentTypeHint,
		"priority":            string(td.Priority),
		"status":              string(td.Status),
		"creator_id":          td.CreatorID,
		"executor_id":         td.ExecutorID,
		"outcome":             td.Outcome,
		"created_at":          td.CreatedAt.Unix(),
		"updated_at":          td.UpdatedAt.Unix(),
	}
	if td.StartedAt != nil {
		fields["started_at"] = td.StartedAt.Unix()
	}
	if td.CompletedAt != nil {
		fields["completed_at"] = td.CompletedAt.Unix()
	}
	return fields
}

func todoFromFields(id string, fields map[string]string) (*Todo, error) {
	td := &Todo{
		ID:                 id,
		Scope:              Scope(fields["scope"]),
		ScopeID:            fields["scope_id"],
		Title:              fields["title"],
		Context:            fields["context"],
		CompletionCriteria: fields["completion_criteria"],
		AgentTypeHint:      fields["agent_type_hint"],
		Priority:           Priority(fields["priority"]),
		Status:             Status(fields["status"]),
		CreatorID:          fields["creator_id"],
		ExecutorID:         fields["executor_id"],
		Outcome:            fields["outcome"],
	}

	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, storeErr("decode", err)
	}
	td.CreatedAt = time.Unix(createdAt, 0)

	updatedAt, err := strconv.ParseInt(fields["updated_at"], 10, 64)
	if err != nil {
		return nil, storeErr("decode", err)
	}
	td.UpdatedAt = time.Unix(updatedAt, 0)

	if raw, ok := fields["started_at"]; ok {
		sec, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, storeErr("decode", err)
		}
		at := time.Unix(sec, 0)
		td.StartedAt = &at
	}
	if raw, ok := fields["completed_at"]; ok {
		sec, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, storeErr("decode", err)
		}
		at := time.Unix(sec, 0)
		td.CompletedAt = &at
	}
	return td, nil
}
