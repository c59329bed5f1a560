package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shaiso/automateos/internal/domain"
)

// keyPrefix — префикс ключей заданий в Redis.
const keyPrefix = "automateos:queue:"

// RedisJobStore — JobStore в Redis.
//
// Ключи:
//
//	automateos:queue:job:<id>    — JSON задания, TTL = ttl
//	automateos:queue:started     — SET id выполняющихся заданий
//	automateos:queue:finished    — ZSET id завершённых (score = ended_at)
//	automateos:queue:failed      — ZSET id упавших (score = ended_at)
//
// Запись задания и индексы обновляются одной транзакцией MULTI/EXEC.
type RedisJobStore struct {
	client redis.UniversalClient
	ttl    time.Duration

	// now подменяется в тестах.
	now func() time.Time
}

// NewRedisJobStore создаёт RedisJobStore.
func NewRedisJobStore(client redis.UniversalClient, ttl time.Duration) *RedisJobStore {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return &RedisJobStore{client: client, ttl: ttl, now: time.Now}
}

// NewRedisClient создаёт клиент по URL (redis://host:port/db) и
// проверяет соединение.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func jobKey(id string) string { return keyPrefix + "job:" + id }

var (
	startedKey  = keyPrefix + "started"
	finishedKey = keyPrefix + "finished"
	failedKey   = keyPrefix + "failed"
)

func (s *RedisJobStore) Save(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, jobKey(job.ID), data, s.ttl)

		switch job.Status {
		case domain.JobStatusRunning:
			pipe.SAdd(ctx, startedKey, job.ID)
		case domain.JobStatusFinished, domain.JobStatusFailed:
			index := finishedKey
			if job.Status == domain.JobStatusFailed {
				index = failedKey
			}
			ended := s.now()
			if job.EndedAt != nil {
				ended = *job.EndedAt
			}
			pipe.SRem(ctx, startedKey, job.ID)
			pipe.ZAdd(ctx, index, redis.Z{Score: float64(ended.Unix()), Member: job.ID})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	data, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

func (s *RedisJobStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, jobKey(id))
		pipe.SRem(ctx, startedKey, id)
		pipe.ZRem(ctx, finishedKey, id)
		pipe.ZRem(ctx, failedKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

// Counts возвращает счётчики. Истёкшие записи из ZSET удаляются
// перед подсчётом, так что счётчики соответствуют окну ttl.
func (s *RedisJobStore) Counts(ctx context.Context) (*Counts, error) {
	cutoff := strconv.FormatInt(s.now().Add(-s.ttl).Unix(), 10)

	var started, finished, failed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, finishedKey, "-inf", "("+cutoff)
		pipe.ZRemRangeByScore(ctx, failedKey, "-inf", "("+cutoff)
		started = pipe.SCard(ctx, startedKey)
		finished = pipe.ZCard(ctx, finishedKey)
		failed = pipe.ZCard(ctx, failedKey)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	return &Counts{
		Started:  started.Val(),
		Finished: finished.Val(),
		Failed:   failed.Val(),
	}, nil
}
