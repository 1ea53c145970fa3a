package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"reelforge/config"
	"reelforge/types"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no record exists for a job id.
var ErrNotFound = errors.New("job record not found")

// RedisConfig configures the job record store.
type RedisConfig struct {
	Addr     string // e.g. localhost:6379
	Password string
	DB       int
	TTL      time.Duration
}

// RedisJobStore keeps the latest status record of every render job, indexed
// by run so a run's jobs can be read back in one round trip.
type RedisJobStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisJobStore connects and pings the server.
func NewRedisJobStore(ctx context.Context, cfg RedisConfig) (*RedisJobStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = config.JobRecordTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	log.Printf("✅ Redis job store connected (%s)", cfg.Addr)
	return &RedisJobStore{client: client, ttl: ttl}, nil
}

// JobKey is the key holding one job record.
func JobKey(jobID string) string {
	return config.JobKeyPrefix + jobID
}

// RunKey is the set of job ids that belong to a run.
func RunKey(runID string) string {
	return config.RunJobsKeyPrefix + runID
}

// Save writes ev as the job's current record.
func (s *RedisJobStore) Save(ctx context.Context, ev types.StatusEvent) error {
	if ev.ID == "" {
		return errors.New("job record without id")
	}
	if ev.UpdatedAt.IsZero() {
		ev.UpdatedAt = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", ev.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, JobKey(ev.ID), data, s.ttl)
	if ev.ProjectID != "" {
		pipe.SAdd(ctx, RunKey(ev.ProjectID), ev.ID)
		pipe.Expire(ctx, RunKey(ev.ProjectID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save job %s: %w", ev.ID, err)
	}
	return nil
}

// Get returns the record for jobID.
func (s *RedisJobStore) Get(ctx context.Context, jobID string) (types.StatusEvent, error) {
	var ev types.StatusEvent
	data, err := s.client.Get(ctx, JobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ev, ErrNotFound
	}
	if err != nil {
		return ev, fmt.Errorf("failed to read job %s: %w", jobID, err)
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("corrupt job record %s: %w", jobID, err)
	}
	return ev, nil
}

// ListRun returns every stored record of runID. Expired members are skipped.
func (s *RedisJobStore) ListRun(ctx context.Context, runID string) ([]types.StatusEvent, error) {
	ids, err := s.client.SMembers(ctx, RunKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list run %s: %w", runID, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = JobKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", runID, err)
	}
	return decodeRecords(values), nil
}

// Close closes the client.
func (s *RedisJobStore) Close() error {
	return s.client.Close()
}

func decodeRecords(values []interface{}) []types.StatusEvent {
	out := make([]types.StatusEvent, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var ev types.StatusEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			log.Printf("⚠️  Skipping corrupt job record: %v", err)
			continue
		}
		out = append(out, ev)
	}
	return out
}
