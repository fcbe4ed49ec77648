package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"vision-relay/internal/domain/entity"
	"vision-relay/internal/domain/port"
)

// ResultStore хранит итоги в Redis в виде JSON по ключу <prefix><job_id>
type ResultStore struct {
	client goredis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewClient подключается к Redis по URL и проверяет соединение
func NewClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.MaxRetries = 5
	opts.MinRetryBackoff = 100 * time.Millisecond
	opts.MaxRetryBackoff = 2 * time.Second
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewResultStore создаёт хранилище; ttl == 0: без срока жизни
func NewResultStore(client goredis.Cmdable, prefix string, ttl time.Duration) *ResultStore {
	return &ResultStore{client: client, prefix: prefix, ttl: ttl}
}

// Put записывает итог, SET перезаписывает предыдущий
func (s *ResultStore) Put(ctx context.Context, summary *entity.JobSummary) error {
	data, err := json.Marshal(summary.ToRecord())
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+summary.JobID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get читает итог по job_id
func (s *ResultStore) Get(ctx context.Context, jobID string) (*entity.JobSummary, error) {
	data, err := s.client.Get(ctx, s.prefix+jobID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("%w: %s", entity.ErrSummaryNotFound, jobID)
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec entity.SummaryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return rec.ToSummary()
}

var _ port.ResultStore = (*ResultStore)(nil)
