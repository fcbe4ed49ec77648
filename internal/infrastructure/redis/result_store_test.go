package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"vision-relay/internal/domain/entity"
)

// fakeRedis реализует только SET и GET
type fakeRedis struct {
	goredis.Cmdable
	data map[string]string
	ttl  map[string]time.Duration
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.ttl[key] = expiration
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *goredis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func TestResultStore_PutGet(t *testing.T) {
	fake := &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
	store := NewResultStore(fake, "prediction:", time.Hour)
	ctx := context.Background()

	summary := &entity.JobSummary{
		JobID:             "job-1",
		CorrelationID:     "12345",
		OriginalImageRef:  "photos/abc.jpg",
		AnnotatedImageRef: "predicted/photos/abc.jpg",
		Detections:        []entity.Detection{{ClassName: "cat", CenterX: 0.1, CenterY: 0.2, Width: 0.3, Height: 0.4}},
		CompletedAt:       time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, store.Put(ctx, summary))
	require.Contains(t, fake.data["prediction:job-1"], `"prediction_id":"job-1"`)
	require.Equal(t, time.Hour, fake.ttl["prediction:job-1"])

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, summary, got)

	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, entity.ErrSummaryNotFound)
}
