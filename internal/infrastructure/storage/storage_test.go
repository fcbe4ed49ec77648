package storage

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vision-relay/internal/domain/entity"
)

func TestMemorySessionRepository_GetCreatesAndSaves(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	s, err := repo.Get(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, s.State)

	s.BeginJob()
	require.NoError(t, repo.Save(ctx, s))

	got, err := repo.Get(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateProcessing, got.State)
	require.Equal(t, 1, got.Pending)
}

func TestMemorySessionRepository_Update(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	got, err := repo.Update(ctx, 11, (*entity.Session).BeginJob)
	require.NoError(t, err)
	require.Equal(t, 1, got.Pending)

	got.BeginJob()
	stored, err := repo.Get(ctx, 11)
	require.NoError(t, err)
	require.Equal(t, 1, stored.Pending)
}

func TestFilesystemBlobStore_PutGet(t *testing.T) {
	store, err := NewFilesystemBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "predicted/photos/a.jpg", bytes.NewReader([]byte("v1"))))
	require.NoError(t, store.Put(ctx, "predicted/photos/a.jpg", bytes.NewReader([]byte("v2"))))

	rc, err := store.Get(ctx, "predicted/photos/a.jpg")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "v2", string(data))

	_, err = store.Get(ctx, "photos/missing.jpg")
	require.ErrorIs(t, err, entity.ErrBlobNotFound)
}

func TestFilesystemBlobStore_RejectsTraversal(t *testing.T) {
	store, err := NewFilesystemBlobStore(t.TempDir())
	require.NoError(t, err)

	err = store.Put(context.Background(), "../escape.jpg", bytes.NewReader(nil))
	require.Error(t, err)
}

func TestMemoryResultStore_Overwrite(t *testing.T) {
	store := NewMemoryResultStore()
	ctx := context.Background()
	s := &entity.JobSummary{JobID: "j1", CorrelationID: "1"}

	require.NoError(t, store.Put(ctx, s))
	require.NoError(t, store.Put(ctx, s))
	require.Equal(t, 1, store.Len())

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, entity.ErrSummaryNotFound)
}

func TestMemoryQueue_VisibilityAndDelete(t *testing.T) {
	q := NewMemoryQueue(time.Hour, 10*time.Millisecond)
	ctx := context.Background()
	id := q.Publish("photos/abc.jpg,12345")

	msg, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, id, msg.ID)

	// пока сообщение невидимо, очередь выглядит пустой
	empty, err := q.Receive(ctx)
	require.NoError(t, err)
	require.Nil(t, empty)

	require.NoError(t, q.Delete(ctx, msg))
	require.Zero(t, q.Len())
}

func TestMemoryQueue_ReleaseAndStaleToken(t *testing.T) {
	q := NewMemoryQueue(time.Hour, 10*time.Millisecond)
	ctx := context.Background()
	q.Publish("photos/abc.jpg,12345")

	first, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Release(ctx, first))

	second, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 2, q.Receives(first.ID))

	require.ErrorIs(t, q.Delete(ctx, first), ErrStaleDelivery)
	require.NoError(t, q.Delete(ctx, second))
}

func TestMemoryQueue_RedeliversAfterVisibilityTimeout(t *testing.T) {
	q := NewMemoryQueue(20*time.Millisecond, 200*time.Millisecond)
	ctx := context.Background()
	q.Publish("photos/abc.jpg,12345")

	first, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)

	again, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, again)
	require.Equal(t, first.ID, again.ID)
	require.NotEqual(t, first.DeliveryToken, again.DeliveryToken)
}
