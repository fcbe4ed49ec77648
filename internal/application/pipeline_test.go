package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"vision-relay/internal/domain/entity"
	"vision-relay/internal/domain/port"
	"vision-relay/internal/infrastructure/storage"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type pipelineFixture struct {
	blobs    *storage.MemoryBlobStore
	results  port.ResultStore
	queue    *storage.MemoryQueue
	engine   *fakeEngine
	notifier *fakeNotifier
	orch     *Orchestrator
	worker   *Worker
	workDir  string
}

func newPipelineFixture(t *testing.T, results port.ResultStore) *pipelineFixture {
	t.Helper()

	if results == nil {
		results = storage.NewMemoryResultStore()
	}
	f := &pipelineFixture{
		blobs:    storage.NewMemoryBlobStore(),
		results:  results,
		queue:    storage.NewMemoryQueue(time.Hour, 10*time.Millisecond),
		engine:   &fakeEngine{},
		notifier: &fakeNotifier{},
		workDir:  t.TempDir(),
	}
	require.NoError(t, f.blobs.Put(context.Background(), "photos/abc.jpg", bytes.NewReader([]byte("img"))))

	logger, _ := test.NewNullLogger()
	orch, err := NewOrchestrator(PipelineDeps{
		Blobs:    f.blobs,
		Engine:   f.engine,
		Results:  f.results,
		Notifier: f.notifier,
		Queue:    f.queue,
		Labels:   NewLabelResolver([]string{"person", "cat", "dog"}),
		Logger:   logger,
	}, f.workDir, 0)
	require.NoError(t, err)
	orch.now = func() time.Time { return fixedNow }

	f.orch = orch
	f.worker = NewWorker(f.queue, orch, logger).WithBackoff(0, 0)
	return f
}

func (f *pipelineFixture) receive(t *testing.T) *entity.JobMessage {
	t.Helper()
	msg, err := f.queue.Receive(context.Background())
	require.NoError(t, err)
	require.NotNil(t, msg)
	return msg
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.engine.labels = "0 0.5 0.5 0.2 0.4\n"
	id := f.queue.Publish("photos/abc.jpg,12345")

	require.True(t, f.worker.Poll(context.Background()))

	summary, err := f.results.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, &entity.JobSummary{
		JobID:             id,
		CorrelationID:     "12345",
		OriginalImageRef:  "photos/abc.jpg",
		AnnotatedImageRef: "predicted/photos/abc.jpg",
		Detections: []entity.Detection{
			{ClassName: "person", CenterX: 0.5, CenterY: 0.5, Width: 0.2, Height: 0.4},
		},
		CompletedAt: fixedNow,
	}, summary)

	rc, err := f.blobs.Get(context.Background(), "predicted/photos/abc.jpg")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "annotated:img", string(data))

	require.Equal(t, []string{id}, f.notifier.Calls())
	require.Zero(t, f.queue.Len())
}

func TestOrchestrator_IdempotentReprocessing(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.engine.labels = "1 0.1 0.2 0.3 0.4\n2 0.5 0.5 0.5 0.5\n"
	id := f.queue.Publish("photos/abc.jpg,12345")
	msg := f.receive(t)
	ctx := context.Background()

	require.NoError(t, f.orch.Process(ctx, msg))
	first, err := f.results.Get(ctx, id)
	require.NoError(t, err)
	keys := f.blobs.Keys()

	require.NoError(t, f.orch.Process(ctx, msg))
	second, err := f.results.Get(ctx, id)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, keys, f.blobs.Keys())
	require.Equal(t, []string{"photos/abc.jpg", "predicted/photos/abc.jpg"}, f.blobs.Keys())
}

func TestOrchestrator_ReprocessingKeepsCompletedAt(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.engine.labels = "0 0.5 0.5 0.2 0.4\n"
	clock := fixedNow
	f.orch.now = func() time.Time {
		clock = clock.Add(90 * time.Minute)
		return clock
	}
	id := f.queue.Publish("photos/abc.jpg,12345")
	msg := f.receive(t)
	ctx := context.Background()

	require.NoError(t, f.orch.Process(ctx, msg))
	first, err := f.results.Get(ctx, id)
	require.NoError(t, err)

	require.NoError(t, f.orch.Process(ctx, msg))
	second, err := f.results.Get(ctx, id)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, fixedNow.Add(90*time.Minute), second.CompletedAt)
}

func TestOrchestrator_ReprocessingWithWallClock(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.orch.now = time.Now
	f.engine.labels = "0 0.5 0.5 0.2 0.4\n"
	id := f.queue.Publish("photos/abc.jpg,12345")
	msg := f.receive(t)
	ctx := context.Background()

	require.NoError(t, f.orch.Process(ctx, msg))
	first, err := f.results.Get(ctx, id)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, f.orch.Process(ctx, msg))
	second, err := f.results.Get(ctx, id)
	require.NoError(t, err)

	require.Equal(t, first.CompletedAt, second.CompletedAt)
}

func TestOrchestrator_ZeroDetections(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.engine.noLabels = true
	id := f.queue.Publish("photos/abc.jpg,12345")

	require.True(t, f.worker.Poll(context.Background()))

	summary, err := f.results.Get(context.Background(), id)
	require.NoError(t, err)
	require.Empty(t, summary.Detections)
	require.Zero(t, f.queue.Len())
}

func TestOrchestrator_StoreFailureIsNotAcknowledged(t *testing.T) {
	f := newPipelineFixture(t, failingResultStore{})
	f.engine.labels = "0 0.5 0.5 0.2 0.4\n"
	f.queue.Publish("photos/abc.jpg,12345")

	msg := f.receive(t)
	err := f.orch.Process(context.Background(), msg)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	require.Equal(t, StageStore, stageErr.Stage)
	require.Equal(t, 1, f.queue.Len())
	require.Empty(t, f.notifier.Calls())
}

func TestOrchestrator_NotifyFailureStillAcknowledges(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.engine.labels = "0 0.5 0.5 0.2 0.4\n"
	f.notifier.err = errors.New("connection refused")
	id := f.queue.Publish("photos/abc.jpg,12345")

	require.True(t, f.worker.Poll(context.Background()))

	require.Zero(t, f.queue.Len())
	_, err := f.results.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, []string{id}, f.notifier.Calls())
}

func TestOrchestrator_UnknownClassIndex(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.engine.labels = "999 0.5 0.5 0.1 0.1\n"
	id := f.queue.Publish("photos/abc.jpg,12345")

	msg := f.receive(t)
	err := f.orch.Process(context.Background(), msg)

	require.ErrorIs(t, err, ErrUnknownClassIndex)
	var classErr *UnknownClassIndexError
	require.True(t, errors.As(err, &classErr))
	require.Equal(t, 999, classErr.Index)
	require.Equal(t, 3, classErr.Size)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	require.Equal(t, StageExtract, stageErr.Stage)

	require.Equal(t, 1, f.queue.Len())
	_, err = f.results.Get(context.Background(), id)
	require.ErrorIs(t, err, entity.ErrSummaryNotFound)
}

func TestOrchestrator_FetchFailure(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.queue.Publish("photos/missing.jpg,12345")

	msg := f.receive(t)
	err := f.orch.Process(context.Background(), msg)

	require.ErrorIs(t, err, entity.ErrBlobNotFound)
	require.Zero(t, f.engine.calls)
	require.Equal(t, 1, f.queue.Len())
}

func TestOrchestrator_InvalidBody(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.queue.Publish("garbage")

	msg := f.receive(t)
	err := f.orch.Process(context.Background(), msg)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	require.Equal(t, StageParse, stageErr.Stage)
	require.ErrorIs(t, err, entity.ErrInvalidJobBody)
}

func TestOrchestrator_CleansJobDirectory(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.engine.labels = "0 0.5 0.5 0.2 0.4\n"
	f.queue.Publish("photos/abc.jpg,12345")

	require.True(t, f.worker.Poll(context.Background()))

	entries, err := os.ReadDir(f.workDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestWorker_RecoversFromPanicAndReleases(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.engine.panicMsg = "model crashed"
	id := f.queue.Publish("photos/abc.jpg,12345")

	require.False(t, f.worker.Poll(context.Background()))

	// сообщение возвращено в очередь и сразу доступно снова
	require.Equal(t, 1, f.queue.Len())
	msg := f.receive(t)
	require.Equal(t, id, msg.ID)
	require.Equal(t, 2, f.queue.Receives(id))
}

func TestWorker_EmptyQueueIsIdle(t *testing.T) {
	f := newPipelineFixture(t, nil)
	require.False(t, f.worker.Poll(context.Background()))
	require.Zero(t, f.engine.calls)
}

func TestRunPool_ProcessesAllJobs(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.engine.labels = "2 0.5 0.5 0.2 0.4\n"
	for i := 0; i < 5; i++ {
		f.queue.Publish("photos/abc.jpg,12345")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunPool(ctx, 3, func(i int) *Worker {
			return NewWorker(f.queue, f.orch, logrus.New()).WithBackoff(0, 0)
		})
	}()

	require.Eventually(t, func() bool { return f.queue.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	require.Len(t, f.notifier.Calls(), 5)
}
