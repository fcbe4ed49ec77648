package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"vision-relay/internal/domain/entity"
	"vision-relay/internal/domain/port"
)

// JobProcessor обрабатывает одно сообщение
type JobProcessor interface {
	Process(ctx context.Context, msg *entity.JobMessage) error
}

// Worker: однопоточный цикл poll → process → ack.
// Несколько воркеров работают независимо и делят только очередь.
type Worker struct {
	consumer       port.JobConsumer
	processor      JobProcessor
	log            logrus.FieldLogger
	errorBackoff   time.Duration
	failureBackoff time.Duration
}

// NewWorker создаёт цикл опроса очереди
func NewWorker(consumer port.JobConsumer, processor JobProcessor, logger logrus.FieldLogger) *Worker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Worker{
		consumer:       consumer,
		processor:      processor,
		log:            logger,
		errorBackoff:   time.Second,
		failureBackoff: time.Second,
	}
}

// WithBackoff задаёт паузы после ошибки опроса и после неудачного задания
func (w *Worker) WithBackoff(onPollError, onJobFailure time.Duration) *Worker {
	w.errorBackoff = onPollError
	w.failureBackoff = onJobFailure
	return w
}

// Run крутит цикл до отмены контекста
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started")
	for {
		if ctx.Err() != nil {
			w.log.Info("worker stopped")
			return nil
		}
		w.Poll(ctx)
	}
}

// Poll выполняет одну итерацию цикла и возвращает true, если сообщение было обработано успешно
func (w *Worker) Poll(ctx context.Context) bool {
	msg, err := w.consumer.Receive(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.WithError(err).Error("failed to receive message")
			sleep(ctx, w.errorBackoff)
		}
		return false
	}
	if msg == nil {
		return false
	}

	if err := w.safeProcess(ctx, msg); err != nil {
		w.log.WithField("job_id", msg.ID).WithError(err).Error("job failed, message left for redelivery")
		w.release(ctx, msg)
		sleep(ctx, w.failureBackoff)
		return false
	}
	return true
}

// safeProcess не даёт панике одного задания уронить цикл
func (w *Worker) safeProcess(ctx context.Context, msg *entity.JobMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.processor.Process(ctx, msg)
}

func (w *Worker) release(ctx context.Context, msg *entity.JobMessage) {
	releaser, ok := w.consumer.(port.Releaser)
	if !ok {
		return
	}
	if err := releaser.Release(ctx, msg); err != nil {
		w.log.WithField("job_id", msg.ID).WithError(err).Warn("failed to release message")
	}
}

// RunPool запускает n независимых циклов и ждёт их завершения
func RunPool(ctx context.Context, n int, newWorker func(i int) *Worker) error {
	if n < 1 {
		return errors.New("worker pool size must be positive")
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		w := newWorker(i)
		g.Go(func() error {
			return w.Run(ctx)
		})
	}
	return g.Wait()
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
