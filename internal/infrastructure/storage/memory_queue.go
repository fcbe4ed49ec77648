package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"vision-relay/internal/domain/entity"
	"vision-relay/internal/domain/port"
)

// ErrStaleDelivery: токен доставки не совпадает с текущим (сообщение уже передано другому воркеру)
var ErrStaleDelivery = errors.New("stale delivery token")

type memoryMessage struct {
	id             string
	body           string
	token          string
	invisibleUntil time.Time
	receives       int
}

// MemoryQueue: очередь в памяти с таймаутом видимости, как у SQS.
// Используется в standalone-режиме и в тестах.
type MemoryQueue struct {
	mu         sync.Mutex
	messages   []*memoryMessage
	visibility time.Duration
	wait       time.Duration
	signal     chan struct{}
	now        func() time.Time
}

// NewMemoryQueue создаёт очередь.
// visibility: сколько сообщение невидимо после получения, wait: сколько Receive ждёт сообщения.
func NewMemoryQueue(visibility, wait time.Duration) *MemoryQueue {
	return &MemoryQueue{
		visibility: visibility,
		wait:       wait,
		signal:     make(chan struct{}, 1),
		now:        time.Now,
	}
}

// Enqueue кладёт задание в очередь
func (q *MemoryQueue) Enqueue(ctx context.Context, req entity.JobRequest) error {
	body, err := entity.EncodeJobRequest(req)
	if err != nil {
		return err
	}
	q.Publish(body)
	return nil
}

// Publish кладёт сырое тело сообщения и возвращает его ID
func (q *MemoryQueue) Publish(body string) string {
	id := uuid.NewString()

	q.mu.Lock()
	q.messages = append(q.messages, &memoryMessage{id: id, body: body})
	q.mu.Unlock()

	q.wake()
	return id
}

// Receive возвращает первое видимое сообщение или nil по истечении ожидания
func (q *MemoryQueue) Receive(ctx context.Context) (*entity.JobMessage, error) {
	timer := time.NewTimer(q.wait)
	defer timer.Stop()

	for {
		if msg := q.take(); msg != nil {
			return msg, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return q.take(), nil
		case <-q.signal:
		case <-time.After(q.nextVisible()):
		}
	}
}

// Delete удаляет сообщение, если токен доставки актуален
func (q *MemoryQueue) Delete(ctx context.Context, msg *entity.JobMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, m := range q.messages {
		if m.id != msg.ID {
			continue
		}
		if m.token != msg.DeliveryToken {
			return ErrStaleDelivery
		}
		q.messages = append(q.messages[:i], q.messages[i+1:]...)
		return nil
	}
	return nil
}

// Release сразу делает сообщение снова видимым
func (q *MemoryQueue) Release(ctx context.Context, msg *entity.JobMessage) error {
	q.mu.Lock()
	for _, m := range q.messages {
		if m.id == msg.ID && m.token == msg.DeliveryToken {
			m.invisibleUntil = time.Time{}
			m.token = ""
		}
	}
	q.mu.Unlock()

	q.wake()
	return nil
}

// Len возвращает число неподтверждённых сообщений
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Receives возвращает, сколько раз сообщение выдавалось воркерам
func (q *MemoryQueue) Receives(id string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range q.messages {
		if m.id == id {
			return m.receives
		}
	}
	return 0
}

func (q *MemoryQueue) take() *entity.JobMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for _, m := range q.messages {
		if now.Before(m.invisibleUntil) {
			continue
		}
		m.token = uuid.NewString()
		m.invisibleUntil = now.Add(q.visibility)
		m.receives++
		return &entity.JobMessage{ID: m.id, DeliveryToken: m.token, Body: m.body}
	}
	return nil
}

// nextVisible: через сколько станет видимым ближайшее скрытое сообщение
func (q *MemoryQueue) nextVisible() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	next := q.wait
	for _, m := range q.messages {
		if d := m.invisibleUntil.Sub(now); d > 0 && d < next {
			next = d
		}
	}
	return next
}

func (q *MemoryQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

var (
	_ port.JobProducer = (*MemoryQueue)(nil)
	_ port.JobConsumer = (*MemoryQueue)(nil)
	_ port.Releaser    = (*MemoryQueue)(nil)
)
