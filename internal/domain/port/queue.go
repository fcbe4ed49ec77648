package port

import (
	"context"

	"vision-relay/internal/domain/entity"
)

// JobProducer кладёт задания в очередь
type JobProducer interface {
	Enqueue(ctx context.Context, req entity.JobRequest) error
}

// JobConsumer забирает задания из очереди
type JobConsumer interface {
	// Receive ждёт сообщение не дольше ограниченного интервала.
	// Пустая очередь: не ошибка: возвращается nil, nil.
	Receive(ctx context.Context) (*entity.JobMessage, error)

	// Delete подтверждает доставку, после этого сообщение не вернётся
	Delete(ctx context.Context, msg *entity.JobMessage) error
}

// Releaser реализуют очереди, которые умеют вернуть сообщение без ожидания таймаута видимости
type Releaser interface {
	Release(ctx context.Context, msg *entity.JobMessage) error
}
