package port

import "context"

// Notifier сообщает внешнему потребителю, что задание готово
type Notifier interface {
	Notify(ctx context.Context, jobID string) error
}

// NotifierFunc позволяет использовать обычную функцию как Notifier
type NotifierFunc func(ctx context.Context, jobID string) error

func (f NotifierFunc) Notify(ctx context.Context, jobID string) error {
	return f(ctx, jobID)
}
