package port

import (
	"context"

	"vision-relay/internal/domain/entity"
)

// SessionRepository интерфейс хранилища сессий чатов
type SessionRepository interface {
	// Get возвращает сессию чата, создаёт новую если не найдена
	Get(ctx context.Context, chatID int64) (*entity.Session, error)

	// Save сохраняет состояние сессии
	Save(ctx context.Context, session *entity.Session) error

	// Update атомарно применяет fn к сессии и сохраняет результат
	Update(ctx context.Context, chatID int64, fn func(*entity.Session)) (*entity.Session, error)
}
