package storage

import (
	"context"
	"sync"

	"vision-relay/internal/domain/entity"
	"vision-relay/internal/domain/port"
)

// MemorySessionRepository in-memory хранилище сессий чатов
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[int64]*entity.Session
}

// NewMemorySessionRepository создаёт новое in-memory хранилище
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[int64]*entity.Session),
	}
}

// Get возвращает копию сессии, создаёт новую если не найдена
func (r *MemorySessionRepository) Get(ctx context.Context, chatID int64) (*entity.Session, error) {
	r.mu.RLock()
	session, exists := r.sessions[chatID]
	r.mu.RUnlock()

	if exists {
		s := *session
		return &s, nil
	}

	return entity.NewSession(chatID), nil
}

// Save сохраняет состояние сессии
func (r *MemorySessionRepository) Save(ctx context.Context, session *entity.Session) error {
	s := *session

	r.mu.Lock()
	r.sessions[session.ChatID] = &s
	r.mu.Unlock()

	return nil
}

// Update применяет fn под блокировкой записи и возвращает копию
func (r *MemorySessionRepository) Update(ctx context.Context, chatID int64, fn func(*entity.Session)) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[chatID]
	if !exists {
		session = entity.NewSession(chatID)
		r.sessions[chatID] = session
	}
	fn(session)

	s := *session
	return &s, nil
}

// Проверка реализации интерфейса
var _ port.SessionRepository = (*MemorySessionRepository)(nil)
