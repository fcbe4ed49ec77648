package app

import (
	"context"

	"vision-relay/internal/domain/entity"
	"vision-relay/internal/domain/port"
)

// SessionService управляет состоянием чатов
type SessionService struct {
	repo port.SessionRepository
}

func NewSessionService(repo port.SessionRepository) *SessionService {
	return &SessionService{repo: repo}
}

func (s *SessionService) Get(ctx context.Context, chatID int64) (*entity.Session, error) {
	return s.repo.Get(ctx, chatID)
}

// BeginJob отмечает новое задание чата
func (s *SessionService) BeginJob(ctx context.Context, chatID int64) (*entity.Session, error) {
	return s.update(ctx, chatID, (*entity.Session).BeginJob)
}

// FinishJob отмечает доставку результата
func (s *SessionService) FinishJob(ctx context.Context, chatID int64) (*entity.Session, error) {
	return s.update(ctx, chatID, (*entity.Session).FinishJob)
}

// Cancel возвращает чат в главное меню
func (s *SessionService) Cancel(ctx context.Context, chatID int64) (*entity.Session, error) {
	return s.update(ctx, chatID, (*entity.Session).Reset)
}

func (s *SessionService) update(ctx context.Context, chatID int64, fn func(*entity.Session)) (*entity.Session, error) {
	return s.repo.Update(ctx, chatID, fn)
}
