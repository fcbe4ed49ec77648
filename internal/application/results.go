package app

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/sirupsen/logrus"

	"vision-relay/internal/domain/port"
)

// ResultsService доставляет итог задания в чат, откуда пришло фото
type ResultsService struct {
	results  port.ResultStore
	blobs    port.BlobStore
	chat     port.ChatClient
	sessions *SessionService
	log      logrus.FieldLogger
}

func NewResultsService(results port.ResultStore, blobs port.BlobStore, chat port.ChatClient, sessions *SessionService, logger logrus.FieldLogger) *ResultsService {
	return &ResultsService{
		results:  results,
		blobs:    blobs,
		chat:     chat,
		sessions: sessions,
		log:      logger,
	}
}

// Deliver читает итог по job_id и отправляет сводку.
// Картинка с разметкой отправляется по возможности: без неё сводка всё равно доставлена.
func (s *ResultsService) Deliver(ctx context.Context, jobID string) error {
	summary, err := s.results.Get(ctx, jobID)
	if err != nil {
		return err
	}

	chatID, err := strconv.ParseInt(summary.CorrelationID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", summary.CorrelationID, err)
	}
	log := s.log.WithFields(logrus.Fields{"job_id": jobID, "chat_id": chatID})

	text := msgNoObjects
	if len(summary.Detections) > 0 {
		text = msgResultsHeader + FormatSummary(summary)
	}
	if err := s.chat.SendText(chatID, text); err != nil {
		return fmt.Errorf("send results: %w", err)
	}
	log.Info("results delivered")

	if err := s.sendAnnotated(ctx, chatID, summary.AnnotatedImageRef); err != nil {
		log.WithError(err).Warn("failed to send annotated image")
	}

	if _, err := s.sessions.FinishJob(ctx, chatID); err != nil {
		log.WithError(err).Warn("failed to update session")
	}
	return nil
}

func (s *ResultsService) sendAnnotated(ctx context.Context, chatID int64, key string) error {
	if key == "" {
		return nil
	}
	body, err := s.blobs.Get(ctx, key)
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	return s.chat.SendPhoto(chatID, path.Base(key), data)
}
