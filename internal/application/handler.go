package app

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"

	"github.com/sirupsen/logrus"

	"vision-relay/internal/domain/entity"
	"vision-relay/internal/domain/port"
)

// Режимы обработки входящих сообщений
const (
	ModeDetection = "detection"
	ModeEcho      = "echo"
)

// MessageHandler обрабатывает входящее сообщение чата
type MessageHandler interface {
	Handle(ctx context.Context, msg entity.ChatMessage)
}

// EchoHandler повторяет текст пользователя
type EchoHandler struct {
	chat port.ChatClient
	log  logrus.FieldLogger
}

func NewEchoHandler(chat port.ChatClient, logger logrus.FieldLogger) *EchoHandler {
	return &EchoHandler{chat: chat, log: logger}
}

func (h *EchoHandler) Handle(ctx context.Context, msg entity.ChatMessage) {
	h.log.WithField("chat_id", msg.ChatID).Info("incoming message")
	send(h.log, h.chat, msg.ChatID, fmt.Sprintf(msgEcho, msg.Text))
}

// DetectionHandler принимает фото и ставит их в очередь на распознавание
type DetectionHandler struct {
	chat     port.ChatClient
	blobs    port.BlobStore
	producer port.JobProducer
	sessions *SessionService
	log      logrus.FieldLogger
}

func NewDetectionHandler(chat port.ChatClient, blobs port.BlobStore, producer port.JobProducer, sessions *SessionService, logger logrus.FieldLogger) *DetectionHandler {
	return &DetectionHandler{
		chat:     chat,
		blobs:    blobs,
		producer: producer,
		sessions: sessions,
		log:      logger,
	}
}

// NewMessageHandler выбирает обработчик по режиму из конфигурации
func NewMessageHandler(mode string, chat port.ChatClient, blobs port.BlobStore, producer port.JobProducer, sessions *SessionService, logger logrus.FieldLogger) (MessageHandler, error) {
	switch mode {
	case ModeDetection, "":
		return NewDetectionHandler(chat, blobs, producer, sessions, logger), nil
	case ModeEcho:
		return NewEchoHandler(chat, logger), nil
	default:
		return nil, fmt.Errorf("unknown bot mode %q", mode)
	}
}

func (h *DetectionHandler) Handle(ctx context.Context, msg entity.ChatMessage) {
	log := h.log.WithField("chat_id", msg.ChatID)
	log.Info("incoming message")

	switch {
	case msg.IsCommand():
		h.handleCommand(ctx, msg)
	case msg.HasPhoto():
		if err := h.submitPhoto(ctx, msg); err != nil {
			log.WithError(err).Error("failed to submit photo")
			send(h.log, h.chat, msg.ChatID, msgProcessingError)
			return
		}
		send(h.log, h.chat, msg.ChatID, msgProcessing)
	case msg.Text != "":
		send(h.log, h.chat, msg.ChatID, fmt.Sprintf(msgEchoPrompt, msg.Text))
	default:
		send(h.log, h.chat, msg.ChatID, msgUnsupported)
	}
}

func (h *DetectionHandler) handleCommand(ctx context.Context, msg entity.ChatMessage) {
	switch msg.Command {
	case "start":
		send(h.log, h.chat, msg.ChatID, msgStart)
	case "help":
		send(h.log, h.chat, msg.ChatID, msgHelp)
	case "cancel":
		if _, err := h.sessions.Cancel(ctx, msg.ChatID); err != nil {
			h.log.WithError(err).Warn("failed to reset session")
		}
		send(h.log, h.chat, msg.ChatID, msgCancelled)
	default:
		send(h.log, h.chat, msg.ChatID, msgUnknownCommand)
	}
}

// submitPhoto скачивает фото, кладёт его в хранилище и ставит задание в очередь
func (h *DetectionHandler) submitPhoto(ctx context.Context, msg entity.ChatMessage) error {
	filePath, data, err := h.chat.DownloadFile(msg.PhotoFileID)
	if err != nil {
		return fmt.Errorf("download photo: %w", err)
	}

	key := path.Clean(filePath)
	if key == "." || key == "/" {
		key = "photos/" + msg.PhotoFileID + ".jpg"
	}

	if err := h.blobs.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("upload photo: %w", err)
	}

	req := entity.JobRequest{ImageKey: key, ChatID: strconv.FormatInt(msg.ChatID, 10)}
	if err := h.producer.Enqueue(ctx, req); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}

	if _, err := h.sessions.BeginJob(ctx, msg.ChatID); err != nil {
		h.log.WithError(err).Warn("failed to update session")
	}
	h.log.WithFields(logrus.Fields{"chat_id": msg.ChatID, "image_key": key}).Info("job enqueued")
	return nil
}

// send отправляет текст; ошибка только логируется
func send(log logrus.FieldLogger, chat port.ChatClient, chatID int64, text string) {
	if err := chat.SendText(chatID, text); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("error sending message")
	}
}
