package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"vision-relay/internal/domain/entity"
	"vision-relay/internal/infrastructure/storage"
)

func newDetectionHandler(t *testing.T) (*DetectionHandler, *fakeChat, *storage.MemoryBlobStore, *storage.MemoryQueue, *SessionService) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	chat := newFakeChat()
	blobs := storage.NewMemoryBlobStore()
	queue := storage.NewMemoryQueue(time.Hour, 10*time.Millisecond)
	sessions := NewSessionService(storage.NewMemorySessionRepository())
	return NewDetectionHandler(chat, blobs, queue, sessions, logger), chat, blobs, queue, sessions
}

func TestDetectionHandler_PhotoIsUploadedAndEnqueued(t *testing.T) {
	h, chat, blobs, queue, sessions := newDetectionHandler(t)
	chat.files["file-1"] = "photos/file_1.jpg"
	ctx := context.Background()

	h.Handle(ctx, entity.ChatMessage{ChatID: 12345, PhotoFileID: "file-1"})

	rc, err := blobs.Get(ctx, "photos/file_1.jpg")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "jpeg:file-1", string(data))

	msg, err := queue.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)
	req, err := entity.DecodeJobRequest(msg.Body)
	require.NoError(t, err)
	require.Equal(t, entity.JobRequest{ImageKey: "photos/file_1.jpg", ChatID: "12345"}, req)

	require.Equal(t, []string{msgProcessing}, chat.Texts(12345))

	session, err := sessions.Get(ctx, 12345)
	require.NoError(t, err)
	require.Equal(t, entity.StateProcessing, session.State)
}

func TestDetectionHandler_DownloadFailure(t *testing.T) {
	h, chat, _, queue, _ := newDetectionHandler(t)

	h.Handle(context.Background(), entity.ChatMessage{ChatID: 1, PhotoFileID: "missing"})

	require.Equal(t, []string{msgProcessingError}, chat.Texts(1))
	require.Zero(t, queue.Len())
}

func TestDetectionHandler_TextAndOther(t *testing.T) {
	h, chat, _, _, _ := newDetectionHandler(t)
	ctx := context.Background()

	h.Handle(ctx, entity.ChatMessage{ChatID: 1, Text: "hello"})
	h.Handle(ctx, entity.ChatMessage{ChatID: 1})

	require.Equal(t, []string{
		"Ваше сообщение: hello\n📸 Отправьте фото для распознавания объектов.",
		msgUnsupported,
	}, chat.Texts(1))
}

func TestDetectionHandler_Commands(t *testing.T) {
	h, chat, _, _, _ := newDetectionHandler(t)
	ctx := context.Background()

	for _, cmd := range []string{"start", "help", "cancel", "nope"} {
		h.Handle(ctx, entity.ChatMessage{ChatID: 1, Command: cmd, Text: "/" + cmd})
	}

	require.Equal(t, []string{msgStart, msgHelp, msgCancelled, msgUnknownCommand}, chat.Texts(1))
}

func TestNewMessageHandler_SelectsByMode(t *testing.T) {
	logger, _ := test.NewNullLogger()
	chat := newFakeChat()

	h, err := NewMessageHandler(ModeEcho, chat, nil, nil, nil, logger)
	require.NoError(t, err)
	require.IsType(t, &EchoHandler{}, h)

	h.Handle(context.Background(), entity.ChatMessage{ChatID: 5, Text: "hi"})
	require.Equal(t, []string{"Ваше сообщение: hi"}, chat.Texts(5))

	h, err = NewMessageHandler(ModeDetection, chat, nil, nil, nil, logger)
	require.NoError(t, err)
	require.IsType(t, &DetectionHandler{}, h)

	_, err = NewMessageHandler("subclass", chat, nil, nil, nil, logger)
	require.Error(t, err)
}
