package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	app "vision-relay/internal/application"
	"vision-relay/internal/domain/entity"
)

type updatesAPI interface {
	botAPI
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot принимает обновления Telegram и передаёт их обработчику
type Bot struct {
	api     updatesAPI
	handler app.MessageHandler
	log     logrus.FieldLogger
}

// Authorize проверяет токен и возвращает API бота
func Authorize(token string, logger logrus.FieldLogger) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorize bot: %w", err)
	}
	logger.WithField("account", api.Self.UserName).Info("authorized on account")
	return api, nil
}

// NewBot создаёт бота
func NewBot(api *tgbotapi.BotAPI, handler app.MessageHandler, logger logrus.FieldLogger) *Bot {
	return newBot(api, handler, logger)
}

func newBot(api updatesAPI, handler app.MessageHandler, logger logrus.FieldLogger) *Bot {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Bot{api: api, handler: handler, log: logger}
}

// SetWebhook снимает старый вебхук и ставит новый на <appURL>/<token>/.
// certPath: публичный сертификат для самоподписанного HTTPS, может быть пустым.
func (b *Bot) SetWebhook(appURL, token, certPath string) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	link := strings.TrimRight(appURL, "/") + "/" + token + "/"

	var (
		wh  tgbotapi.WebhookConfig
		err error
	)
	if certPath != "" {
		wh, err = tgbotapi.NewWebhookWithCert(link, tgbotapi.FilePath(certPath))
	} else {
		wh, err = tgbotapi.NewWebhook(link)
	}
	if err != nil {
		return fmt.Errorf("build webhook: %w", err)
	}

	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	b.log.WithField("url", strings.TrimRight(appURL, "/")).Info("webhook registered")
	return nil
}

// Run регистрирует вебхук и ждёт отмены ctx, а без appURL получает обновления
// long polling. Ошибка регистрации возвращается сразу.
func (b *Bot) Run(ctx context.Context, appURL, token, certPath string) error {
	if appURL == "" {
		return b.Poll(ctx)
	}
	if err := b.SetWebhook(appURL, token, certPath); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// Poll получает обновления long polling'ом до отмены контекста
func (b *Bot) Poll(ctx context.Context) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.Dispatch(ctx, update)
		}
	}
}

// Dispatch передаёт сообщение из обновления обработчику; прочие обновления пропускаются
func (b *Bot) Dispatch(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Chat == nil {
		return
	}
	b.handler.Handle(ctx, toChatMessage(update.Message))
}

// toChatMessage отвязывает сообщение от Telegram
func toChatMessage(msg *tgbotapi.Message) entity.ChatMessage {
	out := entity.ChatMessage{
		ChatID: msg.Chat.ID,
		Text:   msg.Text,
	}
	if msg.From != nil {
		out.UserID = msg.From.ID
	}
	if msg.IsCommand() {
		out.Command = msg.Command()
	}
	// последний размер: максимальное разрешение
	if len(msg.Photo) > 0 {
		out.PhotoFileID = msg.Photo[len(msg.Photo)-1].FileID
	}
	return out
}
