package telegram

import (
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vision-relay/internal/domain/port"
)

// botAPI: часть tgbotapi.BotAPI, которой пользуется клиент
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
}

// Client отправляет сообщения и скачивает файлы через Bot API
type Client struct {
	api     botAPI
	http    *http.Client
	fileURL func(filePath string) string
}

// NewClient создаёт клиента поверх авторизованного бота
func NewClient(api *tgbotapi.BotAPI) *Client {
	token := api.Token
	return newClient(api, func(filePath string) string {
		return fmt.Sprintf(tgbotapi.FileEndpoint, token, filePath)
	})
}

func newClient(api botAPI, fileURL func(string) string) *Client {
	return &Client{
		api:     api,
		http:    &http.Client{Timeout: 60 * time.Second},
		fileURL: fileURL,
	}
}

// SendText отправляет текстовое сообщение
func (c *Client) SendText(chatID int64, text string) error {
	_, err := c.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendPhoto отправляет изображение из памяти
func (c *Client) SendPhoto(chatID int64, name string, data []byte) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	_, err := c.api.Send(photo)
	return err
}

// DownloadFile скачивает файл из Telegram.
// Возвращает путь вида photos/file_0.jpg: он же станет ключом в хранилище.
func (c *Client) DownloadFile(fileID string) (string, []byte, error) {
	file, err := c.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", nil, fmt.Errorf("get file: %w", err)
	}

	resp, err := c.http.Get(c.fileURL(file.FilePath))
	if err != nil {
		return "", nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read file: %w", err)
	}

	return file.FilePath, data, nil
}

var _ port.ChatClient = (*Client)(nil)
