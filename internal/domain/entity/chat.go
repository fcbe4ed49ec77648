package entity

// ChatMessage: входящее сообщение чата, уже отвязанное от Telegram
type ChatMessage struct {
	ChatID      int64
	UserID      int64
	Text        string
	Command     string // команда без "/", пусто если это не команда
	PhotoFileID string // файл фото максимального размера
}

// HasPhoto сообщает, есть ли в сообщении фото
func (m ChatMessage) HasPhoto() bool {
	return m.PhotoFileID != ""
}

// IsCommand сообщает, является ли сообщение командой бота
func (m ChatMessage) IsCommand() bool {
	return m.Command != ""
}
