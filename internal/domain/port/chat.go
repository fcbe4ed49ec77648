package port

// ChatClient интерфейс мессенджера для исходящих сообщений
type ChatClient interface {
	// SendText отправляет текстовое сообщение
	SendText(chatID int64, text string) error

	// SendPhoto отправляет изображение
	SendPhoto(chatID int64, name string, data []byte) error

	// DownloadFile скачивает файл по его ID и возвращает путь файла на стороне мессенджера
	DownloadFile(fileID string) (path string, data []byte, err error)
}
