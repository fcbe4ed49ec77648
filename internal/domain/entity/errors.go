package entity

import "errors"

var (
	// ErrInvalidJobBody: тело сообщения очереди не удалось разобрать
	ErrInvalidJobBody = errors.New("invalid job message body")

	// ErrSummaryNotFound: итог задания отсутствует в хранилище результатов
	ErrSummaryNotFound = errors.New("job summary not found")

	// ErrBlobNotFound: объект отсутствует в хранилище
	ErrBlobNotFound = errors.New("blob not found")

	// ErrInvalidGeometry: координаты детекции вне диапазона [0,1]
	ErrInvalidGeometry = errors.New("invalid detection geometry")
)
