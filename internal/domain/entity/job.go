package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator называет поля в ошибках по json-тегу
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// JobRequest описывает задание на распознавание, которое шлюз кладёт в очередь
type JobRequest struct {
	ImageKey string `json:"image_key" validate:"required"` // ключ исходного изображения в хранилище
	ChatID   string `json:"chat_id" validate:"required"`   // идентификатор чата, для пайплайна непрозрачен
}

// JobMessage: одна доставка задания из очереди
type JobMessage struct {
	ID            string // идентификатор сообщения очереди, он же job_id
	DeliveryToken string // хэндл, которым подтверждается именно эта доставка
	Body          string // тело сообщения как есть
}

// Validate проверяет, что оба поля заданы; пробелы считаются пустым значением
func (r JobRequest) Validate() error {
	trimmed := JobRequest{
		ImageKey: strings.TrimSpace(r.ImageKey),
		ChatID:   strings.TrimSpace(r.ChatID),
	}
	err := validate.Struct(trimmed)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fmt.Errorf("%w: %s is %s", ErrInvalidJobBody, fieldErrs[0].Field(), fieldErrs[0].Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidJobBody, err)
}

// EncodeJobRequest сериализует задание в JSON для тела сообщения.
func EncodeJobRequest(r JobRequest) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal job request: %w", err)
	}
	return string(data), nil
}

// DecodeJobRequest разбирает тело сообщения.
// Понимает JSON и старый формат "<image_key>,<chat_id>"; в старом формате
// делим по последней запятой, потому что chat_id запятых не содержит.
func DecodeJobRequest(body string) (JobRequest, error) {
	body = strings.TrimSpace(body)
	var r JobRequest

	if strings.HasPrefix(body, "{") {
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return JobRequest{}, fmt.Errorf("%w: %v", ErrInvalidJobBody, err)
		}
		return r, r.Validate()
	}

	idx := strings.LastIndex(body, ",")
	if idx < 0 {
		return JobRequest{}, fmt.Errorf("%w: expected \"<image_key>,<chat_id>\"", ErrInvalidJobBody)
	}
	r = JobRequest{
		ImageKey: strings.TrimSpace(body[:idx]),
		ChatID:   strings.TrimSpace(body[idx+1:]),
	}
	return r, r.Validate()
}
